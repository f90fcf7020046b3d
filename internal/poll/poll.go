// Package poll runs the collection loop: one snapshot per tick, read from
// every sensor in a fixed order, handed to a Recorder and to observers.
//
// The loop is single-threaded. Readers, filters and the relay history are
// owned by the loop goroutine; only the lifecycle state is locked so Stop and
// State may be called from elsewhere.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
	"github.com/rachmann-alexander/easyfarmbeats/internal/sensor"
)

// DefaultInterval is the pause between ticks.
const DefaultInterval = 5 * time.Second

var (
	// ErrAlreadyStarted is returned by Run on a running poller.
	ErrAlreadyStarted = errors.New("poller already started")
	// ErrStopped is returned by Run on a stopped poller. Stopped is terminal.
	ErrStopped = errors.New("poller stopped")
	// ErrFatal wraps a fault that escaped the per-tick guards and ended the loop.
	ErrFatal = errors.New("fatal error in collection loop")
)

// State is the lifecycle of a Poller.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Stopped:
		return "STOPPED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Recorder persists snapshots.
type Recorder interface {
	Append(s logic.Snapshot) error
}

// Observer is notified after every recorded tick with a copy of the snapshot
// and the relay transition counts so far.
type Observer interface {
	Observe(s logic.Snapshot, counts logic.TransitionCounts)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(s logic.Snapshot, counts logic.TransitionCounts)

// Observe calls f.
func (f ObserverFunc) Observe(s logic.Snapshot, counts logic.TransitionCounts) { f(s, counts) }

// Config tunes a Poller.
type Config struct {
	// Interval between ticks. Zero means DefaultInterval.
	Interval time.Duration

	// Heartbeat is how often OnHeartbeat fires. Zero disables it.
	Heartbeat time.Duration

	// OnHeartbeat receives heartbeat data from the loop goroutine.
	OnHeartbeat func(logic.HeartbeatData)
}

// Poller is the collection loop.
type Poller struct {
	readers   []sensor.Reader
	rec       Recorder
	observers []Observer
	cfg       Config
	clk       clock.Clock
	logger    logging.Logger
	detector  *logic.RelayDetector

	mu    sync.Mutex
	state State
	stop  chan struct{}
}

// New creates an idle poller. Readers are read in the order given.
func New(readers []sensor.Reader, rec Recorder, cfg Config, clk clock.Clock, logger logging.Logger, observers ...Observer) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		readers:   readers,
		rec:       rec,
		observers: observers,
		cfg:       cfg,
		clk:       clk,
		logger:    logger,
		detector:  logic.NewRelayDetector(clk.Now()),
		stop:      make(chan struct{}),
	}
}

// State returns the lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stop requests the loop to end. It is observed before the next tick or
// during the sleep; a tick in progress completes. Stopping an idle poller
// makes it Stopped without ever running.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Idle:
		p.state = Stopped
		close(p.stop)
	case Running:
		select {
		case <-p.stop:
		default:
			close(p.stop)
		}
	}
}

// Run ticks until ctx is done, Stop is called or a fatal fault occurs.
// A normal stop returns nil; a fatal fault returns an error wrapping ErrFatal.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case Running:
		p.mu.Unlock()
		return ErrAlreadyStarted
	case Stopped:
		p.mu.Unlock()
		return ErrStopped
	}
	p.state = Running
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.state = Stopped
		p.mu.Unlock()
		p.logger.Info("sensor data collection stopped")
	}()

	p.logger.Infof("starting sensor data collection: interval=%v readers=%d", p.cfg.Interval, len(p.readers))

	for {
		if p.stopping(ctx) {
			return nil
		}

		if err := p.safeTick(); err != nil {
			p.logger.Errorf("%v", err)
			return err
		}

		timer := p.clk.Timer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-p.stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (p *Poller) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-p.stop:
		return true
	default:
		return false
	}
}

// safeTick runs one tick, turning a panic that escaped the tick into ErrFatal.
func (p *Poller) safeTick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFatal, r)
		}
	}()
	p.Tick()
	return nil
}

// Tick performs one collection pass and returns the snapshot it recorded.
// Reader and recorder faults are logged and never escape.
func (p *Poller) Tick() logic.Snapshot {
	snap := logic.Snapshot{Time: p.clk.Now()}

	for _, r := range p.readers {
		p.read(r, &snap)
	}
	snap.RelayChanged = p.detector.Process(snap.Relay)

	if err := p.record(snap); err != nil {
		p.logger.Errorf("failed to write record: %v", err)
	}

	p.logEvents(snap)
	p.logger.Debugf("sensor data collected: %s", snap.Time.Format(logic.TimeLayout))

	counts := p.detector.Counts()
	for _, o := range p.observers {
		o.Observe(snap, counts)
	}

	if p.cfg.OnHeartbeat != nil {
		if hb := p.detector.CheckHeartbeat(snap.Time, p.cfg.Heartbeat); hb != nil {
			p.cfg.OnHeartbeat(*hb)
		}
	}
	return snap
}

// read runs one reader. A reader that panics leaves all its fields absent,
// including any it wrote before panicking.
func (p *Poller) read(r sensor.Reader, snap *logic.Snapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Errorf("%s: read panicked: %v", r.Name(), rec)
		}
	}()
	var part logic.Snapshot
	r.Read(&part)
	merge(snap, part)
}

// merge copies the fields a reader filled in.
func merge(dst *logic.Snapshot, src logic.Snapshot) {
	for _, f := range []struct {
		dst *logic.Value
		src logic.Value
	}{
		{&dst.SoilTemperature, src.SoilTemperature},
		{&dst.SoilMoisture, src.SoilMoisture},
		{&dst.AirTemperature, src.AirTemperature},
		{&dst.AirHumidity, src.AirHumidity},
		{&dst.SunlightVisible, src.SunlightVisible},
		{&dst.SunlightUV, src.SunlightUV},
		{&dst.SunlightIR, src.SunlightIR},
		{&dst.Relay, src.Relay},
	} {
		if f.src.Valid {
			*f.dst = f.src
		}
	}
}

func (p *Poller) record(snap logic.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recorder panicked: %v", r)
		}
	}()
	return p.rec.Append(snap)
}

// sensorLabels maps snapshot fields to the sensor named in absence warnings.
// Fields of one sensor share a label and are warned about once.
var sensorLabels = map[string]string{
	"soil_temperature": "soil temperature",
	"soil_moisture":    "soil moisture",
	"air_temperature":  "air temperature/humidity",
	"air_humidity":     "air temperature/humidity",
	"sunlight_visible": "sunlight",
	"sunlight_uv":      "sunlight",
	"sunlight_ir":      "sunlight",
	"relay":            "relay",
}

func (p *Poller) logEvents(snap logic.Snapshot) {
	if snap.RelayChanged {
		p.logger.Infof("relay state changed to: %.0f", snap.Relay.Float)
	}

	warned := make(map[string]bool)
	for _, name := range snap.Missing() {
		label := sensorLabels[name]
		if warned[label] {
			continue
		}
		warned[label] = true
		p.logger.Warnf("%s sensor returned no value", label)
	}
}
