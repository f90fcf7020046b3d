// Package sensor turns raw hardware readings into smoothed snapshot fields.
//
// Every reader isolates its hardware: a failed Init or Read is logged, the
// reader is marked not ready and its fields come back absent for that tick.
// The next Read on a reader that is not ready re-initialises it first.
package sensor

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/rachmann-alexander/easyfarmbeats/internal/hw"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logging"
	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// Filter parameters. Values outside (Lower, Upper) are not smoothed.
const (
	WindowDefault  = 10
	WindowMoisture = 20
	Lower          = 0.0
	Upper          = 200.0
)

// Moisture calibration of the Grove capacitive sensor (12-bit ADC):
// dry soil reads high, wet soil reads low.
const (
	MoistureDry = 2504
	MoistureWet = 1543
)

// ErrNotReady is returned by relay control while the relay is not initialised.
var ErrNotReady = errors.New("sensor not ready")

// Reader fills its channels of a snapshot.
type Reader interface {
	// Name identifies the reader in diagnostics.
	Name() string

	// Ready reports whether the last Init or Read succeeded.
	Ready() bool

	// Read samples the hardware once and writes the reader's fields into s.
	// Hardware faults never escape: the fields are left absent instead.
	Read(s *logic.Snapshot)

	// Close releases the hardware.
	Close() error
}

// base carries readiness and fault handling shared by the readers.
type base struct {
	name   string
	dev    hw.Device
	logger logging.Logger
	ready  bool
}

func newBase(name string, dev hw.Device, logger logging.Logger) base {
	return base{name: name, dev: dev, logger: logger}
}

// Name identifies the reader.
func (b *base) Name() string { return b.name }

// Ready reports whether the reader is initialised.
func (b *base) Ready() bool { return b.ready }

// Close releases the hardware.
func (b *base) Close() error {
	b.ready = false
	return b.dev.Close()
}

// init (re)initialises the device.
func (b *base) init() bool {
	if err := guard(b.dev.Init); err != nil {
		b.logger.Warnf("%s: init: %v", b.name, err)
		b.ready = false
		return false
	}
	b.ready = true
	return true
}

// read re-initialises if needed and runs fn, turning any failure into a
// not-ready reader.
func (b *base) read(fn func() error) bool {
	if !b.ready && !b.init() {
		return false
	}
	if err := guard(fn); err != nil {
		b.logger.Warnf("%s: read: %v", b.name, err)
		b.ready = false
		return false
	}
	return true
}

// guard runs fn and converts a driver panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver panic: %v", r)
		}
	}()
	return fn()
}

// Sensors is the fixed set of readers of one device.
type Sensors struct {
	SoilTemperature *SoilTemperature
	SoilMoisture    *SoilMoisture
	Air             *AirTempHumidity
	Sunlight        *Sunlight
	Relay           *Relay
}

// New creates every reader from devs. Each reader tries Init once; failures
// are logged and retried on the first Read.
func New(devs hw.Devices, logger logging.Logger, clk clock.Clock) *Sensors {
	return &Sensors{
		SoilTemperature: NewSoilTemperature(devs.SoilTemperature, logger),
		SoilMoisture:    NewSoilMoisture(devs.SoilMoisture, logger),
		Air:             NewAirTempHumidity(devs.Air, logger, clk),
		Sunlight:        NewSunlight(devs.Light, logger),
		Relay:           NewRelay(devs.Relay, logger),
	}
}

// Readers returns the readers in poll order.
func (s *Sensors) Readers() []Reader {
	return []Reader{s.SoilTemperature, s.SoilMoisture, s.Air, s.Sunlight, s.Relay}
}

// Close releases every reader.
func (s *Sensors) Close() error {
	var err error
	for _, r := range s.Readers() {
		if cerr := r.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", r.Name(), cerr))
		}
	}
	return err
}
