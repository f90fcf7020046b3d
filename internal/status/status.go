// Package status provides a thread-safe view of the collector for the HTTP
// status page and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains collector configuration for display.
type Config struct {
	IntervalMs  int64
	HeartbeatMs int64
	CSVPath     string
	LogPath     string
	Broker      string
	HTTPPort    string
	Fake        bool
}

// ReaderStatus is the readiness of one sensor reader.
type ReaderStatus struct {
	Name  string
	Ready bool
}

// Snapshot is a point-in-time view of collector state.
// It is a value type; safe to use after the lock is released.
type Snapshot struct {
	// Latest is the most recent recorded tick; zero until Samples > 0.
	Latest  logic.Snapshot
	Samples int

	Readers       []ReaderStatus
	Counts        logic.TransitionCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the collector started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every reader is ready. It is false before the first
// readiness report.
func (s Snapshot) Ready() bool {
	if len(s.Readers) == 0 {
		return false
	}
	for _, r := range s.Readers {
		if !r.Ready {
			return false
		}
	}
	return true
}

// Tracker holds mutable collector state behind an RWMutex.
type Tracker struct {
	clk clock.Clock

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker started at clk.Now().
func NewTracker(clk clock.Clock, cfg Config) *Tracker {
	return &Tracker{
		clk: clk,
		snap: Snapshot{
			StartTime: clk.Now(),
			Config:    cfg,
		},
	}
}

// Observe stores the latest tick and transition counts. Called from the
// collection loop after every tick.
func (t *Tracker) Observe(s logic.Snapshot, counts logic.TransitionCounts) {
	t.mu.Lock()
	t.snap.Latest = s
	t.snap.Samples++
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetReaders replaces the reader readiness list.
func (t *Tracker) SetReaders(readers []ReaderStatus) {
	cp := append([]ReaderStatus(nil), readers...)
	t.mu.Lock()
	t.snap.Readers = cp
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the collector state.
// The Now field is set from the tracker's clock at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Readers = append([]ReaderStatus(nil), t.snap.Readers...)
	t.mu.RUnlock()
	s.Now = t.clk.Now()
	return s
}
