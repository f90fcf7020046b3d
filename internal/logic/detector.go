package logic

import "time"

// RelayDetector remembers the previous relay reading and flags transitions.
//
// The history starts at RelayOff before any reading, so a first reading of
// RelayOn is reported as a transition and a first reading of RelayOff is not.
type RelayDetector struct {
	previous      float64
	startTime     time.Time
	counts        TransitionCounts
	lastHeartbeat time.Time
}

// NewRelayDetector creates a detector with history RelayOff.
// The startTime is used for calculating uptime in heartbeat events.
func NewRelayDetector(startTime time.Time) *RelayDetector {
	return &RelayDetector{
		previous:      RelayOff,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process compares relay against the previous reading, records it as the new
// history and returns whether it changed.
// An absent reading is not comparable: it reports no transition and keeps the
// history so the next real reading is compared against the last known state.
func (d *RelayDetector) Process(relay Value) bool {
	v, ok := relay.Get()
	if !ok {
		return false
	}

	changed := v != d.previous
	d.previous = v

	if changed {
		if v == RelayOff {
			d.counts.Off++
		} else {
			d.counts.On++
		}
	}
	return changed
}

// Previous returns the relay value the next reading is compared against.
func (d *RelayDetector) Previous() float64 {
	return d.previous
}

// Counts returns a copy of the transition counters.
func (d *RelayDetector) Counts() TransitionCounts {
	return d.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (d *RelayDetector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.counts,
	}
}
