// Package logic contains the pure sampling core: range mapping, rolling average
// smoothing, cycle snapshots and relay transition tracking.
// This package has NO external I/O (no GPIO, I2C, files, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"strconv"
	"time"
)

// NullValue is what an empty filter window averages to. It is distinct from
// an absent Value.
const NullValue = 0.0

// Value is an optional number. Valid=false means "unavailable this tick".
type Value struct {
	Float float64
	Valid bool
}

// Some returns a present Value.
func Some(f float64) Value {
	return Value{Float: f, Valid: true}
}

// None is the absent Value.
var None = Value{}

// Get returns the number and whether it is present.
func (v Value) Get() (float64, bool) {
	return v.Float, v.Valid
}

// String formats the value with two decimals, or "" when absent.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', 2, 64)
}

// TimeLayout is how snapshot timestamps are rendered in records and logs.
const TimeLayout = "2006-01-02 15:04:05"

// Relay states as reported by the relay channel.
const (
	RelayOff = 0.0
	RelayOn  = 1.0
)

// Snapshot is the aggregate of every sensor channel for one tick.
// It is a value type; consumers receive copies.
type Snapshot struct {
	Time time.Time

	SoilTemperature Value
	SoilMoisture    Value
	AirTemperature  Value
	AirHumidity     Value
	SunlightVisible Value
	SunlightUV      Value
	SunlightIR      Value
	Relay           Value

	// RelayChanged is true iff the relay differs from the previous tick.
	RelayChanged bool
}

// Field is a named channel of a Snapshot, in record column order.
type Field struct {
	Name  string
	Value Value
}

// Fields returns the channels of s in a fixed order.
func (s Snapshot) Fields() []Field {
	return []Field{
		{"soil_temperature", s.SoilTemperature},
		{"soil_moisture", s.SoilMoisture},
		{"air_temperature", s.AirTemperature},
		{"air_humidity", s.AirHumidity},
		{"sunlight_visible", s.SunlightVisible},
		{"sunlight_uv", s.SunlightUV},
		{"sunlight_ir", s.SunlightIR},
		{"relay", s.Relay},
	}
}

// Missing returns the names of the absent channels.
func (s Snapshot) Missing() []string {
	var names []string
	for _, f := range s.Fields() {
		if !f.Value.Valid {
			names = append(names, f.Name)
		}
	}
	return names
}

// TransitionCounts tracks the number of relay transitions since startup.
type TransitionCounts struct {
	On  int
	Off int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    TransitionCounts
}
