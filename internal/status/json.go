package status

import (
	"encoding/json"
	"time"

	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Samples       int          `json:"samples"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	Sensors       []SensorJSON `json:"sensors"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"relay_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the latest tick. Absent channels are null.
type ReadingJSON struct {
	Timestamp        string   `json:"timestamp"`
	SoilTemperature  *float64 `json:"soil_temperature"`
	SoilMoisture     *float64 `json:"soil_moisture"`
	AirTemperature   *float64 `json:"air_temperature"`
	AirHumidity      *float64 `json:"air_humidity"`
	SunlightVisible  *float64 `json:"sunlight_visible"`
	SunlightUV       *float64 `json:"sunlight_uv"`
	SunlightIR       *float64 `json:"sunlight_ir"`
	Relay            *float64 `json:"relay"`
	RelayStateChange bool     `json:"relay_state_change"`
}

// SensorJSON is the readiness of one reader.
type SensorJSON struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of relay transition counts.
type CountsJSON struct {
	On  int `json:"relay_on"`
	Off int `json:"relay_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of collector config.
type ConfigJSON struct {
	IntervalMs  int64  `json:"interval_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	CSVPath     string `json:"csv"`
	LogPath     string `json:"log"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Fake        bool   `json:"fake,omitempty"`
}

func optional(v logic.Value) *float64 {
	f, ok := v.Get()
	if !ok {
		return nil
	}
	return &f
}

func buildReading(s logic.Snapshot) *ReadingJSON {
	return &ReadingJSON{
		Timestamp:        s.Time.UTC().Format(time.RFC3339),
		SoilTemperature:  optional(s.SoilTemperature),
		SoilMoisture:     optional(s.SoilMoisture),
		AirTemperature:   optional(s.AirTemperature),
		AirHumidity:      optional(s.AirHumidity),
		SunlightVisible:  optional(s.SunlightVisible),
		SunlightUV:       optional(s.SunlightUV),
		SunlightIR:       optional(s.SunlightIR),
		Relay:            optional(s.Relay),
		RelayStateChange: s.RelayChanged,
	}
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Samples:       snap.Samples,
		Sensors:       make([]SensorJSON, 0, len(snap.Readers)),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        CountsJSON{On: snap.Counts.On, Off: snap.Counts.Off},
		Config: ConfigJSON{
			IntervalMs:  snap.Config.IntervalMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			CSVPath:     snap.Config.CSVPath,
			LogPath:     snap.Config.LogPath,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Fake:        snap.Config.Fake,
		},
	}
	if snap.Samples > 0 {
		inner.Reading = buildReading(snap.Latest)
	}
	for _, r := range snap.Readers {
		inner.Sensors = append(inner.Sensors, SensorJSON{Name: r.Name, Ready: r.Ready})
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event. Sensor
// readings stay on the device: the payload carries health and counts only.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Reading = nil
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
