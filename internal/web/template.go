package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/rachmann-alexander/easyfarmbeats/internal/logic"
	"github.com/rachmann-alexander/easyfarmbeats/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"reading": func(v logic.Value) string {
		if !v.Valid {
			return "n/a"
		}
		return v.String()
	},
	"relay": func(v logic.Value) string {
		switch {
		case !v.Valid:
			return "UNKNOWN"
		case v.Float == logic.RelayOn:
			return "ON"
		default:
			return "OFF"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>FarmBeats Sensor Collector</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>FarmBeats Sensor Collector</h1>

<h2>Latest Reading</h2>
{{if .Samples}}<table>
<tr><th>Time</th><td>{{.Latest.Time.Format "2006-01-02 15:04:05"}}</td></tr>
<tr><th>Soil temperature</th><td>{{reading .Latest.SoilTemperature}} &deg;C</td></tr>
<tr><th>Soil moisture</th><td>{{reading .Latest.SoilMoisture}}</td></tr>
<tr><th>Air temperature</th><td>{{reading .Latest.AirTemperature}} &deg;C</td></tr>
<tr><th>Air humidity</th><td>{{reading .Latest.AirHumidity}} %</td></tr>
<tr><th>Sunlight visible</th><td>{{reading .Latest.SunlightVisible}}</td></tr>
<tr><th>Sunlight UV</th><td>{{reading .Latest.SunlightUV}}</td></tr>
<tr><th>Sunlight IR</th><td>{{reading .Latest.SunlightIR}}</td></tr>
{{with relay .Latest.Relay}}<tr><th>Relay</th><td id="relay-state" class="{{if eq . "ON"}}on{{else if eq . "OFF"}}off{{else}}unknown{{end}}">{{.}}</td></tr>{{end}}
</table>{{else}}<p>No reading yet.</p>{{end}}

<h2>Sensors</h2>
<table>
{{range .Readers}}<tr><th>{{.Name}}</th><td class="{{if .Ready}}connected{{else}}disconnected{{end}}">{{if .Ready}}ready{{else}}not ready{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Relay Transitions</h2>
<table>
<tr><th>ON</th><td>{{.Counts.On}}</td></tr>
<tr><th>OFF</th><td>{{.Counts.Off}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Samples</th><td>{{.Samples}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Record file</th><td>{{.Config.CSVPath}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
{{if .Config.Fake}}<tr><th>Hardware</th><td class="unknown">fake</td></tr>{{end}}
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
