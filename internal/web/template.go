package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/level-sensor/internal/sensor"
	"github.com/sweeney/level-sensor/internal/status"
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
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"known": func(v uint8) bool {
		return v != sensor.Invalid
	},
	"calibration": func(v uint8) string {
		return sensor.CalibrationModeDescription(v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Level Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.wet { color: #06c; font-weight: bold; }
.dry { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Level Sensor</h1>

<h2>State</h2>
<table>
{{$w := stateOrUnknown (printf "%s" .Water)}}<tr><th>Water</th><td id="water-state" class="{{if eq $w "WET"}}wet{{else if eq $w "DRY"}}dry{{else}}unknown{{end}}">{{$w}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
{{if .LastReadError}}<tr><th>Last read error</th><td class="disconnected">{{.LastReadError}}</td></tr>{{end}}
</table>

<h2>Sensor</h2>
<table>
<tr><th>Mode</th><td>{{.Config.Mode}}</td></tr>
<tr><th>Port</th><td>{{.Config.Port}}</td></tr>
<tr><th>Begin</th><td>{{if eq .Sensor.BeginCode 170}}never calibrated{{else if eq .Sensor.BeginCode 0}}ok{{else}}failed ({{.Sensor.BeginCode}}){{end}}</td></tr>
<tr><th>Self-check</th><td>{{if .Sensor.SelfCheckOK}}passed{{else}}not run or failed{{end}}</td></tr>
{{if known .Sensor.Sensitivity}}<tr><th>Sensitivity</th><td>{{.Sensor.Sensitivity}}</td></tr>{{end}}
{{if known .Sensor.CalibrationMode}}<tr><th>Calibration</th><td>{{calibration .Sensor.CalibrationMode}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Water detected</th><td>{{.Counts.Detected}}</td></tr>
<tr><th>Water cleared</th><td>{{.Counts.Cleared}}</td></tr>
<tr><th>Read errors</th><td>{{.Counts.ReadErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
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
