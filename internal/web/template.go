package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/dht11-sensor/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>DHT11 Sensor Dashboard</title>
<style>
body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; text-align: center; }
.sensor-data { font-size: 24px; margin: 20px; }
.warning { color: red; animation: blink 1s infinite; }
.safe { color: green; }
@keyframes blink { 50% { opacity: 0; } }
.status-box { padding: 10px; margin: 10px; border-radius: 5px; display: inline-block; }
.details { font-family: monospace; font-size: 14px; text-align: left; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>DHT11 Sensor Dashboard</h1>
{{if .HasReading}}
<div class="sensor-data">
<h2>Temperature</h2>
<p id="temperature">{{.Reading.Temperature}}°C</p>
<div class="status-box {{if .TemperatureWarning}}warning{{else}}safe{{end}}">{{if .TemperatureWarning}}WARNING{{else}}IN LIMIT{{end}}</div>
</div>

<div class="sensor-data">
<h2>Humidity</h2>
<p id="humidity">{{.Reading.Humidity}}%</p>
<div class="status-box {{if .HumidityWarning}}warning{{else}}safe{{end}}">{{if .HumidityWarning}}WARNING{{else}}IN LIMIT{{end}}</div>
</div>
{{else}}
<p class="sensor-data">Waiting for first reading</p>
{{end}}

<div class="details">
<h2>Sensor</h2>
<table>
<tr><th>Last reading</th><td>{{if .HasReading}}{{.Reading.CapturedAt.UTC.Format "2006-01-02T15:04:05Z"}}{{else}}never{{end}}</td></tr>
<tr><th>Reads ok / failed</th><td>{{.Reads.OK}} / {{.Reads.Failed}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td>{{.LastError}} ({{.LastErrorAt.UTC.Format "2006-01-02T15:04:05Z"}})</td></tr>{{end}}
<tr><th>Temperature alert</th><td>{{stateOrUnknown (printf "%s" .TempState)}}</td></tr>
<tr><th>Humidity alert</th><td>{{stateOrUnknown (printf "%s" .HumidityState)}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Instance</th><td>{{.InstanceID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.Backend}} line {{.Config.Pin}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms (min {{.Config.MinIntervalMs}}ms)</td></tr>
<tr><th>Thresholds</th><td>{{.Config.Thresholds.Temperature}}°C / {{.Config.Thresholds.Humidity}}%</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</div>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
