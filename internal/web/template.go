package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/flybox/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
}).Parse(indexHTML))

// formatUptime renders d as e.g. "2d 3h 4m 5s", dropping leading zero units.
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, sec)
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>FlyBox</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.halted { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>FlyBox</h1>

{{if .Halted}}<p id="halt" class="halted">HALTED: {{.HaltReason}}</p>{{end}}

<h2>Schedule</h2>
<table>
<tr><th>Time</th><td id="schedule-time">{{.Schedule}}</td></tr>
<tr><th>Events loaded</th><td>{{.Loaded}}</td></tr>
<tr><th>Records skipped</th><td>{{.Skipped}}</td></tr>
<tr><th>Ends at minute</th><td>{{.Horizon}}</td></tr>
<tr><th>Starts / stops</th><td>{{.Counts.Starts}} / {{.Counts.Stops}}</td></tr>
<tr><th>Restarts</th><td>{{.Counts.Restarts}}</td></tr>
</table>

<h2>Channels</h2>
<table>
<tr><th>Channel</th><td>State</td></tr>
{{range $i, $ch := .Channels}}<tr><th>{{$i}} (pwm{{$ch.Pin}})</th><td id="ch-{{$i}}" class="{{if $ch.On}}on{{else}}off{{end}}">{{if $ch.On}}ON {{$ch.Duty}}/255{{else}}OFF{{end}}{{if ge $ch.Event 0}} event {{$ch.Event}}{{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Event file</th><td>{{.Config.EventsFile}}</td></tr>
<tr><th>Policy</th><td>{{.Config.Policy}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Repeat</th><td>{{if .Config.Repeat}}yes{{else}}no{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, struct {
		status.Snapshot
		Uptime time.Duration
	}{snap, snap.Uptime()})
}
