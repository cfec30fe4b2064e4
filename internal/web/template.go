package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/sweeney/source-watcher/internal/status"
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
	"join": strings.Join,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Source Watcher</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.occupied { color: red; font-weight: bold; }
.clear { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
img { max-width: 100%; }
</style>
</head>
<body>
<h1>Source Watcher</h1>

<h2>Scene</h2>
<table>
<tr><th>Presence</th><td id="presence" class="{{if eq (stateOrUnknown (printf "%s" .Presence)) "OCCUPIED"}}occupied{{else if eq (stateOrUnknown (printf "%s" .Presence)) "CLEAR"}}clear{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Presence)}}</td></tr>
<tr><th>Frames</th><td>{{.FramesProcessed}}</td></tr>
<tr><th>Detector errors</th><td>{{.DetectErrors}}</td></tr>
<tr><th>Last frame</th><td>{{if .LastFrame.IsZero}}none{{else}}{{.LastFrame.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Alerts</h2>
<table>
<tr><th>Last alert</th><td>{{if .LastAlert}}{{.LastAlert.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}} ({{.LastAlert.ID}}){{else}}never{{end}}</td></tr>
<tr><th>Cooldown remaining</th><td>{{uptime .Cooldown}}</td></tr>
<tr><th>Dispatched</th><td>{{.Counts.Alerts}}</td></tr>
<tr><th>Suppressed</th><td>{{.Counts.Suppressed}}</td></tr>
<tr><th>Became present</th><td>{{.Counts.BecamePresent}}</td></tr>
<tr><th>Became clear</th><td>{{.Counts.BecameClear}}</td></tr>
</table>
{{if .LastAlert}}{{if .LastAlert.Snapshot}}<p><img src="/snapshot/latest" alt="latest alert snapshot"></p>{{end}}{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
<tr><th>Channels</th><td>{{join .Config.Channels ", "}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Source</th><td>{{.Config.SourceKind}} {{.Config.Source}}</td></tr>
<tr><th>Detector</th><td>{{.Config.Detector}}</td></tr>
<tr><th>Threshold</th><td>{{.Config.Label}} &gt; {{printf "%.2f" .Config.Threshold}}</td></tr>
<tr><th>Cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and CooldownRemaining() methods but the template
	// needs Duration fields.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Cooldown time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Cooldown: snap.CooldownRemaining(),
	}
	indexTmpl.Execute(w, data)
}
