package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/focus-timer/internal/display"
	"github.com/sweeney/focus-timer/internal/logic"
	"github.com/sweeney/focus-timer/internal/status"
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
	"clock":   display.FormatTime,
	"minutes": func(sec int) int { return sec / 60 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if .Ticking}}<meta http-equiv="refresh" content="1">{{end}}
<title>Focus Timer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.clock { font-size: 3em; margin: 0.2em 0; }
.locked { color: #888; font-style: italic; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1 id="label">{{.Label}}</h1>
<p id="remaining" class="clock">{{clock .Timer.SecondsRemaining}}</p>
{{if .ChunkLabel}}<p id="chunk">{{.ChunkLabel}}</p>{{end}}

{{if .Locked}}<p id="locked" class="locked">{{.Locked}}</p>{{end}}
{{if .Controls}}{{if .CanStart}}
<form method="post" action="/api/start">
<table>
<tr><th><label for="block_minutes">Block (minutes)</label></th><td><input id="block_minutes" name="block_minutes" type="number" min="1" max="1440" value="{{minutes .Next.BlockDuration}}"></td></tr>
<tr><th><label for="chunks">Chunks</label></th><td><input id="chunks" name="chunks" type="number" min="0" value="{{.Next.TotalChunks}}"></td></tr>
<tr><th><label for="break_minutes">Break (minutes)</label></th><td><input id="break_minutes" name="break_minutes" type="number" min="0" max="1440" value="{{minutes .Next.BreakDuration}}"></td></tr>
</table>
<button id="start" type="submit">Start</button>
</form>
{{end}}{{if .CanAbort}}
<form method="post" action="/api/abort">
<button id="abort" type="submit">Abort</button>
</form>
{{end}}{{end}}

<h2>Counts</h2>
<table>
<tr><th>Blocks started</th><td>{{.Counts.BlocksStarted}}</td></tr>
<tr><th>Blocks completed</th><td>{{.Counts.BlocksCompleted}}</td></tr>
<tr><th>Blocks aborted</th><td>{{.Counts.BlocksAborted}}</td></tr>
<tr><th>Chunks completed</th><td>{{.Counts.ChunksCompleted}}</td></tr>
<tr><th>Cooldowns completed</th><td>{{.Counts.CooldownsCompleted}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{if .MQTTBuffered}} ({{.MQTTBuffered}} buffered){{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Buttons</th><td>{{if .Config.Buttons}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type page struct {
	status.Snapshot
	Uptime     time.Duration
	Label      string
	ChunkLabel string
	Locked     string
	CanStart   bool
	CanAbort   bool
	Ticking    bool
	Controls   bool
}

func renderHTML(w io.Writer, snap status.Snapshot, controls bool) error {
	ts := snap.Timer
	return indexTmpl.Execute(w, page{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Label:      display.Label(ts.Phase),
		ChunkLabel: display.ChunkLabel(ts),
		Locked:     display.LockedMessage(ts.Phase),
		CanStart:   logic.CanStart(ts),
		CanAbort:   logic.CanAbort(ts),
		Ticking:    logic.Ticking(ts.Phase),
		Controls:   controls,
	})
}
