package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/topre-kscan/internal/matrix"
	"github.com/sweeney/topre-kscan/internal/status"
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
	"ms": func(ms int64) string {
		if ms == 0 {
			return "disabled"
		}
		return fmt.Sprintf("%dms", ms)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Keyboard Matrix</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
table.grid { width: auto; }
table.grid td, table.grid th { width: 2em; text-align: center; border: 1px solid #ddd; }
td.down { background: #2a2; color: #fff; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Keyboard Matrix</h1>

<h2>Keys</h2>
<table class="grid" id="grid">
<tr><th></th>{{range .Cols}}<th>{{.}}</th>{{end}}</tr>
{{range $r, $row := .Grid}}<tr><th>{{$r}}</th>{{range $c, $down := $row}}<td id="k{{$r}}-{{$c}}"{{if $down}} class="down"{{end}}>{{if $down}}&#9632;{{end}}</td>{{end}}</tr>
{{end}}</table>

<h2>Scanning</h2>
<table>
<tr><th>State</th><td id="activity">{{.Activity}}</td></tr>
<tr><th>Interval</th><td id="interval">{{.Interval}}</td></tr>
<tr><th>Enabled</th><td>{{if .Scanning}}yes{{else}}no{{end}}</td></tr>
<tr><th>Scans</th><td>{{.Stats.Scans}}</td></tr>
<tr><th>Failed</th><td>{{.Stats.FailedScans}}</td></tr>
<tr><th>Changes</th><td>{{.Stats.Changes}}</td></tr>
{{if .Stats.LastError}}<tr><th>Last error</th><td>{{.Stats.LastError}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.SerialDevice}}<tr><th>Serial</th><td>{{.Config.SerialDevice}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
<tr><th>Power</th><td>{{.Config.PowerMode}}</td></tr>
<tr><th>Active / idle / sleep</th><td>{{.Config.ActiveMs}}ms / {{.Config.IdleMs}}ms / {{.Config.SleepMs}}ms</td></tr>
<tr><th>Idle timeout</th><td>{{ms .Config.IdleTimeoutMs}}</td></tr>
<tr><th>Sleep timeout</th><td>{{ms .Config.SleepTimeoutMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{ms .Config.HeartbeatMs}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  function refresh() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(j) {
      var s = j.status;
      var down = {};
      s.pressed.forEach(function(k) { down[k.row + "-" + k.col] = true; });
      for (var r = 0; r < 8; r++) {
        for (var c = 0; c < 8; c++) {
          var el = document.getElementById("k" + r + "-" + c);
          var on = !!down[r + "-" + c];
          el.className = on ? "down" : "";
          el.innerHTML = on ? "&#9632;" : "";
        }
      }
      document.getElementById("activity").textContent = s.activity;
      document.getElementById("interval").textContent = s.interval_ms + "ms";
    }).catch(function() {});
  }
  setInterval(refresh, 500);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	var grid [matrix.Rows][matrix.Cols]bool
	for r := 0; r < matrix.Rows; r++ {
		for c := 0; c < matrix.Cols; c++ {
			grid[r][c] = snap.Pressed[matrix.Index(r, c)]
		}
	}
	cols := make([]int, matrix.Cols)
	for i := range cols {
		cols[i] = i
	}

	data := struct {
		status.Snapshot
		Uptime time.Duration
		Grid   [matrix.Rows][matrix.Cols]bool
		Cols   []int
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Grid:     grid,
		Cols:     cols,
	}
	indexTmpl.Execute(w, data)
}
