package addons

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fidiego/hardump/pkg/proxy"
)

// colorFor returns an ANSI colour escape for an HTTP status code.
func colorFor(code int) string {
	switch {
	case code >= 500:
		return "\033[31m" // red
	case code >= 400:
		return "\033[33m" // yellow
	case code >= 300:
		return "\033[36m" // cyan
	case code >= 200:
		return "\033[32m" // green
	default:
		return "\033[0m"
	}
}

const resetColor = "\033[0m"

// LogAddon writes one-line summaries of completed exchanges to an io.Writer:
// METHOD STATUS HOST PATH [duration] [size]
type LogAddon struct {
	w       io.Writer
	noColor bool
}

// NewLogAddon creates a LogAddon that writes to w.
func NewLogAddon(w io.Writer, noColor bool) *LogAddon {
	return &LogAddon{w: w, noColor: noColor}
}

func (l *LogAddon) OnComplete(ex *proxy.Exchange) {
	l.write(ex)
}

func (l *LogAddon) OnError(ex *proxy.Exchange, _ error) {
	l.write(ex)
}

func (l *LogAddon) write(ex *proxy.Exchange) {
	if ex.Request == nil {
		return
	}

	method := fmt.Sprintf("%-7s", ex.Request.Method)
	host := ex.Request.Host
	if host == "" {
		host = "-"
	}

	path := ex.Request.Path
	if path == "" {
		path = "/"
	}

	dur := formatDuration(ex.Duration())

	var statusPart string
	if ex.Response != nil {
		code := ex.Response.StatusCode
		codeStr := fmt.Sprintf("%d", code)
		size := formatSize(len(ex.Response.Body))
		if !l.noColor {
			statusPart = fmt.Sprintf("%s%s%s %s", colorFor(code), codeStr, resetColor, size)
		} else {
			statusPart = fmt.Sprintf("%s %s", codeStr, size)
		}
	} else {
		if !l.noColor {
			statusPart = "\033[31mERR\033[0m"
		} else {
			statusPart = "ERR"
		}
	}

	tags := ""
	if len(ex.Tags) > 0 {
		tags = " [" + strings.Join(ex.Tags, ",") + "]"
	}

	fmt.Fprintf(l.w, "%s %s  %-25s %-50s %s %s%s\n",
		method, statusPart, truncate(host, 25), truncate(path, 50), dur, ex.Upstream, tags)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%3dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%3dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}

func formatSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fK", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/1024/1024)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
