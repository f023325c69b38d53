// Package templates renders the HTML pages of the web UI.
package templates

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/hdlcheck/internal/core"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
table{border-collapse:collapse;margin-top:1rem;font-size:.9rem}
th,td{border:1px solid #cbd2d9;padding:.3rem .6rem;text-align:left;vertical-align:top}
th{background:#f5f7fa}.passed{color:#207227}.failed{color:#b42318}
.alert{border:1px solid #b42318;background:#fef3f2;padding:1rem;max-width:40rem}`

// layout wraps body in a minimal HTML document.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), pageStyle); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// RunReport renders a stored run and its failed rows.
func RunReport(run core.RunSummary, failed []core.FailedRowRecord) templ.Component {
	return layout("Run "+run.ID, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}

		ew.printf("<h1>Validation run <code>%s</code></h1>", templ.EscapeString(run.ID))
		ew.printf("<p>Profile <strong>%s</strong>, %s check, started %s, took %d ms.</p>",
			templ.EscapeString(run.Profile),
			templ.EscapeString(run.Kind),
			templ.EscapeString(run.StartedAt.Format("2006-01-02 15:04:05 MST")),
			run.DurationMs)
		ew.printf("<p class=\"%s\">Status: <strong>%s</strong>. %d rows, %d passed, %d failed, %d bundles.</p>",
			templ.EscapeString(run.Status), templ.EscapeString(run.Status),
			run.TotalRows, run.PassedRows, run.FailedRows, run.Partitions)

		if len(failed) == 0 {
			ew.printf("<p>No failed rows.</p>")
			return ew.err
		}

		ew.printf("<p><a href=\"/api/runs/%s/failed-rows\">Download failed rows (CSV)</a></p>", templ.EscapeString(run.ID))
		ew.printf("<table><thead><tr><th>Component</th><th>Line</th><th>Identity</th><th>Reason</th><th>Values</th></tr></thead><tbody>")
		for _, f := range failed {
			ew.printf("<tr><td>%s</td><td>%s</td><td>%s</td><td class=\"failed\">%s</td><td>%s</td></tr>",
				templ.EscapeString(f.Component),
				strconv.Itoa(f.Line),
				templ.EscapeString(f.Identity),
				templ.EscapeString(f.Reason),
				templ.EscapeString(formatValues(f.Values)))
		}
		ew.printf("</tbody></table>")
		return ew.err
	}))
}

// ErrorPage renders a user-facing error.
func ErrorPage(message, action, code string) templ.Component {
	return layout("Error", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		ew := &errWriter{w: w}
		ew.printf("<div class=\"alert\" role=\"alert\"><strong>%s</strong>", templ.EscapeString(message))
		if action != "" {
			ew.printf("<p>%s</p>", templ.EscapeString(action))
		}
		ew.printf("<p><small>Code: %s</small></p></div>", templ.EscapeString(code))
		return ew.err
	}))
}

// formatValues renders a row's values as "col=value" pairs in column order.
func formatValues(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k + "=" + values[k]
	}
	return out
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
