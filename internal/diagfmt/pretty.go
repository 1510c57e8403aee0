// Package diagfmt prints diagnostic bags for people and for tools.
package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"ctxview/internal/diag"
)

// Pretty writes one line per diagnostic:
//
//	ERROR RES2002: Span.nope: unknown field
//
// followed by indented notes. Items are printed in bag order; callers sort first.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) error {
	items := bag.Items()
	if opts.Max > 0 && opts.Max < len(items) {
		items = items[:opts.Max]
	}
	for _, d := range items {
		sev := severityColor(d.Severity, opts.Color).Sprint(d.Severity.String())
		code := d.Code.ID()
		if opts.Color {
			code = color.New(color.Bold).Sprint(code)
		}
		msg := d.Message
		if d.Subject != "" {
			msg = d.Subject + ": " + msg
		}
		line := fmt.Sprintf("%s %s: %s", sev, code, clip(msg, opts.Width))
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if !opts.ShowNotes {
			continue
		}
		for _, note := range d.Notes {
			if _, err := fmt.Fprintf(w, "  note: %s\n", clip(note, opts.Width)); err != nil {
				return err
			}
		}
	}
	if n := bag.Dropped(); n > 0 {
		if _, err := fmt.Fprintf(w, "... %d more diagnostics dropped\n", n); err != nil {
			return err
		}
	}
	return nil
}

func severityColor(sev diag.Severity, enabled bool) *color.Color {
	var c *color.Color
	switch sev {
	case diag.SevError:
		c = color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		c = color.New(color.FgYellow, color.Bold)
	default:
		c = color.New(color.FgCyan)
	}
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func clip(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
