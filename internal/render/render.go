// Package render prints result tables as column-aligned text.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"ctxview/internal/table"
)

// DefaultMaxWidth bounds a cell when Options.MaxWidth is zero.
const DefaultMaxWidth = 40

// Options configures table output.
type Options struct {
	Color    bool
	MaxWidth int // per cell; negative disables truncation
	NoHeader bool
}

// Table writes t to w. Columns are aligned by display width; contextual
// columns come after the selected ones because the table orders them so.
func Table(w io.Writer, t *table.Table, opts Options) error {
	cols := t.Columns()
	if len(cols) == 0 {
		return nil
	}
	limit := opts.MaxWidth
	if limit == 0 {
		limit = DefaultMaxWidth
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = cell(columnTitle(c), limit)
	}
	rows := t.Rows()
	cells := make([][]string, len(rows))
	for r, row := range rows {
		line := make([]string, len(cols))
		for i := range cols {
			line[i] = cell(t.Text(row, i), limit)
		}
		cells[r] = line
	}

	widths := make([]int, len(cols))
	if !opts.NoHeader {
		measure(widths, header)
	}
	for _, line := range cells {
		measure(widths, line)
	}

	bw := bufio.NewWriter(w)
	if !opts.NoHeader {
		var style func(string) string
		if opts.Color {
			headStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
			style = func(s string) string { return headStyle.Render(s) }
		}
		writeLine(bw, widths, header, style)
		rule := make([]string, len(cols))
		for i, width := range widths {
			rule[i] = strings.Repeat("-", width)
		}
		writeLine(bw, widths, rule, nil)
	}
	for _, line := range cells {
		writeLine(bw, widths, line, nil)
	}
	return bw.Flush()
}

// Summary writes a one-line row count.
func Summary(w io.Writer, t *table.Table) error {
	n := len(t.Rows())
	noun := "rows"
	if n == 1 {
		noun = "row"
	}
	_, err := fmt.Fprintf(w, "(%d %s)\n", n, noun)
	return err
}

func columnTitle(c table.Column) string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

func cell(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if limit < 0 || runewidth.StringWidth(s) <= limit {
		return s
	}
	if limit <= 3 {
		return runewidth.Truncate(s, limit, "")
	}
	return runewidth.Truncate(s, limit, "...")
}

func measure(widths []int, line []string) {
	for i, s := range line {
		widths[i] = max(widths[i], runewidth.StringWidth(s))
	}
}

// writeLine pads before styling so escape sequences never count as width.
func writeLine(w *bufio.Writer, widths []int, line []string, style func(string) string) {
	for i, s := range line {
		if i > 0 {
			w.WriteString("  ")
		}
		if i < len(line)-1 {
			s = runewidth.FillRight(s, widths[i])
		}
		if style != nil {
			s = style(s)
		}
		w.WriteString(s)
	}
	w.WriteString("\n")
}
