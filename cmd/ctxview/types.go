package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"ctxview/internal/ctxindex"
	"ctxview/internal/event"
	"ctxview/internal/recording"
	"ctxview/internal/stream"
	"ctxview/internal/trace"
)

var typesCmd = &cobra.Command{
	Use:   "types <recording>...",
	Short: "List the event types of recordings and their contextual fields",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		srcs, err := recording.OpenAll(cmd.Context(), args, st.jobs)
		if err != nil {
			return err
		}
		s := stream.New(srcs...)
		defer s.Close()

		catalog := s.Catalog()
		idx := ctxindex.New(catalog.Types(), trace.FromContext(cmd.Context()))
		return printTypes(cmd.OutOrStdout(), catalog, idx, st.color)
	},
}

func printTypes(w io.Writer, catalog *event.Catalog, idx *ctxindex.Index, colored bool) error {
	nameStyle := lipgloss.NewStyle().Bold(true)
	markStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	paint := func(style lipgloss.Style, s string) string {
		if !colored {
			return s
		}
		return style.Render(s)
	}
	for _, t := range catalog.Types() {
		header := t.Name
		if t.Label != "" {
			header += " (" + t.Label + ")"
		}
		if _, ok := idx.Lookup(t.Name); ok {
			header += " " + paint(markStyle, "[context]")
		}
		if _, err := fmt.Fprintln(w, paint(nameStyle, header)); err != nil {
			return err
		}
		width := 0
		for _, f := range t.Fields {
			width = max(width, runewidth.StringWidth(f.Name))
		}
		for _, f := range t.Fields {
			line := "  " + runewidth.FillRight(f.Name, width) + "  " + f.Kind.String()
			if f.Contextual {
				line += "  " + paint(markStyle, "contextual")
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	for _, c := range idx.Collisions() {
		if _, err := fmt.Fprintf(w, "note: %s resolves to %s; use %s.<field> for the other type\n",
			c.SimpleName, c.Kept, c.Ignored); err != nil {
			return err
		}
	}
	return nil
}
