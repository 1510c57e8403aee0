package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"ctxview/internal/ui"
)

// runPipelineWithUI executes p on a goroutine while the progress view
// renders on stderr. The view never touches engine state.
func runPipelineWithUI(ctx context.Context, title string, p *pipeline) error {
	events := make(chan ui.Event, 256)
	errCh := make(chan error, 1)
	p.sink = ui.ChannelSink{Ch: events}

	go func() {
		errCh <- p.execute(ctx)
		close(events)
	}()

	model := ui.NewProgressModel(title, p.paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	err := <-errCh
	if uiErr != nil {
		return uiErr
	}
	return err
}
