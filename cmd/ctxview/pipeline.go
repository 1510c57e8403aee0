package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"ctxview/internal/correlate"
	"ctxview/internal/diag"
	"ctxview/internal/diagfmt"
	"ctxview/internal/event"
	"ctxview/internal/observ"
	"ctxview/internal/query"
	"ctxview/internal/recording"
	"ctxview/internal/render"
	"ctxview/internal/stream"
	"ctxview/internal/trace"
	"ctxview/internal/ui"
)

// errQueryFailed is returned after error diagnostics have been printed.
var errQueryFailed = errors.New("query failed")

// pipeline opens recordings, streams them through one correlation run and
// leaves the finished run behind.
type pipeline struct {
	paths    []string
	jobs     int
	build    func(*event.Catalog) *query.Query
	opts     correlate.Options
	timer    *observ.Timer
	sink     ui.ChannelSink
	resolved func(*correlate.Run) // called after resolution, before records flow

	run *correlate.Run
}

func (p *pipeline) execute(ctx context.Context) error {
	done := p.timer.Track("open")
	srcs, err := recording.OpenAllObserved(ctx, p.paths, p.jobs, func(ev recording.OpenEvent) {
		stage := ui.StageOpening
		switch {
		case ev.Err != nil:
			stage = ui.StageError
		case ev.Done:
			stage = ui.StageReading
		}
		p.sink.Emit(ui.Event{File: ev.Path, Stage: stage})
	})
	if err != nil {
		done("failed")
		return err
	}
	done(strconv.Itoa(len(srcs)) + " recordings")

	s := stream.New(srcs...)
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.opts.Tracer = trace.FromContext(ctx)
	p.run = correlate.NewRun(p.build(s.Catalog()), p.opts)
	p.run.Attach(s)
	s.OnMetadata(func(*event.Catalog) {
		if p.resolved != nil {
			p.resolved(p.run)
		}
		if p.run.Failed() {
			cancel()
		}
	})
	s.OnProgress(func(pr stream.Progress) {
		stage := ui.StageReading
		fraction := float64(pr.Exhausted) / float64(max(pr.Sources, 1))
		if pr.Done {
			stage, fraction = ui.StageDone, 1
		}
		p.sink.Emit(ui.Event{Stage: stage, Records: pr.Delivered, Fraction: fraction})
	})

	streamed := p.timer.Track("stream")
	err = s.Start(ctx)
	if p.run.Failed() {
		streamed("aborted")
		return nil
	}
	if err != nil {
		streamed("failed")
		return err
	}
	streamed(fmt.Sprintf("%d rows, %s mode", len(p.run.Table().Rows()), p.run.Mode()))
	return nil
}

// runQuery executes a query built from the merged catalog of paths and
// prints the result table.
func runQuery(cmd *cobra.Command, st *settings, paths []string, build func(*event.Catalog) *query.Query) error {
	ctx := cmd.Context()
	timer := observ.NewTimer()

	var reg *prometheus.Registry
	opts := correlate.Options{
		ShowContext:    st.showContext,
		ContextTypes:   st.contextTypes,
		WindowSize:     st.window,
		MaxDiagnostics: st.maxDiags,
	}
	if st.metrics {
		reg = prometheus.NewRegistry()
		opts.Metrics = correlate.NewMetrics(reg)
	}

	p := &pipeline{
		paths: paths,
		jobs:  st.jobs,
		build: build,
		opts:  opts,
		timer: timer,
	}
	errOut := cmd.ErrOrStderr()
	printed := false
	report := func(run *correlate.Run) {
		printed = true
		_ = printDiagnostics(errOut, run.Diagnostics(), st)
	}

	var err error
	if !st.quiet && shouldUseTUI(st.ui) {
		err = runPipelineWithUI(ctx, "ctxview", p)
	} else {
		p.resolved = report
		err = p.execute(ctx)
	}
	if err != nil {
		return err
	}
	if !printed {
		report(p.run)
	}
	if p.run.Failed() {
		return errQueryFailed
	}

	rendered := timer.Track("render")
	out := cmd.OutOrStdout()
	if err := render.Table(out, p.run.Table(), render.Options{Color: st.color, MaxWidth: st.maxWidth}); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	rendered("")
	if !st.quiet {
		if err := render.Summary(errOut, p.run.Table()); err != nil {
			return err
		}
	}
	if st.timings {
		if err := timer.WriteSummary(errOut); err != nil {
			return err
		}
	}
	if reg != nil {
		if err := dumpMetrics(errOut, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func printDiagnostics(w io.Writer, bag *diag.Bag, st *settings) error {
	if bag.Len() == 0 {
		return nil
	}
	bag.Sort()
	if st.quiet && !bag.HasErrors() {
		return nil
	}
	return diagfmt.Pretty(w, bag, diagfmt.PrettyOpts{
		Color:     st.color,
		ShowNotes: !st.quiet,
		Max:       st.maxDiags,
	})
}

func dumpMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	return writeFamilies(w, families)
}

// writeFamilies encodes metric families in the Prometheus text format.
func writeFamilies(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
