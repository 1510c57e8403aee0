package correlate

import (
	"strconv"
	"strings"

	"ctxview/internal/ctxindex"
	"ctxview/internal/diag"
	"ctxview/internal/event"
	"ctxview/internal/histogram"
	"ctxview/internal/query"
	"ctxview/internal/stream"
	"ctxview/internal/table"
	"ctxview/internal/timeline"
	"ctxview/internal/trace"
)

// Options configures a Run.
type Options struct {
	ShowContext    bool
	ContextTypes   []string // simple names; empty tracks every contextual type
	WindowSize     int      // <= 0 selects timeline.DefaultWindowSize
	MaxDiagnostics int
	Tracer         trace.Tracer
	Metrics        *Metrics
}

// Mode is the processing path chosen after resolution.
type Mode uint8

const (
	ModeUnresolved Mode = iota
	ModeSimple
	ModeDisplay
	ModeAggregation
)

func (m Mode) String() string {
	switch m {
	case ModeSimple:
		return "simple"
	case ModeDisplay:
		return "display"
	case ModeAggregation:
		return "aggregation"
	default:
		return "unresolved"
	}
}

// Run executes one query against one stream.
type Run struct {
	q      *query.Query
	opts   Options
	tracer trace.Tracer

	table     *table.Table
	histogram *histogram.Histogram
	diags     *diag.Bag
	index     *ctxindex.Index

	resolved   bool
	res        *query.Resolution
	mode       Mode
	byType     map[string]query.TypeFields
	timeline   *timeline.Timeline
	tracker    *Tracker
	sink       func(*event.Record)
	ctxTypes   map[string]bool
	contextual map[string]bool
	overflowed int
	completed  bool
}

// NewRun creates a run for q.
func NewRun(q *query.Query, opts Options) *Run {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.Nop
	}
	r := &Run{
		q:          q,
		opts:       opts,
		tracer:     tracer,
		table:      table.New(),
		histogram:  histogram.New(),
		diags:      diag.NewBag(opts.MaxDiagnostics),
		contextual: make(map[string]bool),
	}
	if len(opts.ContextTypes) > 0 {
		r.ctxTypes = make(map[string]bool, len(opts.ContextTypes))
		for _, name := range opts.ContextTypes {
			r.ctxTypes[name] = true
		}
	}
	return r
}

// Attach subscribes the run to s.
func (r *Run) Attach(s *stream.Stream) {
	s.OnMetadata(func(c *event.Catalog) { r.OnMetadata(c, s) })
	s.OnComplete(r.Complete)
}

// Table returns the result table.
func (r *Run) Table() *table.Table { return r.table }

// Mode returns the processing path, ModeUnresolved until metadata arrived.
func (r *Run) Mode() Mode { return r.mode }

// Index returns the contextual field index built from the metadata.
func (r *Run) Index() *ctxindex.Index { return r.index }

// Diagnostics returns every diagnostic collected during resolution.
func (r *Run) Diagnostics() *diag.Bag { return r.diags }

// SyntaxErrors returns diagnostics about the malformed query.
func (r *Run) SyntaxErrors() []*diag.Diagnostic { return r.diags.Channel(diag.ChannelSyntax) }

// ResolutionErrors returns diagnostics about unknown types and fields.
func (r *Run) ResolutionErrors() []*diag.Diagnostic {
	return r.diags.Channel(diag.ChannelResolution)
}

// Failed reports whether resolution produced errors.
func (r *Run) Failed() bool { return r.diags.HasErrors() }

// OnMetadata resolves the query against the first catalog announced and
// registers the handlers for the chosen path. Later catalogs are ignored.
// When resolution fails no handler is registered.
func (r *Run) OnMetadata(c *event.Catalog, s *stream.Stream) {
	if r.resolved {
		return
	}
	r.resolved = true

	sp := trace.Begin(r.tracer, trace.ScopeRun, "resolve")
	r.index = ctxindex.New(c.Types(), r.tracer)
	res, bag := query.Resolve(r.q, c, r.index)
	r.diags.Merge(bag)
	r.checkContextTypes()
	if res == nil || r.diags.HasErrors() {
		sp.End("failed")
		return
	}
	r.res = res
	r.table.AddFields(res.Fields)
	r.histogram.AddFields(res.Fields)
	r.selectMode()
	r.register(s)
	sp.WithExtra("mode", r.mode.String()).
		WithExtra("fields", strconv.Itoa(len(res.Fields))).
		End("")
}

func (r *Run) checkContextTypes() {
	for _, name := range r.opts.ContextTypes {
		info, ok := r.index.Lookup(name)
		if ok && info.SimpleName == name {
			continue
		}
		d := diag.New(diag.SevWarning, diag.IdxUnknownContextTypeRef, name,
			"no event type with contextual fields has this simple name")
		if ok {
			d.WithNote("context types are matched by simple name, use %s", info.SimpleName)
		}
		r.diags.Add(d)
	}
}

func (r *Run) selectMode() {
	grouped := r.q.Grouped()
	hasCtx := r.res.HasContextualReferences()
	switch {
	case !r.opts.ShowContext && !hasCtx:
		r.mode = ModeSimple
	case grouped && hasCtx:
		r.mode = ModeAggregation
	case grouped:
		r.mode = ModeSimple
	default:
		r.mode = ModeDisplay
	}
}

func (r *Run) register(s *stream.Stream) {
	groups := r.res.ByType()
	r.byType = make(map[string]query.TypeFields, len(groups))
	for _, g := range groups {
		r.byType[g.Type.Name()] = g
	}

	if r.mode == ModeSimple {
		for _, g := range groups {
			s.OnEvent(g.Type.Name(), r.simpleHandler(g))
		}
		return
	}

	r.timeline = timeline.New(r.opts.WindowSize)
	r.tracker = NewTracker()
	if r.mode == ModeAggregation {
		r.sink = r.aggregate
	} else {
		r.sink = r.addRow
	}
	for _, g := range groups {
		ft := g.Type
		s.OnEvent(ft.Name(), func(rec *event.Record) {
			if !ft.Accept(rec) {
				return
			}
			r.opts.Metrics.display()
			r.timeline.PushDisplay(rec)
			r.drainOverflow()
		})
	}
	s.OnAll(r.onContext)
}

func (r *Run) simpleHandler(g query.TypeFields) stream.Handler {
	ft, fields := g.Type, g.Fields
	grouped := r.q.Grouped()
	return func(rec *event.Record) {
		if !ft.Accept(rec) {
			return
		}
		r.opts.Metrics.display()
		if grouped {
			r.histogram.Add(rec, ft, fields, histogram.NoContext)
		} else {
			r.table.Add(rec, fields, nil)
		}
	}
}

// onContext pushes records of contextual types that pass the context-type
// filter.
func (r *Run) onContext(rec *event.Record) {
	t := rec.Type()
	has, ok := r.contextual[t.Name]
	if !ok {
		has = t.HasContextualFields()
		r.contextual[t.Name] = has
	}
	if !has || r.skipContextType(t) {
		return
	}
	r.opts.Metrics.span()
	r.timeline.PushSpan(rec)
	r.drainOverflow()
}

func (r *Run) skipContextType(t *event.Type) bool {
	return r.ctxTypes != nil && !r.ctxTypes[t.SimpleName()]
}

func (r *Run) drainOverflow() {
	if !r.timeline.Overflow() {
		return
	}
	n := 0
	for r.timeline.Overflow() {
		e, ok := r.timeline.Pop()
		if !ok {
			break
		}
		r.process(e, true)
		n++
	}
	r.opts.Metrics.depth(r.timeline.Len(), r.tracker.Threads())
	first := r.overflowed == 0
	r.overflowed += n
	// once saturated every push drains; only the first drain is traced and
	// Complete reports the total
	if first {
		trace.Point(r.tracer, trace.ScopeDrain, "overflow", "window saturated",
			map[string]string{
				"drained": strconv.Itoa(n),
				"window":  strconv.Itoa(r.timeline.Window()),
			})
	}
}

// process applies one drained entry. Context entries open or close spans;
// display entries go to the sink of the current mode.
func (r *Run) process(e timeline.Entry, overflow bool) {
	rec := e.Record
	switch {
	case e.Display():
		r.opts.Metrics.drained(roleDisplay, overflow)
		r.sink(rec)
	case e.Start():
		r.opts.Metrics.drained(roleStart, overflow)
		if !r.tracker.Begin(rec) && rec.Thread() == nil {
			r.opts.Metrics.untracked()
		}
	default:
		r.opts.Metrics.drained(roleEnd, overflow)
		r.tracker.End(rec)
	}
}

func (r *Run) addRow(rec *event.Record) {
	g, ok := r.byType[rec.Type().Name]
	if !ok {
		return
	}
	r.table.Add(rec, g.Fields, r.tracker.Snapshot(rec.Thread()))
}

func (r *Run) aggregate(rec *event.Record) {
	g, ok := r.byType[rec.Type().Name]
	if !ok {
		return
	}
	r.histogram.Add(rec, g.Type, g.Fields, r.extract)
}

// extract returns the value of a contextual field from the spans open on the
// display event's thread. The first span, in begin order, whose simple or
// fully qualified type name matches and that has the field wins.
func (r *Run) extract(f *query.Field, display *event.Record) any {
	if !f.Contextual || r.tracker == nil {
		return nil
	}
	v, _ := table.LookupContext(r.tracker.Active(display.Thread()), f.ContextType, f.ContextField)
	return v
}

// Complete drains everything still buffered and finalises the table. It runs
// once; later calls do nothing.
func (r *Run) Complete() {
	if r.completed {
		return
	}
	r.completed = true
	if r.res == nil {
		return
	}
	sp := trace.Begin(r.tracer, trace.ScopeRun, "complete")
	defer sp.End("")

	if r.timeline != nil {
		drained := 0
		for {
			e, ok := r.timeline.Pop()
			if !ok {
				break
			}
			r.process(e, false)
			drained++
		}
		r.opts.Metrics.depth(0, r.tracker.Threads())
		sp.WithExtra("drained", strconv.Itoa(drained))
		if r.overflowed > 0 {
			sp.WithExtra("overflowed", strconv.Itoa(r.overflowed))
		}
	}

	if r.mode == ModeDisplay && r.opts.ShowContext {
		added := r.table.AddContextualColumns()
		if len(added) > 0 {
			sp.WithExtra("context_columns", strings.Join(added, ","))
		}
	}
	if r.q.Grouped() {
		r.table.AddRows(r.histogram.Rows())
	}
}
