package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ctxview/internal/event"
	"ctxview/internal/query"
	"ctxview/internal/stream"
	"ctxview/internal/table"
	"ctxview/internal/trace"
)

var (
	traceType = event.NewType(1, "demo.Trace",
		event.FieldDescriptor{Name: "traceId", Kind: event.KindString, Contextual: true},
	)
	spanType = event.NewType(2, "demo.Span",
		event.FieldDescriptor{Name: "spanId", Kind: event.KindString, Contextual: true},
		event.FieldDescriptor{Name: "depth", Kind: event.KindInt},
	)
	workType = event.NewType(3, "demo.WorkEvent",
		event.FieldDescriptor{Name: "task", Kind: event.KindString},
	)
	catalog = event.NewCatalog(traceType, spanType, workType)

	thread1 = &event.Thread{ID: 1, Name: "worker-1"}
	thread2 = &event.Thread{ID: 2, Name: "worker-2"}
)

func sec(s int64) time.Time { return time.Unix(1_700_000_000+s, 0) }

func traceSpan(th *event.Thread, start, end int64, id string) *event.Record {
	return event.NewRecord(traceType, sec(start), sec(end), th, id)
}

func span(th *event.Thread, start, end int64, id string) *event.Record {
	return event.NewRecord(spanType, sec(start), sec(end), th, id, int64(1))
}

func work(th *event.Thread, at int64, task string) *event.Record {
	return event.NewRecord(workType, sec(at), time.Time{}, th, task)
}

func viewQuery() *query.Query {
	return &query.Query{From: []string{"WorkEvent"}, Select: []query.Column{{Ref: "task"}}}
}

func execute(t *testing.T, src stream.Source, q *query.Query, opts Options) *Run {
	t.Helper()
	s := stream.New(src)
	r := NewRun(q, opts)
	r.Attach(s)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return r
}

func runSorted(t *testing.T, q *query.Query, opts Options, records ...*event.Record) *Run {
	t.Helper()
	return execute(t, stream.NewSliceSource(catalog, records), q, opts)
}

// cells maps task -> column -> text.
func cells(t *testing.T, tbl *table.Table) map[string]map[string]string {
	t.Helper()
	out := make(map[string]map[string]string)
	for _, row := range tbl.Rows() {
		m := make(map[string]string)
		for i, c := range tbl.Columns() {
			m[c.Name] = tbl.Text(row, i)
		}
		out[m["task"]] = m
	}
	return out
}

func hasColumn(tbl *table.Table, name string) bool {
	for _, c := range tbl.Columns() {
		if c.Name == name {
			return true
		}
	}
	return false
}

func TestSpanCommitEndsCorrelation(t *testing.T) {
	r := runSorted(t, viewQuery(), Options{ShowContext: true},
		traceSpan(thread1, 10, 20, "req-1"),
		work(thread1, 11, "D1"),
		work(thread1, 12, "D2"),
		work(thread1, 13, "D3"),
		work(thread1, 21, "D4"),
	)
	if r.Mode() != ModeDisplay {
		t.Fatalf("mode = %s, want display", r.Mode())
	}
	got := cells(t, r.Table())
	if len(got) != 4 {
		t.Fatalf("got %d rows, want 4", len(got))
	}
	for _, task := range []string{"D1", "D2", "D3"} {
		if v := got[task]["Trace.traceId"]; v != "req-1" {
			t.Fatalf("%s Trace.traceId = %q, want req-1", task, v)
		}
	}
	if v := got["D4"]["Trace.traceId"]; v != "N/A" {
		t.Fatalf("D4 Trace.traceId = %q, want N/A", v)
	}
}

func TestThreadsDoNotCrossContaminate(t *testing.T) {
	a := traceSpan(thread1, 10, 20, "req-A")
	b := traceSpan(thread2, 10, 20, "req-B")
	da := work(thread1, 15, "DA")
	db := work(thread2, 15, "DB")

	orders := map[string][]*event.Record{
		"thread 1 first": {da, db, a, b},
		"thread 2 first": {db, da, b, a},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			r := execute(t, stream.NewOrderedSource(catalog, order), viewQuery(), Options{ShowContext: true})
			got := cells(t, r.Table())
			if got["DA"]["Trace.traceId"] != "req-A" || got["DB"]["Trace.traceId"] != "req-B" {
				t.Fatalf("cross-thread correlation: %v", got)
			}
		})
	}
}

func TestRecordingsDoNotShareThreads(t *testing.T) {
	procA := &event.Thread{Source: 1, ID: 1, Name: "procA-main"}
	procB := &event.Thread{Source: 2, ID: 1, Name: "procB-main"}
	a := stream.NewSliceSource(catalog, []*event.Record{
		traceSpan(procA, 10, 20, "req-A"),
		work(procA, 16, "DA"),
	})
	b := stream.NewSliceSource(catalog, []*event.Record{
		work(procB, 15, "DB"),
	})

	s := stream.New(a, b)
	r := NewRun(viewQuery(), Options{ShowContext: true})
	r.Attach(s)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := cells(t, r.Table())
	if got["DA"]["Trace.traceId"] != "req-A" {
		t.Fatalf("DA Trace.traceId = %q, want req-A", got["DA"]["Trace.traceId"])
	}
	if v := got["DB"]["Trace.traceId"]; v != "N/A" {
		t.Fatalf("DB correlated with a span of another recording: %q", v)
	}
}

func TestNestedSpans(t *testing.T) {
	r := runSorted(t, viewQuery(), Options{ShowContext: true},
		traceSpan(thread1, 10, 30, "req-1"),
		span(thread1, 12, 18, "s-1"),
		work(thread1, 15, "inner"),
		work(thread1, 20, "outer"),
		work(thread1, 5, "before"),
		work(thread1, 35, "after"),
	)
	got := cells(t, r.Table())
	want := map[string][2]string{
		"inner":  {"req-1", "s-1"},
		"outer":  {"req-1", "N/A"},
		"before": {"N/A", "N/A"},
		"after":  {"N/A", "N/A"},
	}
	for task, w := range want {
		if got[task]["Trace.traceId"] != w[0] || got[task]["Span.spanId"] != w[1] {
			t.Fatalf("%s = %v, want traceId=%s spanId=%s", task, got[task], w[0], w[1])
		}
	}
	if hasColumn(r.Table(), "Span.depth") {
		t.Fatalf("non-contextual field became a column")
	}
}

func TestContextTypeFilter(t *testing.T) {
	r := runSorted(t, viewQuery(), Options{ShowContext: true, ContextTypes: []string{"Span"}},
		traceSpan(thread1, 10, 30, "req-1"),
		span(thread1, 12, 18, "s-1"),
		work(thread1, 15, "inner"),
	)
	if hasColumn(r.Table(), "Trace.traceId") {
		t.Fatalf("filtered context type produced a column")
	}
	row := r.Table().Rows()[0]
	for _, ctx := range row.Contexts() {
		if ctx.Type() == traceType {
			t.Fatalf("filtered context type was tracked")
		}
	}
	if got := cells(t, r.Table())["inner"]["Span.spanId"]; got != "s-1" {
		t.Fatalf("Span.spanId = %q, want s-1", got)
	}
	if r.Diagnostics().Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", r.Diagnostics().Items())
	}
}

func TestUnknownContextTypeWarns(t *testing.T) {
	r := runSorted(t, viewQuery(), Options{ShowContext: true, ContextTypes: []string{"demo.Span", "Nope"}},
		work(thread1, 1, "x"),
	)
	if r.Failed() {
		t.Fatalf("warnings must not fail the run")
	}
	if r.Diagnostics().Len() != 2 {
		t.Fatalf("diagnostics = %v, want 2 warnings", r.Diagnostics().Items())
	}
}

func TestThreadlessContextIsUntracked(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := runSorted(t, viewQuery(), Options{ShowContext: true, Metrics: m},
		traceSpan(nil, 10, 20, "req-1"),
		work(thread1, 15, "D1"),
		work(nil, 16, "D2"),
	)
	if hasColumn(r.Table(), "Trace.traceId") {
		t.Fatalf("thread-less context produced a column")
	}
	for _, row := range r.Table().Rows() {
		if len(row.Contexts()) != 0 {
			t.Fatalf("row has contexts %v", row.Contexts())
		}
	}
	if got := testutil.ToFloat64(m.Untracked); got != 1 {
		t.Fatalf("untracked = %v, want 1", got)
	}
}

func TestWindowOverflow(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := runSorted(t, viewQuery(), Options{ShowContext: true, WindowSize: 3, Metrics: m},
		traceSpan(thread1, 10, 20, "req-1"),
		work(thread1, 11, "D1"),
		work(thread1, 12, "D2"),
		work(thread1, 21, "D3"),
	)
	got := cells(t, r.Table())
	if got["D1"]["Trace.traceId"] != "req-1" || got["D2"]["Trace.traceId"] != "req-1" || got["D3"]["Trace.traceId"] != "N/A" {
		t.Fatalf("correlation across overflow drains: %v", got)
	}
	if v := testutil.ToFloat64(m.OverflowDrains); v != 2 {
		t.Fatalf("overflow drains = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.Drained.WithLabelValues(roleDisplay)); v != 3 {
		t.Fatalf("drained display = %v, want 3", v)
	}
	if v := testutil.ToFloat64(m.DisplayEvents); v != 3 {
		t.Fatalf("display events = %v, want 3", v)
	}
	if v := testutil.ToFloat64(m.ContextSpans); v != 1 {
		t.Fatalf("context spans = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.TimelineDepth); v != 0 {
		t.Fatalf("timeline depth after completion = %v, want 0", v)
	}
}

func TestOverflowTracedOnce(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelDetail)
	records := []*event.Record{traceSpan(thread1, 0, 100, "req-1")}
	for i := int64(1); i <= 10; i++ {
		records = append(records, work(thread1, i, "D"))
	}
	runSorted(t, viewQuery(), Options{ShowContext: true, WindowSize: 2, Tracer: ring}, records...)

	overflow := 0
	total := ""
	for _, ev := range ring.Snapshot() {
		if ev.Name == "overflow" {
			overflow++
		}
		if ev.Name == "complete" && ev.Kind == trace.KindSpanEnd {
			total = ev.Extra["overflowed"]
		}
	}
	if overflow != 1 {
		t.Fatalf("overflow trace events = %d, want 1", overflow)
	}
	if total == "" || total == "0" {
		t.Fatalf("complete span overflowed = %q", total)
	}
}

func TestAggregationByContextualField(t *testing.T) {
	q := &query.Query{
		From: []string{"WorkEvent"},
		Select: []query.Column{
			{Ref: "Trace.traceId"},
			{Ref: "task", Aggregate: "count"},
		},
		GroupBy: []string{"Trace.traceId"},
	}
	r := runSorted(t, q, Options{},
		traceSpan(thread1, 10, 20, "req-1"),
		traceSpan(thread2, 10, 20, "req-2"),
		work(thread1, 11, "a"),
		work(thread2, 12, "b"),
		work(thread1, 13, "c"),
		work(thread1, 14, "d"),
		work(thread1, 25, "e"),
	)
	if r.Mode() != ModeAggregation {
		t.Fatalf("mode = %s, want aggregation", r.Mode())
	}
	tbl := r.Table()
	want := [][2]string{{"req-1", "3"}, {"req-2", "1"}, {"N/A", "1"}}
	rows := tbl.Rows()
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, row := range rows {
		if tbl.Text(row, 0) != want[i][0] || tbl.Text(row, 1) != want[i][1] {
			t.Fatalf("row %d = %s/%s, want %s/%s", i, tbl.Text(row, 0), tbl.Text(row, 1), want[i][0], want[i][1])
		}
	}

	r.Complete()
	if len(tbl.Rows()) != len(want) {
		t.Fatalf("second Complete added rows")
	}
}

func TestModeSelection(t *testing.T) {
	grouped := &query.Query{
		From:    []string{"WorkEvent"},
		Select:  []query.Column{{Ref: "task"}},
		GroupBy: []string{"task"},
	}
	selected := &query.Query{
		From:   []string{"WorkEvent"},
		Select: []query.Column{{Ref: "task"}, {Ref: "Trace.traceId"}},
	}
	tests := []struct {
		name string
		q    *query.Query
		show bool
		want Mode
	}{
		{name: "plain", q: viewQuery(), want: ModeSimple},
		{name: "show context", q: viewQuery(), show: true, want: ModeDisplay},
		{name: "group-by without context", q: grouped, show: true, want: ModeSimple},
		{name: "selected contextual field", q: selected, want: ModeDisplay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runSorted(t, tt.q, Options{ShowContext: tt.show},
				traceSpan(thread1, 10, 20, "req-1"),
				work(thread1, 15, "a"),
			)
			if r.Mode() != tt.want {
				t.Fatalf("mode = %s, want %s", r.Mode(), tt.want)
			}
			if len(r.Table().Rows()) != 1 {
				t.Fatalf("got %d rows, want 1", len(r.Table().Rows()))
			}
		})
	}
}

func TestSelectedContextualFieldWithoutShowContext(t *testing.T) {
	q := &query.Query{
		From:   []string{"WorkEvent"},
		Select: []query.Column{{Ref: "task"}, {Ref: "Trace.traceId", Label: "trace"}},
	}
	r := runSorted(t, q, Options{},
		traceSpan(thread1, 10, 20, "req-1"),
		span(thread1, 11, 19, "s-1"),
		work(thread1, 15, "a"),
	)
	tbl := r.Table()
	if len(tbl.Columns()) != 2 {
		t.Fatalf("columns = %v, discovered columns need show-context", tbl.Columns())
	}
	if got := tbl.Text(tbl.Rows()[0], 1); got != "req-1" {
		t.Fatalf("trace = %q, want req-1", got)
	}
}

func TestFilterBeforeTimeline(t *testing.T) {
	q := viewQuery()
	q.Where = []query.Condition{{Ref: "task", Value: "keep"}}
	m := NewMetrics(prometheus.NewRegistry())
	r := runSorted(t, q, Options{ShowContext: true, Metrics: m},
		traceSpan(thread1, 10, 20, "req-1"),
		work(thread1, 11, "keep"),
		work(thread1, 12, "drop"),
	)
	if len(r.Table().Rows()) != 1 {
		t.Fatalf("got %d rows, want 1", len(r.Table().Rows()))
	}
	if v := testutil.ToFloat64(m.DisplayEvents); v != 1 {
		t.Fatalf("display events = %v, want 1", v)
	}
}

func TestResolutionFailureRegistersNothing(t *testing.T) {
	tests := []struct {
		name       string
		q          *query.Query
		syntax     bool
		resolution bool
	}{
		{name: "syntax", q: &query.Query{}, syntax: true},
		{name: "resolution", q: &query.Query{From: []string{"WorkEvent"}, Select: []query.Column{{Ref: "nope"}}}, resolution: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runSorted(t, tt.q, Options{ShowContext: true},
				traceSpan(thread1, 10, 20, "req-1"),
				work(thread1, 15, "a"),
			)
			if (len(r.SyntaxErrors()) > 0) != tt.syntax || (len(r.ResolutionErrors()) > 0) != tt.resolution {
				t.Fatalf("syntax = %v, resolution = %v", r.SyntaxErrors(), r.ResolutionErrors())
			}
			if r.Mode() != ModeUnresolved || len(r.Table().Rows()) != 0 {
				t.Fatalf("failed run processed events")
			}
		})
	}
}

func TestOnlyFirstMetadataIsUsed(t *testing.T) {
	s := stream.New()
	r := NewRun(viewQuery(), Options{})
	r.OnMetadata(catalog, s)
	other := event.NewCatalog(event.NewType(9, "demo.WorkEvent",
		event.FieldDescriptor{Name: "task"},
		event.FieldDescriptor{Name: "extra"},
	))
	r.OnMetadata(other, s)
	if len(r.Table().Fields()) != 1 {
		t.Fatalf("fields = %d, second metadata was applied", len(r.Table().Fields()))
	}
}
