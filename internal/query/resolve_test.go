package query

import (
	"testing"
	"time"

	"ctxview/internal/ctxindex"
	"ctxview/internal/diag"
	"ctxview/internal/event"
	"ctxview/internal/trace"
)

func testCatalog() *event.Catalog {
	return event.NewCatalog(
		event.NewType(1, "demo.Trace",
			event.FieldDescriptor{Name: "traceId", Kind: event.KindString, Contextual: true},
			event.FieldDescriptor{Name: "service", Kind: event.KindString},
		),
		event.NewType(2, "demo.WorkEvent",
			event.FieldDescriptor{Name: "task", Kind: event.KindString},
			event.FieldDescriptor{Name: "size", Kind: event.KindInt},
		),
	)
}

func resolve(t *testing.T, q *Query) (*Resolution, *diag.Bag) {
	t.Helper()
	cat := testCatalog()
	return Resolve(q, cat, ctxindex.New(cat.Types(), trace.Nop))
}

func TestResolveSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		code diag.Code
	}{
		{name: "empty from", q: Query{}, code: diag.SynEmptyFrom},
		{name: "empty column", q: Query{From: []string{"WorkEvent"}, Select: []Column{{Ref: " "}}}, code: diag.SynEmptyReference},
		{name: "trailing dot", q: Query{From: []string{"WorkEvent"}, Select: []Column{{Ref: "Trace."}}}, code: diag.SynMalformedReference},
		{name: "unknown aggregate", q: Query{From: []string{"WorkEvent"}, Select: []Column{{Ref: "size", Aggregate: "median"}}, GroupBy: []string{"task"}}, code: diag.SynUnknownAggregate},
		{name: "aggregate without group-by", q: Query{From: []string{"WorkEvent"}, Select: []Column{{Ref: "size", Aggregate: "sum"}}}, code: diag.SynAggregateWithoutGroupBy},
		{name: "empty condition", q: Query{From: []string{"WorkEvent"}, Where: []Condition{{Value: "x"}}}, code: diag.SynEmptyCondition},
		{name: "duplicate label", q: Query{From: []string{"WorkEvent"}, Select: []Column{{Ref: "task", Label: "a"}, {Ref: "size", Label: "a"}}}, code: diag.SynDuplicateLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, bag := resolve(t, &tt.q)
			if res != nil {
				t.Fatalf("expected no resolution")
			}
			syn := bag.Channel(diag.ChannelSyntax)
			if len(syn) == 0 || syn[0].Code != tt.code {
				t.Fatalf("syntax diagnostics = %v, want %s", bag.Messages(diag.ChannelSyntax), tt.code.ID())
			}
			if len(bag.Channel(diag.ChannelResolution)) != 0 {
				t.Fatalf("resolution attempted despite syntax errors")
			}
		})
	}
}

func TestResolveResolutionErrors(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		code diag.Code
	}{
		{name: "unknown type", q: Query{From: []string{"Nope"}}, code: diag.ResUnknownType},
		{name: "unknown field", q: Query{From: []string{"WorkEvent"}, Select: []Column{{Ref: "weight"}}}, code: diag.ResUnknownField},
		{name: "non-contextual foreign field", q: Query{From: []string{"WorkEvent"}, Select: []Column{{Ref: "Trace.service"}}}, code: diag.ResUnknownField},
		{name: "unknown group-by", q: Query{From: []string{"WorkEvent"}, GroupBy: []string{"Trace.nope"}}, code: diag.ResUnknownGroupBy},
		{name: "unknown condition", q: Query{From: []string{"WorkEvent"}, Where: []Condition{{Ref: "weight", Value: "1"}}}, code: diag.ResUnknownConditionField},
		{name: "contextual condition", q: Query{From: []string{"WorkEvent"}, Where: []Condition{{Ref: "Trace.traceId", Value: "a"}}}, code: diag.ResContextualCondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, bag := resolve(t, &tt.q)
			if res != nil {
				t.Fatalf("expected no resolution")
			}
			errs := bag.Channel(diag.ChannelResolution)
			if len(errs) == 0 || errs[0].Code != tt.code {
				t.Fatalf("resolution diagnostics = %v, want %s", bag.Messages(diag.ChannelResolution), tt.code.ID())
			}
		})
	}
}

func TestResolveContextualField(t *testing.T) {
	res, bag := resolve(t, &Query{
		From:    []string{"WorkEvent"},
		Select:  []Column{{Ref: "Trace.traceId"}, {Ref: "size", Aggregate: "sum"}},
		GroupBy: []string{"Trace.traceId"},
	})
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if !res.HasContextualReferences() {
		t.Fatalf("HasContextualReferences = false")
	}
	ctx := res.Fields[0]
	if !ctx.Contextual || ctx.ContextType != "Trace" || ctx.ContextField != "traceId" || !ctx.Grouping {
		t.Fatalf("contextual field = %+v", ctx)
	}
	if len(ctx.Sources) != 1 || ctx.Sources[0].Get != nil {
		t.Fatalf("contextual field should have one getter-less source, got %+v", ctx.Sources)
	}
	if res.Fields[1].Label != "sum(size)" || res.Fields[1].Index != 1 {
		t.Fatalf("aggregated field = %+v", res.Fields[1])
	}
	if len(res.GroupBy) != 1 || res.GroupBy[0] != ctx {
		t.Fatalf("group-by should reuse the selected column")
	}
}

func TestResolveDirectAndPseudoFields(t *testing.T) {
	res, bag := resolve(t, &Query{
		From:   []string{"demo.WorkEvent"},
		Select: []Column{{Ref: "WorkEvent.task"}, {Ref: "duration"}, {Ref: "eventThread"}},
		Where:  []Condition{{Ref: "task", Value: "Task-1"}},
	})
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	typ := res.Types[0].Type
	th := &event.Thread{ID: 7, Name: "worker-7"}
	rec := event.NewRecord(typ, time.Unix(1, 0), time.Unix(3, 0), th, "Task-1", int64(4))

	if got := res.Fields[0].Value(rec); got != "Task-1" {
		t.Fatalf("task = %v", got)
	}
	if got := res.Fields[1].Value(rec); got != 2*time.Second {
		t.Fatalf("duration = %v", got)
	}
	if got := res.Fields[2].Value(rec); got != "worker-7" {
		t.Fatalf("eventThread = %v", got)
	}
	if !res.Types[0].Accept(rec) {
		t.Fatalf("filter rejected matching record")
	}
	other := event.NewRecord(typ, time.Unix(1, 0), time.Time{}, th, "Task-2")
	if res.Types[0].Accept(other) {
		t.Fatalf("filter accepted non-matching record")
	}
	groups := res.ByType()
	if len(groups) != 1 || len(groups[0].Fields) != 3 {
		t.Fatalf("ByType = %+v", groups)
	}
}

func TestFieldsReadOtherLayoutsByName(t *testing.T) {
	res, bag := resolve(t, &Query{
		From:   []string{"WorkEvent"},
		Select: []Column{{Ref: "task"}},
		Where:  []Condition{{Ref: "task", Value: "taskB"}},
	})
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	// the same type as declared by a second recording, fields reordered
	other := event.NewType(9, "demo.WorkEvent",
		event.FieldDescriptor{Name: "extra", Kind: event.KindString},
		event.FieldDescriptor{Name: "task", Kind: event.KindString},
	)
	recA := event.NewRecord(res.Types[0].Type, time.Unix(1, 0), time.Time{}, nil, "taskA", int64(1))
	recB := event.NewRecord(other, time.Unix(2, 0), time.Time{}, nil, "EXTRA", "taskB")

	tests := []struct {
		rec  *event.Record
		want string
		keep bool
	}{
		{rec: recA, want: "taskA", keep: false},
		{rec: recB, want: "taskB", keep: true},
	}
	for _, tt := range tests {
		if got := res.Fields[0].Value(tt.rec); got != tt.want {
			t.Fatalf("task = %v, want %s", got, tt.want)
		}
		if got := res.Types[0].Accept(tt.rec); got != tt.keep {
			t.Fatalf("Accept(%v) = %v, want %v", tt.rec, got, tt.keep)
		}
	}
}

func TestResolveNormalizesReferences(t *testing.T) {
	cat := event.NewCatalog(event.NewType(1, "demo.Caf\u00e9",
		event.FieldDescriptor{Name: "name"},
	))
	// "Cafe" + combining acute accent
	q := &Query{From: []string{"Cafe\u0301"}}
	res, bag := Resolve(q, cat, ctxindex.New(cat.Types(), trace.Nop))
	if bag.HasErrors() || res == nil {
		t.Fatalf("decomposed name did not resolve: %v", bag.Messages(diag.ChannelResolution))
	}
	if len(res.Fields) != 1 || res.Fields[0].Name != "name" {
		t.Fatalf("default columns = %+v", res.Fields)
	}
}

func TestForView(t *testing.T) {
	q := ForView("WorkEvent", testCatalog())
	want := []string{"startTime", "task", "size", "duration", "eventThread"}
	if len(q.Select) != len(want) {
		t.Fatalf("select = %+v", q.Select)
	}
	for i, c := range q.Select {
		if c.Ref != want[i] {
			t.Fatalf("column %d = %q, want %q", i, c.Ref, want[i])
		}
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: "N/A"},
		{in: "x", want: "x"},
		{in: int64(42), want: "42"},
		{in: 1.5, want: "1.5"},
		{in: true, want: "true"},
		{in: 1500 * time.Millisecond, want: "1.5s"},
		{in: time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC), want: "03:04:05.000006"},
		{in: (*event.Thread)(nil), want: "N/A"},
	}
	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Fatalf("Text(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseColumnAndCondition(t *testing.T) {
	c := ParseColumn("sum(duration)")
	if c.Aggregate != "sum" || c.Ref != "duration" {
		t.Fatalf("ParseColumn = %+v", c)
	}
	if c := ParseColumn("Trace.traceId"); c.Aggregate != "" || c.Ref != "Trace.traceId" {
		t.Fatalf("ParseColumn = %+v", c)
	}
	cond, err := ParseCondition("task=Task-1")
	if err != nil || cond.Ref != "task" || cond.Value != "Task-1" {
		t.Fatalf("ParseCondition = %+v, %v", cond, err)
	}
	if _, err := ParseCondition("task"); err == nil {
		t.Fatalf("expected error for missing '='")
	}
}
