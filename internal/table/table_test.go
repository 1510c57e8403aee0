package table

import (
	"errors"
	"testing"
	"time"

	"ctxview/internal/event"
	"ctxview/internal/query"
)

var (
	traceType = event.NewType(1, "demo.Trace",
		event.FieldDescriptor{Name: "traceId", Contextual: true},
		event.FieldDescriptor{Name: "service", Contextual: true},
	)
	spanType = event.NewType(2, "demo.Span",
		event.FieldDescriptor{Name: "spanId", Contextual: true},
		event.FieldDescriptor{Name: "depth"},
	)
	workType = event.NewType(3, "demo.Work", event.FieldDescriptor{Name: "task"})
)

func TestRowContextualValue(t *testing.T) {
	row := NewRow(0)
	if row.Contexts() == nil {
		t.Fatalf("new row has nil contexts")
	}
	tr := event.NewRecord(traceType, time.Unix(1, 0), time.Unix(5, 0), nil, "req-1")
	row.SetContexts([]*event.Record{tr})

	tests := []struct {
		name    string
		ref     string
		want    any
		wantErr bool
	}{
		{name: "match", ref: "Trace.traceId", want: "req-1"},
		{name: "declared without value", ref: "Trace.service", want: nil},
		{name: "absent field", ref: "Trace.nope", want: nil},
		{name: "absent type", ref: "Span.spanId", want: nil},
		{name: "full name is not matched", ref: "demo.Trace.traceId", want: nil},
		{name: "no dot", ref: "traceId", wantErr: true},
		{name: "leading dot", ref: ".traceId", wantErr: true},
		{name: "trailing dot", ref: "Trace.", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := row.ContextualValue(tt.ref)
			if tt.wantErr {
				if !errors.Is(err, ErrUnqualified) {
					t.Fatalf("ContextualValue(%q) err = %v, want ErrUnqualified", tt.ref, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ContextualValue(%q): %v", tt.ref, err)
			}
			if got != tt.want {
				t.Fatalf("ContextualValue(%q) = %v, want %v", tt.ref, got, tt.want)
			}
		})
	}
}

func TestAddContextualColumns(t *testing.T) {
	task := &query.Field{Name: "task", Label: "task", Index: 0}
	task.Sources = []query.Source{{
		Type: &query.FilteredType{Type: workType},
		Get:  func(r *event.Record) any { return r.ValueAt(0) },
	}}

	tbl := New()
	tbl.AddFields([]*query.Field{task})

	tr := event.NewRecord(traceType, time.Unix(1, 0), time.Unix(9, 0), nil, "req-1", "api")
	sp := event.NewRecord(spanType, time.Unix(2, 0), time.Unix(3, 0), nil, "s-1", int64(1))
	w1 := event.NewRecord(workType, time.Unix(2, 5), time.Time{}, nil, "a")
	w2 := event.NewRecord(workType, time.Unix(4, 0), time.Time{}, nil, "b")
	w3 := event.NewRecord(workType, time.Unix(10, 0), time.Time{}, nil, "c")

	tbl.Add(w1, tbl.Fields(), []*event.Record{tr, sp})
	tbl.Add(w2, tbl.Fields(), []*event.Record{tr})
	tbl.Add(w3, tbl.Fields(), nil)

	added := tbl.AddContextualColumns()
	want := []string{"Trace.traceId", "Trace.service", "Span.spanId"}
	if len(added) != len(want) {
		t.Fatalf("added columns = %v, want %v", added, want)
	}
	for i := range want {
		if added[i] != want[i] {
			t.Fatalf("added columns = %v, want %v", added, want)
		}
	}
	if again := tbl.AddContextualColumns(); len(again) != 0 {
		t.Fatalf("columns added twice: %v", again)
	}

	rows := tbl.Rows()
	cells := [][]string{
		{"a", "req-1", "api", "s-1"},
		{"b", "req-1", "api", "N/A"},
		{"c", "N/A", "N/A", "N/A"},
	}
	for i, row := range rows {
		for col, want := range cells[i] {
			if got := tbl.Text(row, col); got != want {
				t.Fatalf("row %d col %d = %q, want %q", i, col, got, want)
			}
		}
	}
}

func TestAddSelectedContextualField(t *testing.T) {
	ft := &query.FilteredType{Type: workType}
	id := &query.Field{
		Name: "demo.Trace.traceId", Label: "id", Index: 0,
		Contextual: true, ContextType: "demo.Trace", ContextField: "traceId",
		Sources: []query.Source{{Type: ft}},
	}
	tbl := New()
	tbl.AddFields([]*query.Field{id})
	tr := event.NewRecord(traceType, time.Unix(1, 0), time.Unix(9, 0), nil, "req-9")
	tbl.Add(event.NewRecord(workType, time.Unix(2, 0), time.Time{}, nil, "a"), tbl.Fields(), []*event.Record{tr})

	if got := tbl.Value(tbl.Rows()[0], 0); got != "req-9" {
		t.Fatalf("selected contextual value = %v", got)
	}
}

func TestAddRows(t *testing.T) {
	tbl := New()
	r := NewRow(1)
	r.PutValue(0, int64(3))
	r.PutText(0, "3")
	tbl.AddRows([]*Row{r})
	if len(tbl.Rows()) != 1 || tbl.Text(tbl.Rows()[0], 0) != "3" {
		t.Fatalf("AddRows did not keep the row")
	}
}
