package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctxview/internal/event"
)

var (
	workType  = event.NewType(1, "demo.Work", event.FieldDescriptor{Name: "task"})
	traceType = event.NewType(2, "demo.Trace", event.FieldDescriptor{Name: "traceId", Contextual: true})
)

func rec(typ *event.Type, end int64, v string) *event.Record {
	return event.NewRecord(typ, time.Unix(end, 0), time.Time{}, nil, v)
}

type failingSource struct {
	*SliceSource
	err error
}

func (f *failingSource) Next() (*event.Record, error) { return nil, f.err }

func TestMergeOrderAndDispatch(t *testing.T) {
	a := NewSliceSource(event.NewCatalog(workType), []*event.Record{
		rec(workType, 5, "a5"), rec(workType, 1, "a1"), rec(workType, 3, "a3"),
	})
	b := NewSliceSource(event.NewCatalog(traceType), []*event.Record{
		rec(traceType, 2, "b2"), rec(traceType, 3, "b3"),
	})
	s := New(a, b)

	var got []string
	var calls []string
	var catalogLen int
	s.OnMetadata(func(c *event.Catalog) {
		catalogLen = c.Len()
		s.OnEvent("demo.Work", func(r *event.Record) {
			calls = append(calls, "typed")
		})
	})
	s.OnAll(func(r *event.Record) {
		v, _ := r.Value(r.Type().Fields[0].Name)
		got = append(got, v.(string))
		calls = append(calls, "all")
	})
	completed := 0
	s.OnComplete(func() { completed++ })

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := []string{"a1", "b2", "a3", "b3", "a5"}
	if len(got) != len(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivered %v, want %v", got, want)
		}
	}
	if catalogLen != 2 {
		t.Fatalf("merged catalog has %d types, want 2", catalogLen)
	}
	if calls[0] != "typed" || calls[1] != "all" {
		t.Fatalf("typed handlers must run before global ones: %v", calls)
	}
	if completed != 1 {
		t.Fatalf("completion ran %d times", completed)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("second Start should fail")
	}
}

func TestCancelSkipsCompletion(t *testing.T) {
	src := NewSliceSource(event.NewCatalog(workType), []*event.Record{
		rec(workType, 1, "x"), rec(workType, 2, "y"),
	})
	s := New(src)
	ctx, cancel := context.WithCancel(context.Background())
	delivered := 0
	s.OnAll(func(*event.Record) {
		delivered++
		cancel()
	})
	completed := false
	s.OnComplete(func() { completed = true })

	err := s.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Start = %v, want context.Canceled", err)
	}
	if completed || delivered != 1 {
		t.Fatalf("completed = %v, delivered = %d", completed, delivered)
	}
}

func TestSourceErrorStops(t *testing.T) {
	boom := errors.New("boom")
	src := &failingSource{SliceSource: NewSliceSource(event.NewCatalog(), nil), err: boom}
	s := New(src)
	s.OnComplete(func() { t.Fatalf("completion after source error") })
	if err := s.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start = %v, want boom", err)
	}
}

func TestProgressDone(t *testing.T) {
	src := NewSliceSource(event.NewCatalog(workType), []*event.Record{rec(workType, 1, "x")})
	s := New(src)
	var last Progress
	s.OnProgress(func(p Progress) { last = p })
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !last.Done || last.Delivered != 1 || last.Exhausted != 1 || last.Sources != 1 {
		t.Fatalf("final progress = %+v", last)
	}
}
