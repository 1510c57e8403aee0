package timeline

import (
	"testing"
	"time"

	"ctxview/internal/event"
)

var (
	spanType    = event.NewType(1, "demo.Trace", event.FieldDescriptor{Name: "traceId", Contextual: true})
	displayType = event.NewType(2, "demo.Work", event.FieldDescriptor{Name: "task"})
)

func at(sec, nanos int64) time.Time { return time.Unix(sec, nanos) }

func TestEntryKeys(t *testing.T) {
	tl := New(0)
	if tl.Window() != DefaultWindowSize {
		t.Fatalf("Window() = %d, want %d", tl.Window(), DefaultWindowSize)
	}
	span := event.NewRecord(spanType, at(1, 5), at(2, 7), nil)
	tl.PushSpan(span)

	start, _ := tl.Pop()
	end, _ := tl.Pop()
	if !start.Start() || start.Seconds != 1 || start.NanosCompare != 10 || !start.Contextual {
		t.Fatalf("start entry = %+v", start)
	}
	if !end.End() || end.Seconds != 2 || end.NanosCompare != 15 || !end.Contextual {
		t.Fatalf("end entry = %+v", end)
	}
	if _, ok := tl.Pop(); ok {
		t.Fatalf("Pop on empty timeline returned an entry")
	}
}

func TestStartSortsBeforeEndAtSameInstant(t *testing.T) {
	tl := New(0)
	// display committed at the exact instant a span starts: start first
	d := event.NewRecord(displayType, at(5, 100), time.Time{}, nil)
	zero := event.NewRecord(spanType, at(5, 100), at(5, 100), nil)
	tl.PushDisplay(d)
	tl.PushSpan(zero)

	first, _ := tl.Pop()
	if !first.Start() || first.Record != zero {
		t.Fatalf("first entry = %+v, want span start", first)
	}
	second, _ := tl.Pop()
	third, _ := tl.Pop()
	if second.Record != d || third.Record != zero {
		t.Fatalf("equal end keys should drain in push order: %v then %v", second.Record, third.Record)
	}
}

func TestDrainOrder(t *testing.T) {
	tl := New(0)
	tl.PushDisplay(event.NewRecord(displayType, at(3, 0), time.Time{}, nil))
	tl.PushSpan(event.NewRecord(spanType, at(1, 0), at(4, 0), nil))
	tl.PushDisplay(event.NewRecord(displayType, at(2, 999), time.Time{}, nil))
	tl.PushDisplay(event.NewRecord(displayType, at(2, 1), time.Time{}, nil))

	var prev Entry
	for i := 0; tl.Len() > 0; i++ {
		e, _ := tl.Pop()
		if i > 0 && e.less(prev) {
			t.Fatalf("entry %d (%d,%d) sorted before previous (%d,%d)", i, e.Seconds, e.NanosCompare, prev.Seconds, prev.NanosCompare)
		}
		prev = e
	}
}

func TestOverflowSinglePop(t *testing.T) {
	const window = 8
	tl := New(window)
	for i := range window {
		tl.PushDisplay(event.NewRecord(displayType, at(int64(window-i), 0), time.Time{}, nil))
		if tl.Overflow() {
			t.Fatalf("overflow after %d pushes with window %d", i+1, window)
		}
	}
	tl.PushDisplay(event.NewRecord(displayType, at(100, 0), time.Time{}, nil))

	pops := 0
	var popped Entry
	for tl.Overflow() {
		popped, _ = tl.Pop()
		pops++
	}
	if pops != 1 {
		t.Fatalf("window+1 entries caused %d pops, want 1", pops)
	}
	if popped.Seconds != 1 {
		t.Fatalf("overflow popped second %d, want the oldest (1)", popped.Seconds)
	}
	if tl.Len() != window {
		t.Fatalf("Len() = %d after drain, want %d", tl.Len(), window)
	}
}
