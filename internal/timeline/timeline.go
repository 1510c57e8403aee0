// Package timeline orders start, end and display occurrences of events into a
// single global processing order.
//
// A context span contributes two entries (start and end) and a display event
// one (its end). Entries are keyed by (seconds, 2*nanos+isEnd) so that at an
// identical instant every start sorts before every end, including the span's
// own end. The buffer is bounded by a window: callers pop while Overflow
// reports true.
package timeline

import (
	"container/heap"

	"ctxview/internal/event"
)

// DefaultWindowSize is the number of buffered entries kept before the oldest
// are forced out.
const DefaultWindowSize = 1_000_000

// Entry is one buffered occurrence.
type Entry struct {
	Record       *event.Record
	Seconds      int64
	NanosCompare int64 // 2*nanos for a start, 2*nanos+1 for an end
	Contextual   bool  // context span occurrence, false for display

	seq uint64
}

// Start reports whether the entry marks the beginning of a span.
func (e Entry) Start() bool { return e.NanosCompare&1 == 0 }

// End reports whether the entry marks an end (span end or display).
func (e Entry) End() bool { return !e.Start() }

// Display reports whether the entry is a display occurrence.
func (e Entry) Display() bool { return !e.Contextual }

func (e Entry) less(o Entry) bool {
	if e.Seconds != o.Seconds {
		return e.Seconds < o.Seconds
	}
	if e.NanosCompare != o.NanosCompare {
		return e.NanosCompare < o.NanosCompare
	}
	return e.seq < o.seq
}

type entryHeap []Entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(Entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = Entry{}
	*h = old[:n-1]
	return e
}

// Timeline is a bounded priority buffer of entries. It is not safe for
// concurrent use.
type Timeline struct {
	entries entryHeap
	window  int
	seq     uint64
}

// New creates a timeline. A window <= 0 selects DefaultWindowSize.
func New(window int) *Timeline {
	if window <= 0 {
		window = DefaultWindowSize
	}
	return &Timeline{window: window}
}

// Window returns the configured window size.
func (t *Timeline) Window() int { return t.window }

// Len returns the number of buffered entries.
func (t *Timeline) Len() int { return len(t.entries) }

// Overflow reports whether more entries than the window are buffered.
func (t *Timeline) Overflow() bool { return len(t.entries) > t.window }

// PushSpan buffers the start and end occurrence of a context span.
func (t *Timeline) PushSpan(rec *event.Record) {
	s := rec.Start()
	e := rec.End()
	t.push(Entry{
		Record:       rec,
		Seconds:      s.Unix(),
		NanosCompare: 2 * int64(s.Nanosecond()),
		Contextual:   true,
	})
	t.push(Entry{
		Record:       rec,
		Seconds:      e.Unix(),
		NanosCompare: 2*int64(e.Nanosecond()) + 1,
		Contextual:   true,
	})
}

// PushDisplay buffers the end occurrence of a display event.
func (t *Timeline) PushDisplay(rec *event.Record) {
	e := rec.End()
	t.push(Entry{
		Record:       rec,
		Seconds:      e.Unix(),
		NanosCompare: 2*int64(e.Nanosecond()) + 1,
	})
}

func (t *Timeline) push(e Entry) {
	t.seq++
	e.seq = t.seq
	heap.Push(&t.entries, e)
}

// Pop removes and returns the earliest entry.
func (t *Timeline) Pop() (Entry, bool) {
	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return heap.Pop(&t.entries).(Entry), true
}
