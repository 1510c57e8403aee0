package correlate

import "ctxview/internal/event"

// orderedSet is an insertion-ordered set of records keyed by identity.
type orderedSet struct {
	items []*event.Record
	pos   map[*event.Record]int
}

func (s *orderedSet) add(rec *event.Record) bool {
	if _, ok := s.pos[rec]; ok {
		return false
	}
	if s.pos == nil {
		s.pos = make(map[*event.Record]int)
	}
	s.pos[rec] = len(s.items)
	s.items = append(s.items, rec)
	return true
}

func (s *orderedSet) remove(rec *event.Record) bool {
	i, ok := s.pos[rec]
	if !ok {
		return false
	}
	delete(s.pos, rec)
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	for j := i; j < len(s.items); j++ {
		s.pos[s.items[j]] = j
	}
	return true
}

// threadKey tells apart threads of different recordings that share an id.
type threadKey struct {
	source uint64
	id     int64
}

func keyOf(th *event.Thread) threadKey { return threadKey{source: th.Source, id: th.ID} }

// Tracker holds the context spans currently open on each thread.
// It is owned by a single goroutine.
type Tracker struct {
	byThread map[threadKey]*orderedSet
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{byThread: make(map[threadKey]*orderedSet)}
}

// Begin marks rec open on its thread. Records without a thread cannot be
// tracked and are ignored; the result reports whether rec was added.
func (t *Tracker) Begin(rec *event.Record) bool {
	th := rec.Thread()
	if th == nil {
		return false
	}
	key := keyOf(th)
	set, ok := t.byThread[key]
	if !ok {
		set = &orderedSet{}
		t.byThread[key] = set
	}
	return set.add(rec)
}

// End closes rec. Ending a record that is not open is a no-op. A thread with
// no open spans left is forgotten.
func (t *Tracker) End(rec *event.Record) {
	th := rec.Thread()
	if th == nil {
		return
	}
	key := keyOf(th)
	set, ok := t.byThread[key]
	if !ok {
		return
	}
	set.remove(rec)
	if len(set.items) == 0 {
		delete(t.byThread, key)
	}
}

// Active returns the open spans of a thread in the order they began. The
// slice is owned by the tracker and is only valid until the next Begin or End.
func (t *Tracker) Active(th *event.Thread) []*event.Record {
	if th == nil {
		return nil
	}
	set, ok := t.byThread[keyOf(th)]
	if !ok {
		return nil
	}
	return set.items
}

// Snapshot returns a copy of the open spans of a thread. It is never nil.
func (t *Tracker) Snapshot(th *event.Thread) []*event.Record {
	active := t.Active(th)
	out := make([]*event.Record, len(active))
	copy(out, active)
	return out
}

// Threads returns the number of threads with at least one open span.
func (t *Tracker) Threads() int { return len(t.byThread) }
