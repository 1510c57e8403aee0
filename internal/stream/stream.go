// Package stream delivers records from one or more sources to registered
// handlers on a single goroutine.
//
// Delivery order per Start call:
//
//  1. metadata handlers, once, with the merged catalog
//  2. for each record, in non-decreasing end time across sources:
//     typed handlers for the record's type, then global handlers
//  3. completion handlers, only if every source was exhausted
package stream

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"ctxview/internal/event"
	"ctxview/internal/trace"
)

// Source yields records ordered by end time. Next returns io.EOF when done.
type Source interface {
	Catalog() *event.Catalog
	Next() (*event.Record, error)
	Close() error
}

// Handler receives one record.
type Handler func(*event.Record)

// Progress reports delivery state to observers such as the UI.
type Progress struct {
	Delivered int64
	Sources   int
	Exhausted int
	Done      bool
}

// ProgressEvery is the number of records between progress notifications.
const ProgressEvery = 4096

// Stream is a push-style subscription over sources.
type Stream struct {
	sources  []Source
	typed    map[string][]Handler
	all      []Handler
	metadata []func(*event.Catalog)
	complete []func()
	progress []func(Progress)
	started  bool
}

// New creates a stream over sources.
func New(sources ...Source) *Stream {
	return &Stream{
		sources: sources,
		typed:   make(map[string][]Handler),
	}
}

// OnEvent registers fn for records whose type has the given fully qualified
// name. Handlers may be registered from metadata handlers.
func (s *Stream) OnEvent(typeName string, fn Handler) {
	s.typed[typeName] = append(s.typed[typeName], fn)
}

// OnAll registers fn for every record.
func (s *Stream) OnAll(fn Handler) {
	s.all = append(s.all, fn)
}

// OnMetadata registers fn to receive the catalog before the first record.
func (s *Stream) OnMetadata(fn func(*event.Catalog)) {
	s.metadata = append(s.metadata, fn)
}

// OnComplete registers fn to run after the last record.
func (s *Stream) OnComplete(fn func()) {
	s.complete = append(s.complete, fn)
}

// OnProgress registers fn for periodic progress notifications.
func (s *Stream) OnProgress(fn func(Progress)) {
	s.progress = append(s.progress, fn)
}

// Catalog merges the catalogs of all sources.
func (s *Stream) Catalog() *event.Catalog {
	merged := event.NewCatalog()
	for _, src := range s.sources {
		merged.Merge(src.Catalog())
	}
	return merged
}

// Start delivers every record. It returns ctx.Err() when cancelled, in which
// case completion handlers do not run. A stream can be started once.
func (s *Stream) Start(ctx context.Context) error {
	if s.started {
		return errors.New("stream already started")
	}
	s.started = true
	tracer := trace.FromContext(ctx)

	sp := trace.Begin(tracer, trace.ScopeStream, "metadata")
	catalog := s.Catalog()
	for _, fn := range s.metadata {
		fn(catalog)
	}
	sp.WithExtra("types", strconv.Itoa(catalog.Len())).End("")

	m := &merger{}
	for i, src := range s.sources {
		if err := m.advance(src, i); err != nil {
			return err
		}
	}

	prog := Progress{Sources: len(s.sources)}
	prog.Exhausted = len(s.sources) - m.Len()
	for m.Len() > 0 {
		if err := ctx.Err(); err != nil {
			trace.Point(tracer, trace.ScopeStream, "cancelled", err.Error(), nil)
			return err
		}
		h := heap.Pop(m).(head)
		s.deliver(h.rec)
		prog.Delivered++

		if err := m.advance(s.sources[h.src], h.src); err != nil {
			return err
		}
		prog.Exhausted = len(s.sources) - m.Len()
		if prog.Delivered%ProgressEvery == 0 {
			s.notify(prog)
		}
	}

	prog.Done = true
	s.notify(prog)
	trace.Point(tracer, trace.ScopeStream, "exhausted", "",
		map[string]string{"records": strconv.FormatInt(prog.Delivered, 10)})
	for _, fn := range s.complete {
		fn()
	}
	return nil
}

func (s *Stream) deliver(rec *event.Record) {
	for _, fn := range s.typed[rec.Type().Name] {
		fn(rec)
	}
	for _, fn := range s.all {
		fn(rec)
	}
}

func (s *Stream) notify(p Progress) {
	for _, fn := range s.progress {
		fn(p)
	}
}

// Close closes every source and joins their errors.
func (s *Stream) Close() error {
	var errs []error
	for _, src := range s.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type head struct {
	rec *event.Record
	src int
}

// merger is a min-heap of the next record of each source.
type merger []head

func (m merger) Len() int { return len(m) }
func (m merger) Less(i, j int) bool {
	ei, ej := m[i].rec.End(), m[j].rec.End()
	if !ei.Equal(ej) {
		return ei.Before(ej)
	}
	return m[i].src < m[j].src
}
func (m merger) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m *merger) Push(x any)   { *m = append(*m, x.(head)) }
func (m *merger) Pop() any {
	old := *m
	n := len(old)
	h := old[n-1]
	*m = old[:n-1]
	return h
}

func (m *merger) advance(src Source, i int) error {
	rec, err := src.Next()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("source %d: %w", i, err)
	}
	heap.Push(m, head{rec: rec, src: i})
	return nil
}
