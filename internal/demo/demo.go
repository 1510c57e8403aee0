// Package demo generates synthetic recordings: requests on worker threads,
// each a Trace span with nested Span spans and WorkEvent display events.
package demo

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"ctxview/internal/event"
	"ctxview/internal/recording"
)

// Event types of a demo recording.
var (
	TraceType = event.NewType(1, "demo.Trace",
		event.FieldDescriptor{Name: "traceId", Kind: event.KindString, Contextual: true},
		event.FieldDescriptor{Name: "service", Kind: event.KindString, Contextual: true},
	)
	SpanType = event.NewType(2, "demo.Span",
		event.FieldDescriptor{Name: "spanId", Kind: event.KindString, Contextual: true},
		event.FieldDescriptor{Name: "operation", Kind: event.KindString, Contextual: true},
		event.FieldDescriptor{Name: "depth", Kind: event.KindInt},
	)
	WorkType = event.NewType(3, "demo.WorkEvent",
		event.FieldDescriptor{Name: "task", Kind: event.KindString},
		event.FieldDescriptor{Name: "size", Kind: event.KindInt},
	)
	GCType = event.NewType(4, "demo.GarbageCollection",
		event.FieldDescriptor{Name: "pause", Kind: event.KindDuration},
	)
)

// Catalog returns a catalog of the demo types.
func Catalog() *event.Catalog {
	return event.NewCatalog(TraceType, SpanType, WorkType, GCType)
}

var (
	services   = []string{"checkout", "search", "billing"}
	operations = []string{"load", "validate", "store", "render"}
)

// Options controls generation.
type Options struct {
	Threads  int
	Requests int // per thread
	Seed     uint64
	Start    time.Time
}

func (o Options) withDefaults() Options {
	if o.Threads <= 0 {
		o.Threads = 4
	}
	if o.Requests <= 0 {
		o.Requests = 8
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	}
	return o
}

// Generate returns the records of a demo recording ordered by end time.
// The same options always produce the same records.
func Generate(opts Options) ([]*event.Record, error) {
	opts = opts.withDefaults()
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], opts.Seed)
	src := rand.NewChaCha8(seed)
	rng := rand.New(src)

	var recs []*event.Record
	for t := 1; t <= opts.Threads; t++ {
		th := &event.Thread{ID: int64(t), Name: fmt.Sprintf("worker-%d", t)}
		at := opts.Start.Add(time.Duration(rng.IntN(1000)) * time.Microsecond)
		for r := 0; r < opts.Requests; r++ {
			id, err := uuid.NewRandomFromReader(src)
			if err != nil {
				return nil, fmt.Errorf("trace id: %w", err)
			}
			traceStart := at
			service := services[rng.IntN(len(services))]
			cursor := traceStart.Add(100 * time.Microsecond)
			spans := 1 + rng.IntN(3)
			for s := 0; s < spans; s++ {
				spanStart := cursor
				spanID := fmt.Sprintf("%s-%d", id.String()[:8], s)
				op := operations[rng.IntN(len(operations))]
				works := 1 + rng.IntN(3)
				for w := 0; w < works; w++ {
					cursor = cursor.Add(time.Duration(50+rng.IntN(400)) * time.Microsecond)
					recs = append(recs, event.NewRecord(WorkType, cursor, time.Time{}, th,
						fmt.Sprintf("%s/%s", service, op), int64(rng.IntN(4096))))
				}
				cursor = cursor.Add(50 * time.Microsecond)
				recs = append(recs, event.NewRecord(SpanType, spanStart, cursor, th, spanID, op, int64(1)))
				cursor = cursor.Add(20 * time.Microsecond)
			}
			cursor = cursor.Add(100 * time.Microsecond)
			recs = append(recs, event.NewRecord(TraceType, traceStart, cursor, th, id.String(), service))

			// idle work between requests has no context
			at = cursor.Add(time.Duration(200+rng.IntN(800)) * time.Microsecond)
			recs = append(recs, event.NewRecord(WorkType, at.Add(-100*time.Microsecond), time.Time{}, th, "idle", int64(0)))
		}
	}
	for g := 0; g < opts.Threads; g++ {
		when := opts.Start.Add(time.Duration(rng.IntN(5000)) * time.Microsecond)
		pause := time.Duration(100+rng.IntN(900)) * time.Microsecond
		recs = append(recs, event.NewRecord(GCType, when, when.Add(pause), nil, pause))
	}

	slices.SortStableFunc(recs, func(a, b *event.Record) int {
		return a.End().Compare(b.End())
	})
	return recs, nil
}

// Write generates a recording into path and returns the number of records.
func Write(path string, opts Options) (int, error) {
	recs, err := Generate(opts)
	if err != nil {
		return 0, err
	}
	w, err := recording.Create(path, Catalog())
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			_ = w.Close()
			return 0, fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return len(recs), nil
}
