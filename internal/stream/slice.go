package stream

import (
	"io"
	"sort"

	"ctxview/internal/event"
)

// SliceSource serves records from memory.
type SliceSource struct {
	catalog *event.Catalog
	records []*event.Record
	next    int
}

// NewSliceSource sorts records by end time, keeping the given order for
// equal end times.
func NewSliceSource(catalog *event.Catalog, records []*event.Record) *SliceSource {
	sorted := make([]*event.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].End().Before(sorted[j].End())
	})
	return &SliceSource{catalog: catalog, records: sorted}
}

// NewOrderedSource serves records exactly in the given order.
func NewOrderedSource(catalog *event.Catalog, records []*event.Record) *SliceSource {
	return &SliceSource{catalog: catalog, records: records}
}

func (s *SliceSource) Catalog() *event.Catalog { return s.catalog }

func (s *SliceSource) Next() (*event.Record, error) {
	if s.next >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.next]
	s.next++
	return rec, nil
}

func (s *SliceSource) Close() error { return nil }
