// Package histogram aggregates display events into grouped rows.
//
// Unlike the table it keeps no context records per event. Contextual values
// needed for a group key are requested through an Extractor at the moment the
// event is aggregated.
package histogram

import (
	"fmt"
	"strings"

	"ctxview/internal/event"
	"ctxview/internal/query"
	"ctxview/internal/table"
)

// Extractor returns the value of a contextual field for a display event, or
// nil when no correlated context provides it.
type Extractor func(f *query.Field, display *event.Record) any

// NoContext is the extractor used when no context is tracked.
func NoContext(*query.Field, *event.Record) any { return nil }

type bucket struct {
	aggs []aggregator
}

// Histogram groups records by the values of the grouping fields.
type Histogram struct {
	fields  []*query.Field
	buckets map[string]*bucket
	order   []*bucket
}

// New creates an empty histogram.
func New() *Histogram {
	return &Histogram{buckets: make(map[string]*bucket)}
}

// AddFields appends resolved output fields.
func (h *Histogram) AddFields(fields []*query.Field) {
	h.fields = append(h.fields, fields...)
}

// Len returns the number of buckets.
func (h *Histogram) Len() int { return len(h.order) }

// Add aggregates rec, a record of display type ft, into its bucket. fields are
// the fields fed by ft; extract supplies contextual values.
func (h *Histogram) Add(rec *event.Record, ft *query.FilteredType, fields []*query.Field, extract Extractor) {
	if extract == nil {
		extract = NoContext
	}
	values := make([]any, len(fields))
	var key strings.Builder
	for i, f := range fields {
		if f.Contextual {
			values[i] = extract(f, rec)
		} else if s, ok := f.Source(ft.Type); ok && s.Get != nil {
			values[i] = s.Get(rec)
		}
		if f.Grouping {
			writeKey(&key, values[i])
		}
	}

	b, ok := h.buckets[key.String()]
	if !ok {
		b = h.newBucket()
		h.buckets[key.String()] = b
		h.order = append(h.order, b)
	}
	for i, f := range fields {
		b.aggs[f.Index].add(values[i])
	}
}

func (h *Histogram) newBucket() *bucket {
	b := &bucket{aggs: make([]aggregator, len(h.fields))}
	for _, f := range h.fields {
		b.aggs[f.Index] = newAggregator(f)
	}
	return b
}

// writeKey appends a type-tagged value so that nil and the text "N/A" differ.
func writeKey(sb *strings.Builder, v any) {
	if v == nil {
		sb.WriteString("\x00nil\x01")
		return
	}
	fmt.Fprintf(sb, "%T\x00%s\x01", v, query.Text(v))
}

// Rows returns one row per bucket, buckets in first-seen order.
func (h *Histogram) Rows() []*table.Row {
	rows := make([]*table.Row, 0, len(h.order))
	for _, b := range h.order {
		row := table.NewRow(len(h.fields))
		for _, f := range h.fields {
			v := b.aggs[f.Index].result()
			row.PutValue(f.Index, v)
			row.PutText(f.Index, query.Text(v))
		}
		rows = append(rows, row)
	}
	return rows
}
