package recording

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"time"

	"fortio.org/safecast"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"

	"ctxview/internal/event"
	"ctxview/internal/stream"
)

// Types synthesised for OTLP imports.
var (
	OTelSpanType = event.NewType(1, "otel.Span",
		event.FieldDescriptor{Name: "traceId", Kind: event.KindString, Contextual: true},
		event.FieldDescriptor{Name: "spanId", Kind: event.KindString, Contextual: true},
		event.FieldDescriptor{Name: "name", Kind: event.KindString, Contextual: true},
		event.FieldDescriptor{Name: "service", Kind: event.KindString},
		event.FieldDescriptor{Name: "kind", Kind: event.KindString},
	)
	OTelSpanEventType = event.NewType(2, "otel.SpanEvent",
		event.FieldDescriptor{Name: "name", Kind: event.KindString},
		event.FieldDescriptor{Name: "span", Kind: event.KindString},
		event.FieldDescriptor{Name: "service", Kind: event.KindString},
	)
)

// Span attributes naming the emitting thread.
const (
	AttrThreadID   = "thread.id"
	AttrThreadName = "thread.name"
)

// ReadOTLP decodes a binary TracesData message and returns its spans and span
// events as an in-memory source ordered by end time.
func ReadOTLP(r io.Reader) (*stream.SliceSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var td tracev1.TracesData
	if err := proto.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("decode otlp: %w", err)
	}

	ts := newThreads()
	var records []*event.Record
	for _, rs := range td.GetResourceSpans() {
		service := stringAttr(rs.GetResource().GetAttributes(), "service.name")
		for _, ss := range rs.GetScopeSpans() {
			for _, sp := range ss.GetSpans() {
				th := spanThread(sp, ts)
				start, err := unixNanos(sp.GetStartTimeUnixNano())
				if err != nil {
					return nil, fmt.Errorf("span %q start: %w", sp.GetName(), err)
				}
				end, err := unixNanos(sp.GetEndTimeUnixNano())
				if err != nil {
					return nil, fmt.Errorf("span %q end: %w", sp.GetName(), err)
				}
				records = append(records, event.NewRecord(OTelSpanType, start, end, th,
					hex.EncodeToString(sp.GetTraceId()),
					hex.EncodeToString(sp.GetSpanId()),
					sp.GetName(),
					service,
					sp.GetKind().String(),
				))
				for _, ev := range sp.GetEvents() {
					at, err := unixNanos(ev.GetTimeUnixNano())
					if err != nil {
						return nil, fmt.Errorf("span event %q: %w", ev.GetName(), err)
					}
					records = append(records, event.NewRecord(OTelSpanEventType, at, at, th,
						ev.GetName(), sp.GetName(), service))
				}
			}
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].End().Before(records[j].End())
	})
	return stream.NewOrderedSource(event.NewCatalog(OTelSpanType, OTelSpanEventType), records), nil
}

func unixNanos(n uint64) (time.Time, error) {
	v, err := safecast.Conv[int64](n)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, v), nil
}

func spanThread(sp *tracev1.Span, ts *threads) *event.Thread {
	var (
		id     int64
		name   string
		hasID  bool
		hasAny bool
	)
	for _, kv := range sp.GetAttributes() {
		switch kv.GetKey() {
		case AttrThreadID:
			id, hasID = kv.GetValue().GetIntValue(), true
			hasAny = true
		case AttrThreadName:
			name = kv.GetValue().GetStringValue()
			hasAny = true
		}
	}
	if !hasAny {
		return nil
	}
	if !hasID {
		// name-only threads still need a stable identity
		id = -int64(len(ts.byID)) - 1
		for _, th := range ts.byID {
			if th.ID < 0 && th.Name == name {
				return th
			}
		}
	}
	return ts.get(id, name)
}

func stringAttr(attrs []*commonv1.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			return kv.GetValue().GetStringValue()
		}
	}
	return ""
}
