package recording

import (
	"fmt"
	"sync/atomic"
	"time"

	"fortio.org/safecast"

	"ctxview/internal/event"
)

// Magic identifies native recordings.
const Magic = "CTXR"

// Version is the current native format version.
const Version uint16 = 1

type wireField struct {
	Name       string `msgpack:"name"`
	Kind       uint8  `msgpack:"kind"`
	Contextual bool   `msgpack:"ctx,omitempty"`
}

type wireType struct {
	ID     int64       `msgpack:"id"`
	Name   string      `msgpack:"name"`
	Label  string      `msgpack:"label,omitempty"`
	Fields []wireField `msgpack:"fields"`
}

type wireHeader struct {
	Magic   string     `msgpack:"magic"`
	Version uint16     `msgpack:"version"`
	Types   []wireType `msgpack:"types"`
}

type wireThread struct {
	ID   int64  `msgpack:"id"`
	Name string `msgpack:"name"`
}

type wireRecord struct {
	Type   int64       `msgpack:"t"`
	Start  int64       `msgpack:"s"` // unix nanos
	End    int64       `msgpack:"e"`
	Thread *wireThread `msgpack:"th,omitempty"`
	Values []any       `msgpack:"v"`
}

func typeToWire(t *event.Type) wireType {
	w := wireType{ID: t.ID, Name: t.Name, Label: t.Label, Fields: make([]wireField, len(t.Fields))}
	for i, f := range t.Fields {
		w.Fields[i] = wireField{Name: f.Name, Kind: uint8(f.Kind), Contextual: f.Contextual}
	}
	return w
}

func typeFromWire(w wireType) *event.Type {
	fields := make([]event.FieldDescriptor, len(w.Fields))
	for i, f := range w.Fields {
		fields[i] = event.FieldDescriptor{Name: f.Name, Kind: event.Kind(f.Kind), Contextual: f.Contextual}
	}
	t := event.NewType(w.ID, w.Name, fields...)
	t.Label = w.Label
	return t
}

// encodeValue maps a record value to its wire form.
func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Duration:
		return int64(x)
	case time.Time:
		return x.UnixNano()
	case int:
		return int64(x)
	}
	return v
}

// decodeValue converts a decoded wire value to the Go type of kind.
func decodeValue(kind event.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case event.KindString:
		s, ok := v.(string)
		if !ok {
			return fmt.Sprint(v), nil
		}
		return s, nil
	case event.KindInt:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n, nil
	case event.KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return float64(n), nil
	case event.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case event.KindDuration:
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("duration nanos: %w", err)
		}
		return time.Duration(n), nil
	case event.KindTime:
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("unix nanos: %w", err)
		}
		return time.Unix(0, n), nil
	}
	return v, nil
}

// toInt64 widens any decoded msgpack integer. Unsigned values above
// math.MaxInt64 are rejected.
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return safecast.Conv[int64](x)
	case uint:
		return safecast.Conv[int64](x)
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

var lastSource atomic.Uint64

// threads interns the threads of one recording so records of one thread
// share a pointer. Every recording read gets its own source id.
type threads struct {
	source uint64
	byID   map[int64]*event.Thread
}

func newThreads() *threads {
	return &threads{source: lastSource.Add(1), byID: make(map[int64]*event.Thread)}
}

func (ts *threads) get(id int64, name string) *event.Thread {
	if th, ok := ts.byID[id]; ok {
		return th
	}
	th := &event.Thread{Source: ts.source, ID: id, Name: name}
	ts.byID[id] = th
	return th
}
