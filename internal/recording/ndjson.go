package recording

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/valyala/fastjson"

	"ctxview/internal/event"
)

// maxLine bounds one NDJSON line.
const maxLine = 4 << 20

// NDJSONReader reads newline-delimited JSON recordings:
//
//	{"types":[{"id":1,"name":"demo.Trace","fields":[{"name":"traceId","kind":"string","contextual":true}]}]}
//	{"type":"demo.Trace","start":1700000000000000000,"end":1700000001000000000,"thread":{"id":1,"name":"w-1"},"values":{"traceId":"a"}}
type NDJSONReader struct {
	sc      *bufio.Scanner
	parser  fastjson.Parser
	closer  io.Closer
	catalog *event.Catalog
	threads *threads
	line    int
}

// NewNDJSONReader reads the type line from r.
func NewNDJSONReader(r io.Reader, closer io.Closer) (*NDJSONReader, error) {
	nr := &NDJSONReader{
		sc:      bufio.NewScanner(r),
		closer:  closer,
		catalog: event.NewCatalog(),
		threads: newThreads(),
	}
	nr.sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	line, err := nr.nextLine()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty ndjson recording", ErrBadMagic)
	}
	if err != nil {
		return nil, err
	}
	v, err := nr.parser.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", nr.line, err)
	}
	types := v.GetArray("types")
	if types == nil {
		return nil, fmt.Errorf("%w: first line has no \"types\" array", ErrBadMagic)
	}
	for i, tv := range types {
		t, err := parseType(tv, int64(i+1))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", nr.line, err)
		}
		if err := nr.catalog.Add(t); err != nil {
			return nil, fmt.Errorf("line %d: %w", nr.line, err)
		}
	}
	return nr, nil
}

func parseType(v *fastjson.Value, fallbackID int64) (*event.Type, error) {
	name := string(v.GetStringBytes("name"))
	if name == "" {
		return nil, fmt.Errorf("type without name")
	}
	id := v.GetInt64("id")
	if id == 0 {
		id = fallbackID
	}
	var fields []event.FieldDescriptor
	for _, fv := range v.GetArray("fields") {
		kind, err := event.ParseKind(string(fv.GetStringBytes("kind")))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		fields = append(fields, event.FieldDescriptor{
			Name:       string(fv.GetStringBytes("name")),
			Kind:       kind,
			Contextual: fv.GetBool("contextual"),
		})
	}
	t := event.NewType(id, name, fields...)
	t.Label = string(v.GetStringBytes("label"))
	return t, nil
}

func (nr *NDJSONReader) nextLine() ([]byte, error) {
	for nr.sc.Scan() {
		nr.line++
		line := nr.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
	if err := nr.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (nr *NDJSONReader) Catalog() *event.Catalog { return nr.catalog }

func (nr *NDJSONReader) Next() (*event.Record, error) {
	line, err := nr.nextLine()
	if err != nil {
		return nil, err
	}
	v, err := nr.parser.ParseBytes(line)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", nr.line, err)
	}
	typeName := string(v.GetStringBytes("type"))
	t, ok := nr.catalog.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("line %d: unknown type %q", nr.line, typeName)
	}

	var th *event.Thread
	if tv := v.Get("thread"); tv != nil && tv.Type() == fastjson.TypeObject {
		th = nr.threads.get(tv.GetInt64("id"), string(tv.GetStringBytes("name")))
	}

	values := make([]any, len(t.Fields))
	obj := v.Get("values")
	for i, f := range t.Fields {
		if obj == nil {
			break
		}
		values[i] = jsonValue(obj.Get(f.Name), f.Kind)
	}
	start := time.Unix(0, v.GetInt64("start"))
	end := time.Unix(0, v.GetInt64("end"))
	return event.NewRecord(t, start, end, th, values...), nil
}

func jsonValue(v *fastjson.Value, kind event.Kind) any {
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil
	}
	switch kind {
	case event.KindInt:
		return v.GetInt64()
	case event.KindFloat:
		return v.GetFloat64()
	case event.KindBool:
		return v.GetBool()
	case event.KindDuration:
		return time.Duration(v.GetInt64())
	case event.KindTime:
		return time.Unix(0, v.GetInt64())
	}
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return string(v.MarshalTo(nil))
}

func (nr *NDJSONReader) Close() error {
	if nr.closer == nil {
		return nil
	}
	err := nr.closer.Close()
	nr.closer = nil
	return err
}
