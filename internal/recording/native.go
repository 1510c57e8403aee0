package recording

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"ctxview/internal/event"
)

// NativeReader reads .ctxr streams.
type NativeReader struct {
	dec     *msgpack.Decoder
	zr      *zstd.Decoder
	closer  io.Closer
	catalog *event.Catalog
	byID    map[int64]*event.Type
	threads *threads
}

// NewNativeReader reads the header from r. When compressed is set r is
// wrapped in a zstd decoder. closer, if not nil, is closed by Close.
func NewNativeReader(r io.Reader, compressed bool, closer io.Closer) (*NativeReader, error) {
	nr := &NativeReader{closer: closer, threads: newThreads()}
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		nr.zr = zr
		r = zr
	}
	nr.dec = msgpack.NewDecoder(bufio.NewReader(r))

	var h wireHeader
	if err := nr.dec.Decode(&h); err != nil {
		nr.Close()
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if h.Magic != Magic {
		nr.Close()
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, h.Magic)
	}
	if h.Version == 0 || h.Version > Version {
		nr.Close()
		return nil, fmt.Errorf("%w: native version %d", ErrUnsupported, h.Version)
	}

	nr.catalog = event.NewCatalog()
	nr.byID = make(map[int64]*event.Type, len(h.Types))
	for _, wt := range h.Types {
		t := typeFromWire(wt)
		if err := nr.catalog.Add(t); err != nil {
			nr.Close()
			return nil, fmt.Errorf("header: %w", err)
		}
		nr.byID[t.ID] = t
	}
	return nr, nil
}

func (nr *NativeReader) Catalog() *event.Catalog { return nr.catalog }

func (nr *NativeReader) Next() (*event.Record, error) {
	var w wireRecord
	if err := nr.dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decode record: %w", err)
	}
	t, ok := nr.byID[w.Type]
	if !ok {
		return nil, fmt.Errorf("record references unknown type id %d", w.Type)
	}
	values := make([]any, len(w.Values))
	for i, v := range w.Values {
		if i >= len(t.Fields) {
			break
		}
		dv, err := decodeValue(t.Fields[i].Kind, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name, t.Fields[i].Name, err)
		}
		values[i] = dv
	}
	var th *event.Thread
	if w.Thread != nil {
		th = nr.threads.get(w.Thread.ID, w.Thread.Name)
	}
	return event.NewRecord(t, time.Unix(0, w.Start), time.Unix(0, w.End), th, values...), nil
}

func (nr *NativeReader) Close() error {
	if nr.zr != nil {
		nr.zr.Close()
		nr.zr = nil
	}
	if nr.closer != nil {
		err := nr.closer.Close()
		nr.closer = nil
		return err
	}
	return nil
}

// Writer writes .ctxr streams. Records must be written in end-time order.
type Writer struct {
	enc    *msgpack.Encoder
	buf    *bufio.Writer
	zw     *zstd.Encoder
	closer io.Closer
	ids    map[string]int64
}

// NewWriter writes the header for catalog to w.
func NewWriter(w io.Writer, catalog *event.Catalog, compressed bool, closer io.Closer) (*Writer, error) {
	nw := &Writer{closer: closer, ids: make(map[string]int64, catalog.Len())}
	if compressed {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		nw.zw = zw
		w = zw
	}
	nw.buf = bufio.NewWriter(w)
	nw.enc = msgpack.NewEncoder(nw.buf)

	h := wireHeader{Magic: Magic, Version: Version}
	for _, t := range catalog.Types() {
		h.Types = append(h.Types, typeToWire(t))
		nw.ids[t.Name] = t.ID
	}
	if err := nw.enc.Encode(&h); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return nw, nil
}

// Write appends one record.
func (w *Writer) Write(rec *event.Record) error {
	t := rec.Type()
	id, ok := w.ids[t.Name]
	if !ok {
		return fmt.Errorf("type %s is not in the recording catalog", t.Name)
	}
	wr := wireRecord{
		Type:   id,
		Start:  rec.Start().UnixNano(),
		End:    rec.End().UnixNano(),
		Values: make([]any, len(t.Fields)),
	}
	if th := rec.Thread(); th != nil {
		wr.Thread = &wireThread{ID: th.ID, Name: th.Name}
	}
	for i := range t.Fields {
		wr.Values[i] = encodeValue(rec.ValueAt(i))
	}
	return w.enc.Encode(&wr)
}

// Close flushes buffered data and closes the underlying file, if any.
func (w *Writer) Close() error {
	var errs []error
	if err := w.buf.Flush(); err != nil {
		errs = append(errs, err)
	}
	if w.zw != nil {
		if err := w.zw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if w.closer != nil {
		if err := w.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
