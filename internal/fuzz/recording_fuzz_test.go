package fuzztests

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"

	"ctxview/internal/recording"
	"ctxview/internal/stream"
)

const maxFuzzInput = 1 << 16

const maxRecords = 10_000

func drain(t *testing.T, src stream.Source) {
	t.Helper()
	for range maxRecords {
		rec, err := src.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				_ = src.Close()
				return
			}
			break
		}
		if rec == nil || rec.Type() == nil {
			t.Fatalf("reader returned a record without type")
		}
		if rec.End().Before(rec.Start()) {
			t.Fatalf("record ends before it starts: %v", rec)
		}
	}
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func FuzzNativeReader(f *testing.F) {
	addNativeSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte, compressed bool) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		src, err := recording.NewNativeReader(bytes.NewReader(input), compressed, nil)
		if err != nil {
			return
		}
		drain(t, src)
	})
}

func FuzzNDJSONReader(f *testing.F) {
	for _, seed := range ndjsonSeeds {
		f.Add([]byte(seed))
	}
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		src, err := recording.NewNDJSONReader(strings.NewReader(string(input)), nil)
		if err != nil {
			return
		}
		drain(t, src)
	})
}

func FuzzOTLP(f *testing.F) {
	seed, err := proto.Marshal(&tracev1.TracesData{ResourceSpans: []*tracev1.ResourceSpans{{
		ScopeSpans: []*tracev1.ScopeSpans{{Spans: []*tracev1.Span{{
			TraceId:           bytes.Repeat([]byte{1}, 16),
			SpanId:            bytes.Repeat([]byte{2}, 8),
			Name:              "GET /",
			StartTimeUnixNano: 1000,
			EndTimeUnixNano:   5000,
			Events:            []*tracev1.Span_Event{{Name: "cache-miss", TimeUnixNano: 2000}},
		}}}},
	}}})
	if err != nil {
		f.Fatalf("marshal: %v", err)
	}
	f.Add(seed)
	f.Add([]byte{})
	late, err := proto.Marshal(&tracev1.TracesData{ResourceSpans: []*tracev1.ResourceSpans{{
		ScopeSpans: []*tracev1.ScopeSpans{{Spans: []*tracev1.Span{{
			Name:              "late",
			StartTimeUnixNano: 1000,
			EndTimeUnixNano:   math.MaxUint64,
		}}}},
	}}})
	if err != nil {
		f.Fatalf("marshal: %v", err)
	}
	f.Add(late)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = input[:maxFuzzInput]
		}
		src, err := recording.ReadOTLP(bytes.NewReader(input))
		if err != nil {
			return
		}
		// OTLP timestamps are unsigned: nothing may wrap to before the epoch
		for {
			rec, err := src.Next()
			if err != nil {
				break
			}
			if rec.Start().UnixNano() < 0 || rec.End().UnixNano() < 0 {
				t.Fatalf("timestamp wrapped: %v..%v", rec.Start(), rec.End())
			}
		}
		src, err = recording.ReadOTLP(bytes.NewReader(input))
		if err != nil {
			t.Fatalf("second decode failed: %v", err)
		}
		drain(t, src)
	})
}
