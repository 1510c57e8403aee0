package fuzztests

import (
	"bytes"
	"testing"

	"ctxview/internal/demo"
	"ctxview/internal/recording"
)

const maxSeedBytes = 64 << 10

func clampSeed(b []byte) []byte {
	if len(b) > maxSeedBytes {
		return append([]byte(nil), b[:maxSeedBytes]...)
	}
	return b
}

// addNativeSeeds adds small demo recordings, plain and compressed.
func addNativeSeeds(f *testing.F) {
	for _, compressed := range []bool{false, true} {
		recs, err := demo.Generate(demo.Options{Threads: 1, Requests: 2, Seed: 11})
		if err != nil {
			f.Fatalf("demo: %v", err)
		}
		var buf bytes.Buffer
		w, err := recording.NewWriter(&buf, demo.Catalog(), compressed, nil)
		if err != nil {
			f.Fatalf("writer: %v", err)
		}
		for _, rec := range recs {
			if err := w.Write(rec); err != nil {
				f.Fatalf("write: %v", err)
			}
		}
		if err := w.Close(); err != nil {
			f.Fatalf("close: %v", err)
		}
		f.Add(clampSeed(buf.Bytes()), compressed)
	}
	f.Add([]byte("CTXR"), false)
	f.Add([]byte{}, true)
}

var ndjsonSeeds = []string{
	`{"types":[{"name":"demo.Trace","fields":[{"name":"traceId","kind":"string","contextual":true}]},{"name":"demo.Work","fields":[{"name":"task"}]}]}
{"type":"demo.Trace","start":1000,"end":9000,"thread":{"id":1,"name":"main"},"values":{"traceId":"req-1"}}
{"type":"demo.Work","start":2000,"end":2000,"thread":{"id":1,"name":"main"},"values":{"task":"a"}}`,
	`{"types":[]}`,
	`{"types":[{"name":""}]}`,
	`{"types":[{"name":"x","fields":[{"name":"d","kind":"duration"},{"name":"t","kind":"time"}]}]}
{"type":"x","values":{"d":12,"t":"2024-01-01T00:00:00Z"}}`,
	`{"type":"x"}`,
}
