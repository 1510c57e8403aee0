package observ

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTimerSummary(t *testing.T) {
	now := time.Unix(0, 0)
	tm := NewTimer()
	tm.now = func() time.Time { return now }

	done := tm.Track("open")
	now = now.Add(2 * time.Millisecond)
	done("2 files")

	idx := tm.Begin("stream")
	now = now.Add(500 * time.Microsecond)
	tm.End(idx, "")
	tm.End(99, "ignored")

	if got := tm.Total(); got != 2500*time.Microsecond {
		t.Fatalf("Total = %v", got)
	}
	var buf bytes.Buffer
	if err := tm.WriteSummary(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"open", "2.00 ms", "(2 files)", "stream", "0.50 ms", "total", "2.50 ms"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
