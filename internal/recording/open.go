package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"ctxview/internal/event"
	"ctxview/internal/stream"
)

var (
	// ErrBadMagic reports a file that is not a recording of its format.
	ErrBadMagic = errors.New("not a recording")
	// ErrUnsupported reports an unknown extension or format version.
	ErrUnsupported = errors.New("unsupported recording format")
)

// Format is a recording encoding.
type Format uint8

const (
	FormatNative Format = iota + 1
	FormatNativeZstd
	FormatNDJSON
	FormatOTLP
)

func (f Format) String() string {
	switch f {
	case FormatNative:
		return "ctxr"
	case FormatNativeZstd:
		return "ctxr.zst"
	case FormatNDJSON:
		return "ndjson"
	case FormatOTLP:
		return "otlp"
	}
	return "unknown"
}

// DetectFormat picks the format from the file name.
func DetectFormat(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".ctxr.zst"):
		return FormatNativeZstd, nil
	case strings.HasSuffix(lower, ".ctxr"):
		return FormatNative, nil
	case strings.HasSuffix(lower, ".ndjson"), strings.HasSuffix(lower, ".jsonl"):
		return FormatNDJSON, nil
	case strings.HasSuffix(lower, ".otlp.pb"), strings.HasSuffix(lower, ".otlp"):
		return FormatOTLP, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// Open opens one recording as a stream source.
func Open(path string) (stream.Source, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var src stream.Source
	switch format {
	case FormatNative, FormatNativeZstd:
		src, err = NewNativeReader(f, format == FormatNativeZstd, f)
	case FormatNDJSON:
		src, err = NewNDJSONReader(f, f)
	case FormatOTLP:
		src, err = ReadOTLP(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		if format != FormatOTLP {
			_ = f.Close()
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// OpenEvent reports the progress of one file during OpenAllObserved.
type OpenEvent struct {
	Path string
	Done bool
	Err  error
}

// OpenAll opens recordings in parallel. On error every source that was
// opened is closed and the first error is returned.
func OpenAll(ctx context.Context, paths []string, jobs int) ([]stream.Source, error) {
	return OpenAllObserved(ctx, paths, jobs, nil)
}

// OpenAllObserved is OpenAll with a callback invoked when a file starts and
// finishes opening. observe may be called from several goroutines.
func OpenAllObserved(ctx context.Context, paths []string, jobs int, observe func(OpenEvent)) ([]stream.Source, error) {
	if observe == nil {
		observe = func(OpenEvent) {}
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	sources := make([]stream.Source, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(paths))))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			observe(OpenEvent{Path: path})
			src, err := Open(path)
			observe(OpenEvent{Path: path, Done: true, Err: err})
			if err != nil {
				return err
			}
			// indexes are unique per goroutine
			sources[i] = src
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, src := range sources {
			if src != nil {
				_ = src.Close()
			}
		}
		return nil, err
	}
	return sources, nil
}

// Create opens path for writing a native recording. A .zst suffix enables
// compression.
func Create(path string, catalog *event.Catalog) (*Writer, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if format != FormatNative && format != FormatNativeZstd {
		return nil, fmt.Errorf("%w: cannot write %s recordings", ErrUnsupported, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, catalog, format == FormatNativeZstd, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}
