// Package capture reads target console output until a terminating marker
// shows up, bounded by a silence timeout and a size limit.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	DefaultSilenceTimeout = 35 * time.Second
	DefaultMaxBytes       = 1 << 20
	DefaultChunkSize      = 16 << 10
)

var (
	// ErrTimeout means no output arrived for the silence timeout.
	ErrTimeout = errors.New("no terminating marker before the silence timeout elapsed since the last output")
	// ErrTooLong means the output exceeded the size limit without a marker.
	ErrTooLong = errors.New("no terminating marker before the output size limit was exceeded")
)

// Error is returned for ErrTimeout and ErrTooLong. Partial holds the output
// received so far; it is kept for diagnostics only.
type Error struct {
	Err     error
	Partial []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (%d bytes received)", e.Err, len(e.Partial))
}

func (e *Error) Unwrap() error { return e.Err }

// Options bound a capture. Zero fields take the defaults.
type Options struct {
	SilenceTimeout time.Duration
	MaxBytes       int
	ChunkSize      int
	Log            *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.SilenceTimeout <= 0 {
		o.SilenceTimeout = DefaultSilenceTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	return o
}

// Result is the output of a successful capture.
type Result struct {
	// Output ends exactly at the end of Marker when Matched is set.
	Output  []byte
	Marker  []byte
	Matched bool
}

type readResult struct {
	n   int
	err error
}

// Capture reads r until one of m's markers appears.
//
// Every iteration issues a single Read and races it against the silence
// timer and ctx. A read that loses the race is abandoned together with its
// buffer; the caller is expected to close r, which unblocks it.
//
// A Read returning no bytes, or an error, ends the capture with Matched
// unset and a nil error.
func Capture(ctx context.Context, r io.Reader, m *Matcher, opts Options) (Result, error) {
	opts = opts.withDefaults()
	log := opts.Log

	var output []byte
	for {
		chunk := make([]byte, opts.ChunkSize)
		results := make(chan readResult, 1)
		go func() {
			n, err := r.Read(chunk)
			results <- readResult{n, err}
		}()

		timer := time.NewTimer(opts.SilenceTimeout)
		var res readResult
		select {
		case res = <-results:
			timer.Stop()
		case <-timer.C:
			log.Debug("capture timed out", "received", len(output), "output", string(output))
			return Result{}, &Error{Err: ErrTimeout, Partial: output}
		case <-ctx.Done():
			timer.Stop()
			return Result{}, ctx.Err()
		}

		if res.n > 0 {
			output = append(output, chunk[:res.n]...)

			// A marker completed by this read started at most MaxLen-1
			// bytes before it.
			window := min(res.n+m.MaxLen()-1, len(output))
			start := len(output) - window
			if end, marker, ok := m.Find(output[start:]); ok {
				log.Debug("found marker", "marker", string(marker), "end", start+end)
				return Result{Output: output[:start+end], Marker: marker, Matched: true}, nil
			}

			if len(output) > opts.MaxBytes {
				return Result{}, &Error{Err: ErrTooLong, Partial: output}
			}
		}

		if res.n == 0 || res.err != nil {
			log.Debug("output stream ended without a marker", "received", len(output), "err", res.err)
			return Result{Output: output}, nil
		}
	}
}
