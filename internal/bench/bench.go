// Package bench describes the Non-Secure benchmark applications: which build
// dimensions they exercise and how their output is interpreted.
package bench

import (
	"regexp"

	"github.com/pkg/errors"

	"github.com/buckleypaul/runbench/internal/buildopt"
)

// DefaultTerminator ends the output of benchmarks that do not override it.
var DefaultTerminator = []byte("%output-end")

// CrashMarker ends the capture early when the firmware faults.
var CrashMarker = []byte("unhandled exception")

// Benchmark is a Non-Secure benchmark application.
type Benchmark interface {
	// Name identifies the benchmark on the command line and in metadata.
	Name() string
	// Binary is the `zig build` step suffix and the produced executable name.
	Binary() string
	// OutputTerminator marks the end of the benchmark output.
	OutputTerminator() []byte
	// Features tells which build dimensions vary for this benchmark.
	Features() buildopt.Features
	// ProcessOutput extracts the result from the raw output. A nil slice
	// with a nil error means the output holds no result.
	ProcessOutput(raw []byte) ([]byte, error)
}

// PostProcessError means the output could not be interpreted.
type PostProcessError struct {
	Benchmark string
	Err       error
}

func (e *PostProcessError) Error() string {
	return "could not post-process the output of " + e.Benchmark + ": " + e.Err.Error()
}

func (e *PostProcessError) Unwrap() error { return e.Err }

var outputRE = regexp.MustCompile(`(?s).*%output-start\s*(.*?)\s*%output-end`)

// DefaultProcessOutput returns the bytes between %output-start and %output-end.
func DefaultProcessOutput(raw []byte) ([]byte, error) {
	m := outputRE.FindSubmatch(raw)
	if m == nil {
		return nil, errors.New("could not locate a byte sequence enclosed by `%output-start` and `%output-end`")
	}
	return append([]byte(nil), m[1]...), nil
}

// Profile is a Benchmark described by data.
type Profile struct {
	ProfileName string
	BinaryName  string
	Terminator  []byte
	Use         buildopt.Features
}

func (p *Profile) Name() string { return p.ProfileName }

func (p *Profile) Binary() string {
	if p.BinaryName == "" {
		return p.ProfileName
	}
	return p.BinaryName
}

func (p *Profile) OutputTerminator() []byte {
	if len(p.Terminator) == 0 {
		return DefaultTerminator
	}
	return p.Terminator
}

func (p *Profile) Features() buildopt.Features { return p.Use }

func (p *Profile) ProcessOutput(raw []byte) ([]byte, error) {
	out, err := DefaultProcessOutput(raw)
	if err != nil {
		return nil, &PostProcessError{Benchmark: p.ProfileName, Err: err}
	}
	return out, nil
}

// Markers returns the markers that end a capture for b.
func Markers(b Benchmark) [][]byte {
	return [][]byte{CrashMarker, b.OutputTerminator()}
}
