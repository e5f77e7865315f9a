// Package target programs a board or emulator and captures its console.
package target

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/buckleypaul/runbench/internal/command"
	"github.com/buckleypaul/runbench/internal/serial"
)

// Target is a programmable device or emulator session.
// It is owned by a single caller and must not be used concurrently.
type Target interface {
	// BuildFlags returns the `zig build` flags selecting this target.
	BuildFlags() []string

	// Program transfers the images to the target. Earlier images may be
	// erased. The transfer may be deferred until ResetAndCaptureOutput.
	//
	// Flash memory has limited write endurance; callers must not program
	// more often than needed.
	Program(ctx context.Context, paths []string) error

	// ResetAndCaptureOutput runs the programmed application from the
	// start and returns its live console output. The caller closes it.
	ResetAndCaptureOutput(ctx context.Context) (io.ReadCloser, error)

	// Close releases the resources held by the target.
	Close() error
}

// Kind selects a Target implementation.
type Kind string

const (
	KindQEMU     Kind = "qemu"
	KindLPC55S69 Kind = "lpc55s69"
)

// Kinds lists the supported targets.
func Kinds() []Kind {
	return []Kind{KindQEMU, KindLPC55S69}
}

// ParseKind parses a target name, ignoring case.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	names := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return "", fmt.Errorf("unknown target %q (want one of %s)", s, strings.Join(names, ", "))
}

// Options configures the target drivers.
type Options struct {
	QEMU string // qemu-system-arm command

	PyOCD       string // pyocd command
	PyOCDUID    string // probe id passed as --uid
	SerialPort  string // empty selects the only connected port
	BaudRate    int
	ReadTimeout time.Duration

	Log *slog.Logger

	// OpenSerial and ListPorts replace the serial layer in tests.
	OpenSerial func(name string, baudRate int, readTimeout time.Duration) (io.ReadCloser, error)
	ListPorts  func() ([]serial.PortInfo, error)
}

func (o Options) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.Default()
}

// New creates the Target for kind. It checks that the controlling tool runs.
func New(ctx context.Context, kind Kind, opts Options, runner command.Runner) (Target, error) {
	var (
		t   Target
		err error
	)
	switch kind {
	case KindQEMU:
		t, err = NewEmulator(ctx, opts, runner)
	case KindLPC55S69:
		t, err = NewBoard(ctx, opts, runner)
	default:
		return nil, errors.Errorf("unknown target %q", kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize the target driver")
	}
	return t, nil
}

func probeVersion(ctx context.Context, runner command.Runner, log *slog.Logger, tool string) error {
	out, err := runner.Output(ctx, command.New(tool, "--version"))
	if err != nil {
		return err
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	log.Info("tool version", "tool", tool, "version", version)
	return nil
}
