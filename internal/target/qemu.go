package target

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/buckleypaul/runbench/internal/command"
)

// Emulator runs images on an emulated Arm MPS2+ AN505 with qemu-system-arm.
// Every capture boots a fresh emulator process.
type Emulator struct {
	runner command.Runner
	cmd    string
	log    *slog.Logger

	images  []string
	current io.Closer
}

// NewEmulator checks that the emulator runs and returns the driver.
func NewEmulator(ctx context.Context, opts Options, runner command.Runner) (*Emulator, error) {
	cmd := opts.QEMU
	if cmd == "" {
		cmd = "qemu-system-arm"
	}
	log := opts.logger()
	if err := probeVersion(ctx, runner, log, cmd); err != nil {
		return nil, err
	}
	return &Emulator{runner: runner, cmd: cmd, log: log}, nil
}

func (e *Emulator) BuildFlags() []string {
	return []string{"-Dtarget-board=an505"}
}

// Program only records the images; the emulator loads them when it boots.
func (e *Emulator) Program(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return &ProgramError{Err: errors.New("no images")}
	}
	e.images = append(e.images[:0], paths...)
	return nil
}

func (e *Emulator) command() command.Cmd {
	c := command.New(e.cmd,
		"-machine", "mps2-an505",
		"-nographic",
		"-d", "guest_errors",
		"-semihosting",
		"-semihosting-config", "target=native",
		"-kernel", e.images[0],
	)
	for _, image := range e.images[1:] {
		c.Args = append(c.Args, "-device", "loader,file="+image)
	}
	return c
}

func (e *Emulator) ResetAndCaptureOutput(ctx context.Context) (io.ReadCloser, error) {
	if len(e.images) == 0 {
		return nil, &CaptureStartError{Step: "spawn", Err: errors.New("no images have been programmed")}
	}
	e.closeCurrent()

	proc, err := e.runner.Start(ctx, e.command())
	if err != nil {
		return nil, &CaptureStartError{Step: "spawn", Err: err}
	}
	e.current = proc
	return proc, nil
}

func (e *Emulator) closeCurrent() {
	if e.current != nil {
		if err := e.current.Close(); err != nil {
			e.log.Debug("closing emulator", "err", err)
		}
		e.current = nil
	}
}

// Close kills the emulator process started by the last capture, if any.
func (e *Emulator) Close() error {
	e.closeCurrent()
	return nil
}
