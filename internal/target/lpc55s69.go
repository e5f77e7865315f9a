package target

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/buckleypaul/runbench/internal/command"
	"github.com/buckleypaul/runbench/internal/serial"
)

// Board runs images on an LPC55S69 board. Programming, halting and
// resetting go through PyOCD; the console is read from a serial port.
type Board struct {
	runner command.Runner
	pyocd  string
	uid    string
	log    *slog.Logger

	port        string
	baudRate    int
	readTimeout time.Duration
	openSerial  func(name string, baudRate int, readTimeout time.Duration) (io.ReadCloser, error)
}

// NewBoard checks that PyOCD runs, selects the serial port and returns the driver.
func NewBoard(ctx context.Context, opts Options, runner command.Runner) (*Board, error) {
	pyocd := opts.PyOCD
	if pyocd == "" {
		pyocd = "pyocd"
	}
	log := opts.logger()
	if err := probeVersion(ctx, runner, log, pyocd); err != nil {
		return nil, err
	}

	port, auto, err := serial.ChoosePort(opts.SerialPort, opts.ListPorts)
	if err != nil {
		return nil, err
	}
	log.Info("using serial port", "port", port, "auto", auto)

	open := opts.OpenSerial
	if open == nil {
		open = func(name string, baudRate int, readTimeout time.Duration) (io.ReadCloser, error) {
			return serial.Open(name, baudRate, readTimeout)
		}
	}

	return &Board{
		runner:      runner,
		pyocd:       pyocd,
		uid:         opts.PyOCDUID,
		log:         log,
		port:        port,
		baudRate:    opts.BaudRate,
		readTimeout: opts.ReadTimeout,
		openSerial:  open,
	}, nil
}

func (b *Board) BuildFlags() []string {
	return []string{"-Dtarget-board=lpc55s69"}
}

// pyocdCmd builds `pyocd <sub> -t lpc55s69 [--uid UID] <args...>`.
func (b *Board) pyocdCmd(sub string, args ...string) command.Cmd {
	c := command.New(b.pyocd, sub, "-t", "lpc55s69")
	if b.uid != "" {
		c.Args = append(c.Args, "--uid", b.uid)
	}
	c.Args = append(c.Args, args...)
	return c
}

// Program flashes each image in order and stops at the first failure.
func (b *Board) Program(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return &ProgramError{Err: errors.New("no images")}
	}
	for _, path := range paths {
		abs, err := canonicalize(path)
		if err != nil {
			return &ProgramError{Path: path, Err: errors.Wrap(err, "could not get the absolute path")}
		}
		b.log.Debug("flashing image", "path", abs)
		if err := b.runner.Run(ctx, b.pyocdCmd("flash", "--format", "elf", abs)); err != nil {
			return &ProgramError{Path: abs, Err: err}
		}
	}
	return nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// ResetAndCaptureOutput halts the core, opens the serial port and only then
// resets, so that no early output is lost.
func (b *Board) ResetAndCaptureOutput(ctx context.Context) (io.ReadCloser, error) {
	if err := b.runner.Run(ctx, b.pyocdCmd("cmd", "-c", "halt")); err != nil {
		return nil, &CaptureStartError{Step: "halt", Err: err}
	}

	port, err := b.openSerial(b.port, b.baudRate, b.readTimeout)
	if err != nil {
		return nil, &CaptureStartError{Step: "open serial", Err: errors.Wrapf(err, "serial port %s", b.port)}
	}

	if err := b.runner.Run(ctx, b.pyocdCmd("cmd", "-c", "reset")); err != nil {
		port.Close()
		return nil, &CaptureStartError{Step: "reset", Err: err}
	}
	return &console{port: port}, nil
}

// console is the board's serial output. A read that times out without data
// is repeated until the port is closed, so the caller's silence timeout is
// the only deadline.
type console struct {
	port   io.ReadCloser
	closed atomic.Bool
}

func (c *console) Read(b []byte) (int, error) {
	for {
		n, err := c.port.Read(b)
		if n > 0 || err != nil {
			return n, err
		}
		if c.closed.Load() {
			return 0, io.EOF
		}
	}
}

func (c *console) Close() error {
	c.closed.Store(true)
	return c.port.Close()
}

func (b *Board) Close() error { return nil }
