package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// Cmd is an external command line.
type Cmd struct {
	Name string
	Args []string
	Dir  string   // working directory; empty means the current one
	Env  []string // nil inherits the environment
}

// New returns a Cmd running name with args.
func New(name string, args ...string) Cmd {
	return Cmd{Name: name, Args: args}
}

// String renders the full command line for diagnostics.
func (c Cmd) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, s := range append([]string{c.Name}, c.Args...) {
		if s == "" || strings.ContainsAny(s, " \t\"'") {
			s = strconv.Quote(s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

// SpawnError means the command could not be started.
type SpawnError struct {
	Cmd Cmd
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not execute %s: %v", e.Cmd, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the command ran and returned a non-zero status.
type ExitError struct {
	Cmd      Cmd
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s returned exit status %d", e.Cmd, e.ExitCode)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes external commands. It is replaced in tests.
type Runner interface {
	// Run waits for the command and fails unless it exits with status zero.
	Run(ctx context.Context, c Cmd) error
	// Output is like Run but returns the standard output.
	Output(ctx context.Context, c Cmd) ([]byte, error)
	// Start starts the command with its standard output connected to a pipe.
	Start(ctx context.Context, c Cmd) (Process, error)
}

// Process is a running child whose standard output is being read.
type Process interface {
	io.Reader
	// Close kills the child and waits for it to exit.
	Close() error
}

// Exec runs commands with os/exec.
type Exec struct {
	Log *slog.Logger
	// Stdout receives the standard output of Run; nil means os.Stdout.
	Stdout io.Writer
	// Stderr receives the standard error of children; nil means os.Stderr.
	Stderr io.Writer
	// Env is used for commands that do not carry their own environment.
	Env []string
}

func (e *Exec) logger() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func (e *Exec) build(ctx context.Context, c Cmd) *exec.Cmd {
	e.logger().Debug("executing command", "cmd", c.String())
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if cmd.Env == nil {
		cmd.Env = e.Env
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	// Own process group, so a killed emulator does not leave children behind.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

func classify(ctx context.Context, c Cmd, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s was interrupted: %w", c, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Cmd: c, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &SpawnError{Cmd: c, Err: err}
}

func (e *Exec) Run(ctx context.Context, c Cmd) error {
	cmd := e.build(ctx, c)
	cmd.Stdout = e.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if err := cmd.Run(); err != nil {
		return classify(ctx, c, err)
	}
	return nil
}

func (e *Exec) Output(ctx context.Context, c Cmd) ([]byte, error) {
	cmd := e.build(ctx, c)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, classify(ctx, c, err)
	}
	return stdout.Bytes(), nil
}

func (e *Exec) Start(ctx context.Context, c Cmd) (Process, error) {
	cmd := e.build(ctx, c)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Cmd: c, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Cmd: c, Err: err}
	}
	return &process{cmd: cmd, stdout: stdout}, nil
}

type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	closed bool
}

func (p *process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *process) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	// Negative pid signals the whole process group.
	if err := syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.cmd.Process.Kill()
	}
	// The exit status of a killed child is not interesting.
	p.cmd.Wait()
	return nil
}
