// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/buckleypaul/runbench/internal/command"
)

// Runner records every command and answers with Handle.
type Runner struct {
	// Handle returns the output and error for a Run or Output call.
	// nil means every command succeeds without output.
	Handle func(c command.Cmd) ([]byte, error)
	// StartFunc serves Start. nil starts a process with empty output.
	StartFunc func(c command.Cmd) (command.Process, error)

	mu    sync.Mutex
	calls []command.Cmd
}

func (r *Runner) record(c command.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Args = append([]string(nil), c.Args...)
	r.calls = append(r.calls, c)
}

// Calls returns the commands seen so far.
func (r *Runner) Calls() []command.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Cmd(nil), r.calls...)
}

// Lines returns the recorded commands rendered as command lines.
func (r *Runner) Lines() []string {
	var lines []string
	for _, c := range r.Calls() {
		lines = append(lines, c.String())
	}
	return lines
}

func (r *Runner) Run(ctx context.Context, c command.Cmd) error {
	_, err := r.Output(ctx, c)
	return err
}

func (r *Runner) Output(ctx context.Context, c command.Cmd) ([]byte, error) {
	r.record(c)
	if r.Handle == nil {
		return nil, nil
	}
	return r.Handle(c)
}

func (r *Runner) Start(ctx context.Context, c command.Cmd) (command.Process, error) {
	r.record(c)
	if r.StartFunc == nil {
		return NewProcess(strings.NewReader("")), nil
	}
	return r.StartFunc(c)
}

// Process serves output from a reader and records Close.
type Process struct {
	r      io.Reader
	mu     sync.Mutex
	closed bool
}

// NewProcess returns a Process reading from r. When r is also an
// io.Closer it is closed together with the process.
func NewProcess(r io.Reader) *Process {
	return &Process{r: r}
}

func (p *Process) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if c, ok := p.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Closed reports whether Close has been called.
func (p *Process) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ExitError builds the error a failing command returns.
func ExitError(c command.Cmd, code int) error {
	return &command.ExitError{Cmd: c, ExitCode: code}
}
