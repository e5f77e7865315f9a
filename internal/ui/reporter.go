package ui

import (
	"bytes"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/runbench/internal/buildopt"
	"github.com/buckleypaul/runbench/internal/orchestrator"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramReporter forwards orchestrator events to a bubbletea program.
type ProgramReporter struct {
	Program Sender
}

func (r ProgramReporter) RunStarted(info orchestrator.RunInfo) {
	r.Program.Send(runStartedMsg{info: info})
}

func (r ProgramReporter) ConfigStarted(index, total int, opt buildopt.Option) {
	r.Program.Send(configStartedMsg{index: index, total: total, opt: opt})
}

func (r ProgramReporter) StageStarted(opt buildopt.Option, stage orchestrator.Stage) {
	r.Program.Send(stageStartedMsg{opt: opt, stage: stage})
}

func (r ProgramReporter) ConfigFinished(index int, opt buildopt.Option, err error) {
	r.Program.Send(configFinishedMsg{index: index, opt: opt, err: err})
}

func (r ProgramReporter) RunFinished(s orchestrator.Summary) {
	r.Program.Send(runFinishedMsg{summary: s})
}

// LogWriter sends every complete line written to it to the log pane.
type LogWriter struct {
	Program Sender

	mu      sync.Mutex
	pending bytes.Buffer
}

// NewLogWriter returns a LogWriter for p.
func NewLogWriter(p Sender) *LogWriter {
	return &LogWriter{Program: p}
}

func (w *LogWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.Write(b)
	for {
		line, err := w.pending.ReadString('\n')
		if err != nil {
			// Keep the incomplete tail for the next write.
			w.pending.Reset()
			w.pending.WriteString(line)
			break
		}
		w.Program.Send(logLineMsg{line: strings.TrimRight(line, "\r\n")})
	}
	return len(b), nil
}

// Flush sends a trailing line without a newline.
func (w *LogWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.Len() > 0 {
		w.Program.Send(logLineMsg{line: w.pending.String()})
		w.pending.Reset()
	}
}

// RunProgram runs work while a ProgressModel displays its events and logs.
// It returns the error of work, or the error of the program when the
// display failed. cancel stops work; it is called on user request.
func RunProgram(cancel func(), work func(report orchestrator.Reporter, logs *LogWriter) error, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewProgressModel(cancel), opts...)
	logs := NewLogWriter(p)

	var workErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		workErr = work(ProgramReporter{Program: p}, logs)
		logs.Flush()
		p.Send(workDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	<-done
	return workErr
}
