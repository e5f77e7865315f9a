package ui

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/buckleypaul/runbench/internal/buildopt"
	"github.com/buckleypaul/runbench/internal/orchestrator"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	h := NewLogHandler(buf, level)
	h.TimeFormat = ""
	return slog.New(h)
}

func TestLogHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, slog.LevelInfo)

	log.Info("building the program", "option", "ReleaseFast+ctx", "n", 3)
	log.Warn("attempt failed", "err", errors.New("probe not found"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if lines[0] != "INFO  building the program option=ReleaseFast+ctx n=3" {
		t.Errorf("unexpected line %q", lines[0])
	}
	if lines[1] != `WARN  attempt failed err="probe not found"` {
		t.Errorf("unexpected line %q", lines[1])
	}
}

func TestLogHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, slog.LevelWarn)

	log.Debug("hidden")
	log.Info("hidden")
	log.Error("shown")

	if got := strings.TrimSpace(buf.String()); got != "ERROR shown" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestLogHandlerAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, slog.LevelDebug).With("target", "qemu").WithGroup("capture")

	log.Debug("found marker", "end", 12, slog.Group("marker", "text", "Done!"))

	want := "DEBUG found marker target=qemu capture.end=12 capture.marker.text=Done!"
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestLogHandlerTimestamp(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewLogHandler(&buf, nil)).Info("hello")
	if !strings.Contains(buf.String(), ":") || !strings.Contains(buf.String(), "INFO  hello") {
		t.Errorf("expected a timestamped line, got %q", buf.String())
	}
}

// fakeSender collects messages.
type fakeSender struct {
	msgs []tea.Msg
}

func (s *fakeSender) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

func (s *fakeSender) lines() []string {
	var out []string
	for _, m := range s.msgs {
		if l, ok := m.(logLineMsg); ok {
			out = append(out, l.line)
		}
	}
	return out
}

func TestLogWriterSplitsLines(t *testing.T) {
	s := &fakeSender{}
	w := NewLogWriter(s)

	w.Write([]byte("first\nsec"))
	w.Write([]byte("ond\r\nthird"))
	if diff := cmp.Diff([]string{"first", "second"}, s.lines()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	w.Flush()
	if diff := cmp.Diff([]string{"first", "second", "third"}, s.lines()); diff != "" {
		t.Errorf("lines after flush mismatch (-want +got):\n%s", diff)
	}
}

func feed(m *ProgressModel, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func TestProgressModelTracksEvents(t *testing.T) {
	s := &fakeSender{}
	r := ProgramReporter{Program: s}
	opts := buildopt.Space{}.Enumerate(buildopt.Features{})

	r.RunStarted(orchestrator.RunInfo{Benchmark: "rtos", Target: "qemu", Configurations: opts})
	r.ConfigStarted(0, len(opts), opts[0])
	r.StageStarted(opts[0], orchestrator.StageBuild)
	r.ConfigFinished(0, opts[0], nil)
	r.ConfigStarted(1, len(opts), opts[1])
	r.StageStarted(opts[1], orchestrator.StageCapture)

	m := NewProgressModel(nil)
	feed(m, s.msgs...)

	if m.Percent() != 0.5 {
		t.Errorf("expected 50%%, got %v", m.Percent())
	}
	view := m.View()
	for _, want := range []string{"runbench rtos on qemu", "[2/2]", opts[1].String(), "capture", "1/2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestProgressModelLogPane(t *testing.T) {
	m := NewProgressModel(nil)
	feed(m, logLineMsg{line: "INFO  programming the target"})
	if !strings.Contains(m.View(), "programming the target") {
		t.Errorf("log line missing from view:\n%s", m.View())
	}

	for i := 0; i < maxLogLines+10; i++ {
		feed(m, logLineMsg{line: "x"})
	}
	if len(m.lines) != maxLogLines {
		t.Errorf("expected %d retained lines, got %d", maxLogLines, len(m.lines))
	}
}

func TestProgressModelCancel(t *testing.T) {
	canceled := 0
	m := NewProgressModel(func() { canceled++ })

	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
	if cmd := feed(m, key, key); cmd != nil {
		t.Error("cancel during a run must not quit the program")
	}
	if canceled != 1 {
		t.Errorf("expected cancel once, got %d", canceled)
	}
	if !strings.Contains(m.View(), "CANCELING") {
		t.Error("expected cancel indicator")
	}
}

func TestProgressModelQuitsOnFinish(t *testing.T) {
	m := NewProgressModel(nil)
	cmd := feed(m, runFinishedMsg{summary: orchestrator.Summary{Benchmark: "rtos", Total: 2, Completed: 2}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "SUCCESS") {
		t.Errorf("expected summary in final view:\n%s", m.View())
	}
}

func TestRenderSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary orchestrator.Summary
		want    []string
	}{
		{
			name: "success",
			summary: orchestrator.Summary{
				Benchmark: "rtos", Target: "qemu", OutputDir: "out/x",
				Total: 4, Completed: 4, Duration: 90 * time.Second,
			},
			want: []string{"SUCCESS", "rtos", "qemu", "4/4", "out/x", "1m30s"},
		},
		{
			name: "failure",
			summary: orchestrator.Summary{
				Benchmark: "coremark", Total: 4, Completed: 1,
				Err: errors.New("ReleaseFast: capture: timed out\nmore detail"),
			},
			want: []string{"FAILED", "1/4", "ReleaseFast: capture: timed out"},
		},
		{
			name:    "dry run",
			summary: orchestrator.Summary{Benchmark: "rtos", Total: 60, DryRun: true},
			want:    []string{"DRY RUN", "60"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderSummary(tt.summary)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("summary missing %q:\n%s", w, out)
				}
			}
			if strings.Contains(out, "more detail") {
				t.Error("only the first line of the error belongs in the summary")
			}
		})
	}
}
