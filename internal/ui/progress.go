package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/buckleypaul/runbench/internal/buildopt"
	"github.com/buckleypaul/runbench/internal/orchestrator"
)

const (
	maxLogLines   = 1000
	defaultWidth  = 80
	logPaneHeight = 12
)

type runStartedMsg struct{ info orchestrator.RunInfo }

type configStartedMsg struct {
	index, total int
	opt          buildopt.Option
}

type stageStartedMsg struct {
	opt   buildopt.Option
	stage orchestrator.Stage
}

type configFinishedMsg struct {
	index int
	opt   buildopt.Option
	err   error
}

type runFinishedMsg struct{ summary orchestrator.Summary }

type logLineMsg struct{ line string }

// workDoneMsg is sent once the work function returned.
type workDoneMsg struct{}

// Keys of the progress view.
var Keys = struct {
	Cancel key.Binding
}{
	Cancel: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "cancel"),
	),
}

// ProgressModel shows the progress of a run: a spinner with the current
// configuration and stage, a progress bar and the tail of the log.
type ProgressModel struct {
	spinner spinner.Model
	bar     progress.Model
	logs    viewport.Model
	lines   []string

	info    orchestrator.RunInfo
	started bool
	current buildopt.Option
	index   int
	total   int
	stage   orchestrator.Stage
	done    int
	failed  int

	summary   *orchestrator.Summary
	cancel    func()
	canceling bool
	width     int
}

// NewProgressModel returns the model. cancel is called when the user asks
// to stop the run.
func NewProgressModel(cancel func()) *ProgressModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(Accent)),
	)
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = defaultWidth - 4
	return &ProgressModel{
		spinner: s,
		bar:     bar,
		logs:    viewport.New(defaultWidth-6, logPaneHeight),
		cancel:  cancel,
		width:   defaultWidth,
	}
}

func (m *ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Percent is the share of configurations that have finished.
func (m *ProgressModel) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-4, 10)
		m.logs.Width = max(msg.Width-6, 10)
		m.updateLogContent()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, Keys.Cancel) {
			if m.summary != nil {
				return m, tea.Quit
			}
			if !m.canceling && m.cancel != nil {
				m.canceling = true
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case runStartedMsg:
		m.info = msg.info
		m.total = len(msg.info.Configurations)
		return m, nil

	case configStartedMsg:
		m.started = true
		m.index = msg.index
		m.total = msg.total
		m.current = msg.opt
		m.stage = ""
		return m, nil

	case stageStartedMsg:
		m.stage = msg.stage
		return m, nil

	case configFinishedMsg:
		if msg.err != nil {
			m.failed++
		} else {
			m.done++
		}
		return m, nil

	case runFinishedMsg:
		s := msg.summary
		m.summary = &s
		return m, tea.Quit

	case workDoneMsg:
		return m, tea.Quit

	case logLineMsg:
		m.lines = append(m.lines, msg.line)
		if len(m.lines) > maxLogLines {
			m.lines = m.lines[len(m.lines)-maxLogLines:]
		}
		m.updateLogContent()
		return m, nil
	}

	var cmd tea.Cmd
	m.logs, cmd = m.logs.Update(msg)
	return m, cmd
}

func (m *ProgressModel) updateLogContent() {
	width := m.logs.Width
	content := strings.Join(m.lines, "\n")
	if width > 0 {
		// Hard wrap, then cut whatever is still too wide (ANSI-aware)
		lines := strings.Split(wrap.String(content, width), "\n")
		for i, line := range lines {
			if ansi.PrintableRuneWidth(line) > width {
				lines[i] = truncate.String(line, uint(width))
			}
		}
		content = strings.Join(lines, "\n")
	}
	m.logs.SetContent(content)
	m.logs.GotoBottom()
}

func (m *ProgressModel) View() string {
	var b strings.Builder

	header := "runbench"
	if m.info.Benchmark != "" {
		header = fmt.Sprintf("runbench %s on %s", m.info.Benchmark, m.info.Target)
	}
	b.WriteString(Title(header))
	b.WriteString("\n")

	if m.summary != nil {
		b.WriteString(RenderSummary(*m.summary))
		b.WriteString("\n")
		return b.String()
	}

	status := DimStyle.Render("preparing")
	if m.started {
		status = fmt.Sprintf("[%d/%d] %s %s",
			m.index+1, m.total,
			BoldStyle.Render(m.current.String()),
			StageStyle.Render(string(m.stage)))
	}
	if m.canceling {
		status = WarningBadge("CANCELING") + " " + status
	}
	b.WriteString(m.spinner.View() + " " + status + "\n")
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(fmt.Sprintf(" %d/%d\n", m.done, m.total))
	b.WriteString(Panel("Log", m.logs.View(), m.width, logPaneHeight+2, false))
	b.WriteString("\n")
	b.WriteString(StatusKey(Keys.Cancel.Help().Key, Keys.Cancel.Help().Desc))
	b.WriteString("\n")
	return b.String()
}
