package ui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LogHandler is a slog.Handler printing one colored line per record:
//
//	15:04:05 INFO  building the program option=ReleaseFast+ctx
type LogHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	prefix string // pre-rendered attrs from WithAttrs
	group  string // dotted group prefix for keys
	styles logStyles
	// TimeFormat is used for the leading timestamp; empty omits it.
	TimeFormat string
}

type logStyles struct {
	debug, info, warn, err lipgloss.Style
	key, message           lipgloss.Style
}

func newLogStyles(r *lipgloss.Renderer) logStyles {
	badge := r.NewStyle().Width(5).Bold(true)
	return logStyles{
		debug:   badge.Foreground(Subtle),
		info:    badge.Foreground(Secondary),
		warn:    badge.Foreground(Warning),
		err:     badge.Foreground(Error),
		key:     r.NewStyle().Foreground(TextDim),
		message: r.NewStyle().Foreground(Text),
	}
}

// NewLogHandler returns a handler writing to w. Colors are used when w is a
// terminal.
func NewLogHandler(w io.Writer, level slog.Leveler) *LogHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogHandler{
		mu:         &sync.Mutex{},
		w:          w,
		level:      level,
		styles:     newLogStyles(lipgloss.NewRenderer(w)),
		TimeFormat: time.TimeOnly,
	}
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LogHandler) levelBadge(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.styles.err.Render("ERROR")
	case level >= slog.LevelWarn:
		return h.styles.warn.Render("WARN")
	case level >= slog.LevelInfo:
		return h.styles.info.Render("INFO")
	default:
		return h.styles.debug.Render("DEBUG")
	}
}

func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	if h.TimeFormat != "" && !r.Time.IsZero() {
		buf.WriteString(h.styles.key.Render(r.Time.Format(h.TimeFormat)))
		buf.WriteByte(' ')
	}
	buf.WriteString(h.levelBadge(r.Level))
	buf.WriteByte(' ')
	buf.WriteString(h.styles.message.Render(r.Message))
	buf.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, h.group, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *LogHandler) appendAttr(buf *bytes.Buffer, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			group += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(buf, group, ga)
		}
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(h.styles.key.Render(group + a.Key + "="))
	buf.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindDuration:
		s = v.Duration().String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	default:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	var buf bytes.Buffer
	for _, a := range attrs {
		h.appendAttr(&buf, h.group, a)
	}
	h2.prefix = h.prefix + buf.String()
	return &h2
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}
