package orchestrator

import (
	"log/slog"
	"time"

	"github.com/buckleypaul/runbench/internal/buildopt"
)

// RunInfo describes a run about to start.
type RunInfo struct {
	Benchmark      string
	Target         string
	OutputDir      string
	Configurations []buildopt.Option
	DryRun         bool
}

// Summary describes a finished run.
type Summary struct {
	Benchmark string
	Target    string
	OutputDir string
	Total     int
	Completed int
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	Err       error
}

// Success reports whether every configuration completed.
func (s Summary) Success() bool {
	return s.Err == nil && s.Completed == s.Total
}

// Reporter receives progress events. Calls come from the goroutine running
// the orchestrator, in order.
type Reporter interface {
	RunStarted(info RunInfo)
	ConfigStarted(index, total int, opt buildopt.Option)
	StageStarted(opt buildopt.Option, stage Stage)
	ConfigFinished(index int, opt buildopt.Option, err error)
	RunFinished(s Summary)
}

// LogReporter reports progress through a logger.
type LogReporter struct {
	Log *slog.Logger
}

func (r LogReporter) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func (r LogReporter) RunStarted(info RunInfo) {
	log := r.logger()
	log.Info("the following build options will be tested", "count", len(info.Configurations))
	for _, o := range info.Configurations {
		log.Info(" - " + o.String())
	}
	if !info.DryRun {
		log.Info("the output will be saved to", "dir", info.OutputDir)
	}
}

func (r LogReporter) ConfigStarted(index, total int, opt buildopt.Option) {
	r.logger().Info("build option", "option", opt.String(), "n", index+1, "of", total)
}

func (r LogReporter) StageStarted(opt buildopt.Option, stage Stage) {
	r.logger().Debug("stage", "option", opt.String(), "stage", string(stage))
}

func (r LogReporter) ConfigFinished(index int, opt buildopt.Option, err error) {
	if err != nil {
		r.logger().Error("build option failed", "option", opt.String(), "err", err)
	}
}

func (r LogReporter) RunFinished(s Summary) {
	if s.DryRun {
		return
	}
	log := r.logger()
	if s.Err != nil {
		log.Error("run aborted", "completed", s.Completed, "of", s.Total, "duration", s.Duration.Round(time.Second))
		return
	}
	log.Info("run finished", "completed", s.Completed, "duration", s.Duration.Round(time.Second))
}
