// Package orchestrator drives a benchmark through every build configuration:
// build, deploy, capture and persist, one configuration at a time.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/buckleypaul/runbench/internal/bench"
	"github.com/buckleypaul/runbench/internal/buildopt"
	"github.com/buckleypaul/runbench/internal/capture"
	"github.com/buckleypaul/runbench/internal/command"
	"github.com/buckleypaul/runbench/internal/retry"
	"github.com/buckleypaul/runbench/internal/store"
	"github.com/buckleypaul/runbench/internal/target"
)

// SecureBinary is the name of the Secure executable built for every benchmark.
const SecureBinary = "secure"

// Options configures a run.
type Options struct {
	Zig          string // zig command
	WorkspaceDir string // directory holding build.zig; zig runs here
	ZigCacheDir  string // relative paths are resolved against WorkspaceDir
	OutputDir    string // may contain %date%, %time%, %target% and %benchmark%
	TargetName   string

	Space         buildopt.Space
	RetryAttempts int
	Capture       capture.Options
	DryRun        bool

	Log      *slog.Logger
	Reporter Reporter       // nil reports through Log
	History  *store.History // nil disables the run history
	Now      func() time.Time
}

// Orchestrator runs one benchmark on one target.
type Orchestrator struct {
	runner  command.Runner
	target  target.Target
	bench   bench.Benchmark
	matcher *capture.Matcher
	opts    Options
	log     *slog.Logger
	report  Reporter
}

// New prepares a run of b on t.
func New(runner command.Runner, t target.Target, b bench.Benchmark, opts Options) (*Orchestrator, error) {
	matcher, err := capture.NewMatcher(bench.Markers(b)...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "benchmark %s", b.Name())
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = retry.DefaultAttempts
	}
	if opts.Capture.Log == nil {
		opts.Capture.Log = opts.Log
	}
	report := opts.Reporter
	if report == nil {
		report = LogReporter{Log: opts.Log}
	}
	return &Orchestrator{
		runner:  runner,
		target:  t,
		bench:   b,
		matcher: matcher,
		opts:    opts,
		log:     opts.Log,
		report:  report,
	}, nil
}

// Configurations returns the configurations a run will test, in order.
func (o *Orchestrator) Configurations() []buildopt.Option {
	return o.opts.Space.Enumerate(o.bench.Features())
}

// ExeNames returns the suffixes of the copied executables.
func (o *Orchestrator) ExeNames() store.ExeNames {
	return store.ExeNames{
		Secure:    SecureBinary + ".elf",
		NonSecure: o.bench.Binary() + ".elf",
	}
}

func (o *Orchestrator) cacheDir() string {
	dir := o.opts.ZigCacheDir
	if dir == "" {
		dir = "zig-cache"
	}
	if !filepath.IsAbs(dir) && o.opts.WorkspaceDir != "" {
		dir = filepath.Join(o.opts.WorkspaceDir, dir)
	}
	return dir
}

// Run processes every configuration and stops at the first failure.
// The metadata file is written in both cases and lists the configurations
// that completed.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	started := o.opts.Now()
	configs := o.Configurations()
	outputDir := store.ExpandDir(o.opts.OutputDir, started, o.opts.TargetName, o.bench.Name())

	summary := Summary{
		Benchmark: o.bench.Name(),
		Target:    o.opts.TargetName,
		OutputDir: outputDir,
		Total:     len(configs),
		StartedAt: started,
		DryRun:    o.opts.DryRun,
	}
	o.report.RunStarted(RunInfo{
		Benchmark:      summary.Benchmark,
		Target:         summary.Target,
		OutputDir:      outputDir,
		Configurations: configs,
		DryRun:         o.opts.DryRun,
	})
	if o.opts.DryRun {
		o.report.RunFinished(summary)
		return summary, nil
	}

	run, err := store.CreateRun(outputDir)
	if err != nil {
		summary.Err = err
		o.report.RunFinished(summary)
		return summary, err
	}

	meta := &store.Metadata{
		Benchmark: summary.Benchmark,
		Target:    summary.Target,
		ExeNames:  o.ExeNames(),
		StartedAt: started,
		Matrix:    []store.MatrixEntry{},
	}

	err = o.runAll(ctx, run, configs, meta)
	summary.Completed = len(meta.Matrix)
	summary.Err = err

	meta.FinishedAt = o.opts.Now()
	if err != nil {
		meta.Error = err.Error()
	}
	metaPath, metaErr := run.WriteMetadata(meta)
	if metaErr != nil {
		o.log.Error("could not write the metadata", "err", metaErr)
		if err == nil {
			err = metaErr
			summary.Err = err
		}
	} else {
		o.log.Info("wrote metadata", "path", metaPath)
	}

	summary.Duration = meta.FinishedAt.Sub(started)
	o.recordHistory(summary)
	o.report.RunFinished(summary)
	return summary, err
}

func (o *Orchestrator) runAll(ctx context.Context, run *store.Run, configs []buildopt.Option, meta *store.Metadata) error {
	for i, opt := range configs {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.report.ConfigStarted(i, len(configs), opt)
		entry, err := o.runConfig(ctx, run, opt)
		o.report.ConfigFinished(i, opt, err)
		if err != nil {
			return err
		}
		meta.Matrix = append(meta.Matrix, entry)
	}
	return nil
}

// job carries the state of one configuration through the stages.
type job struct {
	opt       buildopt.Option
	run       *store.Run
	buildArgs []string
	secure    string // built executables in the cache
	nonSecure string
	raw       []byte
}

func (o *Orchestrator) runConfig(ctx context.Context, run *store.Run, opt buildopt.Option) (store.MatrixEntry, error) {
	cache := o.cacheDir()
	j := &job{
		opt:       opt,
		run:       run,
		buildArgs: o.buildArgs(opt),
		secure:    filepath.Join(cache, SecureBinary),
		nonSecure: filepath.Join(cache, o.bench.Binary()),
	}

	steps := []struct {
		stage Stage
		fn    func(context.Context, *job) error
	}{
		{StageClean, o.clean},
		{StageBuild, o.build},
		{StageVerify, o.verify},
		{StageCopy, o.copyArtifacts},
		{StageProgram, o.program},
		{StageCapture, o.captureOutput},
		{StagePersist, o.persistRaw},
		{StagePostProcess, o.postProcess},
	}
	for _, step := range steps {
		o.report.StageStarted(opt, step.stage)
		if err := step.fn(ctx, j); err != nil {
			return store.MatrixEntry{}, &ConfigError{Option: opt, Stage: step.stage, Err: err}
		}
	}

	return store.MatrixEntry{
		BuildOpt:  opt,
		Name:      opt.String(),
		BuildArgs: j.buildArgs,
	}, nil
}

func (o *Orchestrator) buildArgs(opt buildopt.Option) []string {
	args := []string{"build", "build:" + o.bench.Binary()}
	args = append(args, opt.BuildArgs()...)
	return append(args, o.target.BuildFlags()...)
}

func (o *Orchestrator) clean(ctx context.Context, j *job) error {
	o.log.Debug("deleting stale executables", "secure", j.secure, "non_secure", j.nonSecure)
	var g errgroup.Group
	for _, path := range []string{j.secure, j.nonSecure} {
		path := path
		g.Go(func() error {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) build(ctx context.Context, j *job) error {
	o.log.Info("building the program", "option", j.opt.String())
	c := command.New(o.opts.Zig, j.buildArgs...)
	c.Dir = o.opts.WorkspaceDir
	return o.runner.Run(ctx, c)
}

func (o *Orchestrator) verify(ctx context.Context, j *job) error {
	for _, path := range []string{j.secure, j.nonSecure} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return &ArtifactMissingError{Path: path}
			}
			return pkgerrors.Wrapf(err, "could not check the build artifact %s", path)
		}
	}
	return nil
}

func (o *Orchestrator) copyArtifacts(ctx context.Context, j *job) error {
	names := o.ExeNames()
	id := j.opt.String()
	var g errgroup.Group
	g.Go(func() error {
		_, err := j.run.CopyArtifact(j.secure, id+"."+names.Secure)
		return err
	})
	g.Go(func() error {
		_, err := j.run.CopyArtifact(j.nonSecure, id+"."+names.NonSecure)
		return err
	})
	return g.Wait()
}

func (o *Orchestrator) program(ctx context.Context, j *job) error {
	o.log.Info("programming the target")
	images := []string{j.nonSecure, j.secure}
	return retry.Func(ctx, o.opts.RetryAttempts, o.log, func(ctx context.Context) error {
		return o.target.Program(ctx, images)
	})
}

func (o *Orchestrator) captureOutput(ctx context.Context, j *job) error {
	res, err := retry.Do(ctx, o.opts.RetryAttempts, o.log, func(ctx context.Context) (capture.Result, error) {
		o.log.Info("running the program")
		stream, err := o.target.ResetAndCaptureOutput(ctx)
		if err != nil {
			return capture.Result{}, err
		}
		defer stream.Close()
		return capture.Capture(ctx, stream, o.matcher, o.opts.Capture)
	})
	if err != nil {
		return err
	}

	switch {
	case !res.Matched:
		o.log.Warn("the output ended before a terminating marker", "received", len(res.Output))
	case bytes.Equal(res.Marker, bench.CrashMarker):
		o.log.Warn("the program reported an unhandled exception")
	}
	j.raw = res.Output
	return nil
}

func (o *Orchestrator) persistRaw(ctx context.Context, j *job) error {
	path, err := j.run.WriteRaw(j.opt.String(), j.raw)
	if err != nil {
		return err
	}
	o.log.Info("saved the raw output", "path", path)
	return nil
}

func (o *Orchestrator) postProcess(ctx context.Context, j *job) error {
	result, err := o.bench.ProcessOutput(j.raw)
	if err != nil {
		return err
	}
	if result == nil {
		o.log.Info("post-processing yielded no results")
		return nil
	}
	path, err := j.run.WriteResult(j.opt.String(), result)
	if err != nil {
		return err
	}
	o.log.Info("saved the result", "path", path)
	return nil
}

func (o *Orchestrator) recordHistory(s Summary) {
	if o.opts.History == nil {
		return
	}
	record := store.RunRecord{
		Benchmark: s.Benchmark,
		Target:    s.Target,
		OutputDir: s.OutputDir,
		Timestamp: s.StartedAt,
		Success:   s.Success(),
		Duration:  s.Duration.Round(time.Second).String(),
		Configs:   s.Total,
		Completed: s.Completed,
	}
	if s.Err != nil {
		record.Error = s.Err.Error()
	}
	if err := o.opts.History.AddRun(record); err != nil {
		o.log.Warn("could not record the run", "err", err)
	}
}
