// Runbench runs a benchmark under every build configuration of the firmware
// in the current workspace and saves the output of each run.
//
// Usage:
//
//	runbench -t <qemu|lpc55s69> [flags] <benchmark>
//
// It must be run inside the directory holding build.zig or below it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/buckleypaul/runbench/internal/bench"
	"github.com/buckleypaul/runbench/internal/buildopt"
	"github.com/buckleypaul/runbench/internal/capture"
	"github.com/buckleypaul/runbench/internal/command"
	"github.com/buckleypaul/runbench/internal/config"
	"github.com/buckleypaul/runbench/internal/orchestrator"
	"github.com/buckleypaul/runbench/internal/serial"
	"github.com/buckleypaul/runbench/internal/store"
	"github.com/buckleypaul/runbench/internal/target"
	"github.com/buckleypaul/runbench/internal/ui"
	"github.com/buckleypaul/runbench/internal/workspace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cliOptions are the flags that are not part of the persistent config.
type cliOptions struct {
	target        string
	varyROMOffset bool
	tui           bool
	verbose       bool
	quiet         bool
	dryRun        bool
	list          bool
	history       bool
	saveConfig    bool
}

func newFlagSet(cfg *config.Config, o *cliOptions, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("runbench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.target, "t", "", "run the benchmark on `target` (qemu or lpc55s69)")
	fs.StringVar(&o.target, "target", "", "same as -t")
	fs.BoolVar(&o.varyROMOffset, "vary-rom-offset", false, "include -Drom-offset=N in the tested configurations")
	fs.BoolVar(&o.tui, "tui", false, "show an interactive progress view")
	fs.BoolVar(&o.verbose, "v", false, "log debug messages")
	fs.BoolVar(&o.quiet, "q", false, "log warnings and errors only")
	fs.BoolVar(&o.dryRun, "dry-run", false, "list the configurations to be tested and exit")
	fs.BoolVar(&o.list, "list", false, "list the known benchmarks and exit")
	fs.BoolVar(&o.history, "history", false, "show the runs recorded in this workspace and exit")
	fs.BoolVar(&o.saveConfig, "save-config", false, "write the effective settings to .runbench/config.json")

	fs.StringVar(&cfg.OutputDir, "o", cfg.OutputDir, "save results in `dir` (%date%, %time%, %target% and %benchmark% are replaced)")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "same as -o")
	fs.StringVar(&cfg.ZigCacheDir, "zig-cache-dir", cfg.ZigCacheDir, "`dir` where zig build stores the executables")
	fs.StringVar(&cfg.Zig, "zig", cfg.Zig, "`command` invoking the Zig compiler")
	fs.StringVar(&cfg.PyOCD, "pyocd", cfg.PyOCD, "`command` invoking PyOCD")
	fs.StringVar(&cfg.PyOCDUID, "pyocd-uid", cfg.PyOCDUID, "PyOCD probe `id`; see `pyocd list`")
	fs.StringVar(&cfg.SerialPort, "serial", cfg.SerialPort, "serial `port` of the target board")
	fs.IntVar(&cfg.SerialBaudRate, "baud", cfg.SerialBaudRate, "serial baud `rate`")
	fs.StringVar(&cfg.QEMU, "qemu", cfg.QEMU, "`command` invoking QEMU")
	fs.StringVar(&cfg.ToolDir, "tool-dir", cfg.ToolDir, "look for zig, pyocd and qemu in `dir` first")
	fs.StringVar(&cfg.BenchmarksFile, "benchmarks", cfg.BenchmarksFile, "load extra benchmark profiles from YAML `file`")
	fs.IntVar(&cfg.RetryAttempts, "retries", cfg.RetryAttempts, "attempts for programming and capturing")
	fs.DurationVar((*time.Duration)(&cfg.SilenceTimeout), "silence-timeout", time.Duration(cfg.SilenceTimeout), "give up after `duration` without output")
	fs.IntVar(&cfg.MaxOutputBytes, "max-output", cfg.MaxOutputBytes, "give up after `bytes` of output without a terminator")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: runbench -t <%s> [flags] <benchmark>\n\nflags:\n", kindNames())
		fs.PrintDefaults()
	}
	return fs
}

func kindNames() string {
	var names []string
	for _, k := range target.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, "|")
}

// parseInterleaved parses flags placed before or after positional arguments.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func logLevel(o *cliOptions) slog.Level {
	switch {
	case o.verbose:
		return slog.LevelDebug
	case o.quiet:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ws := workspace.Detect(cwd)
	root := ""
	if ws != nil {
		root = ws.Root
	}

	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var opts cliOptions
	fs := newFlagSet(&cfg, &opts, stderr)
	positional, err := parseInterleaved(fs, args)
	if err == flag.ErrHelp {
		return 0
	}
	if err != nil {
		return 2
	}

	level := logLevel(&opts)
	log := slog.New(ui.NewLogHandler(stderr, level))
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		return 2
	}

	registry := bench.NewRegistry()
	if err := loadProfiles(registry, cfg.BenchmarksFile, ws); err != nil {
		log.Error("could not load benchmark profiles", "err", err)
		return 1
	}

	switch {
	case opts.list:
		for _, name := range registry.Names() {
			fmt.Fprintln(stdout, name)
		}
		return 0
	case opts.history:
		if ws == nil {
			log.Error("not in a firmware workspace (no build.zig found)")
			return 1
		}
		return printHistory(stdout, store.NewHistory(ws.StateDir()), log)
	case opts.saveConfig:
		if ws == nil {
			log.Error("not in a firmware workspace (no build.zig found)")
			return 1
		}
		if err := config.Save(cfg, ws.Root, false); err != nil {
			log.Error("could not save the configuration", "err", err)
			return 1
		}
		log.Info("saved the configuration", "path", config.WorkspacePath(ws.Root))
		return 0
	}

	if len(positional) != 1 {
		fs.Usage()
		return 2
	}
	b, err := registry.Lookup(positional[0])
	if err != nil {
		log.Error(err.Error())
		return 2
	}
	if opts.target == "" {
		log.Error("missing target; use -t " + kindNames())
		return 2
	}
	kind, err := target.ParseKind(opts.target)
	if err != nil {
		log.Error(err.Error())
		return 2
	}
	if ws == nil && !opts.dryRun {
		log.Error("not in a firmware workspace (no build.zig found)")
		return 1
	}

	job := &runJob{
		cfg:   cfg,
		opts:  opts,
		ws:    ws,
		kind:  kind,
		bench: b,
		level: level,
	}

	if opts.tui && !isatty.IsTerminal(os.Stdout.Fd()) {
		log.Warn("the progress view needs a terminal; logging instead")
		opts.tui = false
	}

	if opts.tui {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		err = ui.RunProgram(cancel, func(report orchestrator.Reporter, logs *ui.LogWriter) error {
			logger := slog.New(ui.NewLogHandler(logs, level))
			_, err := job.execute(ctx, logger, report, logs)
			return err
		})
		if err != nil {
			log.Error("command failed", "err", err)
			return 1
		}
		return 0
	}

	summary, err := job.execute(ctx, log, nil, nil)
	fmt.Fprintln(stdout, ui.RenderSummary(summary))
	if err != nil {
		log.Error("command failed", "err", err)
		return 1
	}
	return 0
}

func loadProfiles(r *bench.Registry, file string, ws *workspace.Workspace) error {
	if file == "" {
		if ws == nil {
			return nil
		}
		file = filepath.Join(ws.StateDir(), "benchmarks.yaml")
	} else if !filepath.IsAbs(file) && ws != nil {
		if _, err := os.Stat(file); err != nil {
			file = filepath.Join(ws.Root, file)
		}
	}
	return r.LoadFile(file)
}

func printHistory(w io.Writer, h *store.History, log *slog.Logger) int {
	runs, err := h.Runs()
	if err != nil {
		log.Error("could not read the run history", "err", err)
		return 1
	}
	for _, r := range runs {
		status := ui.SuccessBadge("OK")
		if !r.Success {
			status = ui.ErrorBadge("FAIL")
		}
		fmt.Fprintf(w, "%s %s %-12s %-9s %d/%d %s %s\n",
			status, r.Timestamp.Format("2006-01-02 15:04"), r.Benchmark, r.Target,
			r.Completed, r.Configs, r.Duration, r.OutputDir)
	}
	return 0
}

// runJob holds what a run needs once the command line has been validated.
type runJob struct {
	cfg   config.Config
	opts  cliOptions
	ws    *workspace.Workspace
	kind  target.Kind
	bench bench.Benchmark
	level slog.Level
}

// execute builds the target and runs the orchestrator. When output is
// non-nil, child processes write there instead of the terminal.
func (j *runJob) execute(ctx context.Context, log *slog.Logger, report orchestrator.Reporter, output io.Writer) (orchestrator.Summary, error) {
	cfg := j.cfg
	zig := command.Resolve(cfg.Zig, cfg.ToolDir)
	runner := &command.Exec{
		Log: log,
		Env: command.EnvWithToolDir(cfg.ToolDir),
	}
	if output != nil {
		runner.Stdout = output
		runner.Stderr = output
	}

	opts := orchestrator.Options{
		Zig:           zig,
		ZigCacheDir:   cfg.ZigCacheDir,
		OutputDir:     cfg.OutputDir,
		TargetName:    string(j.kind),
		Space:         buildopt.Space{VaryROMOffset: j.opts.varyROMOffset},
		RetryAttempts: cfg.RetryAttempts,
		Capture: capture.Options{
			SilenceTimeout: time.Duration(cfg.SilenceTimeout),
			MaxBytes:       cfg.MaxOutputBytes,
		},
		DryRun:   j.opts.dryRun,
		Log:      log,
		Reporter: report,
	}
	if j.ws != nil {
		opts.WorkspaceDir = j.ws.Root
		opts.History = store.NewHistory(j.ws.StateDir())
	}

	var t target.Target
	if !j.opts.dryRun {
		tool := cfg.QEMU
		if j.kind == target.KindLPC55S69 {
			tool = cfg.PyOCD
		}
		if missing := workspace.MissingTools(zig, command.Resolve(tool, cfg.ToolDir)); len(missing) > 0 {
			log.Warn("tools not found in PATH", "tools", strings.Join(missing, ", "))
		}

		var err error
		t, err = target.New(ctx, j.kind, target.Options{
			QEMU:        command.Resolve(cfg.QEMU, cfg.ToolDir),
			PyOCD:       command.Resolve(cfg.PyOCD, cfg.ToolDir),
			PyOCDUID:    cfg.PyOCDUID,
			SerialPort:  cfg.SerialPort,
			BaudRate:    cfg.SerialBaudRate,
			ReadTimeout: serial.DefaultReadTimeout,
			Log:         log,
		}, runner)
		if err != nil {
			return orchestrator.Summary{Benchmark: j.bench.Name(), Target: string(j.kind), Err: err}, err
		}
		defer t.Close()
	}

	o, err := orchestrator.New(runner, t, j.bench, opts)
	if err != nil {
		return orchestrator.Summary{Benchmark: j.bench.Name(), Target: string(j.kind), Err: err}, err
	}
	return o.Run(ctx)
}
