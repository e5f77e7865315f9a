package store

import (
	"time"

	"github.com/buckleypaul/runbench/internal/buildopt"
)

// RunRecord summarizes a finished run in the history.
type RunRecord struct {
	Benchmark string    `json:"benchmark"`
	Target    string    `json:"target"`
	OutputDir string    `json:"output_dir"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Duration  string    `json:"duration"`
	Configs   int       `json:"configs"`
	Completed int       `json:"completed"`
	Error     string    `json:"error,omitempty"`
}

// Metadata describes a run directory. It is written to meta.json.
type Metadata struct {
	Benchmark  string        `json:"benchmark"`
	Target     string        `json:"target"`
	ExeNames   ExeNames      `json:"exe_names"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Error      string        `json:"error,omitempty"`
	Matrix     []MatrixEntry `json:"matrix"`
}

// ExeNames are the suffixes of the copied executables.
type ExeNames struct {
	Secure    string `json:"secure"`
	NonSecure string `json:"non_secure"`
}

// MatrixEntry records one completed configuration.
type MatrixEntry struct {
	BuildOpt  buildopt.Option `json:"build_opt"`
	Name      string          `json:"name"`
	BuildArgs []string        `json:"zig_build_args"`
}
