package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultZig            = "zig"
	DefaultPyOCD          = "pyocd"
	DefaultQEMU           = "qemu-system-arm"
	DefaultBaudRate       = 115200
	DefaultZigCacheDir    = "zig-cache"
	DefaultOutputDir      = "runbench.artifacts/%date%-%time%-%target%-%benchmark%"
	DefaultRetryAttempts  = 3
	DefaultSilenceTimeout = 35 * time.Second
	DefaultMaxOutputBytes = 1 << 20
)

// Duration is a time.Duration that reads and writes as a string like "35s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Plain numbers are seconds.
		var secs float64
		if err := json.Unmarshal(data, &secs); err != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all runbench configuration.
type Config struct {
	Zig            string   `json:"zig,omitempty"`
	PyOCD          string   `json:"pyocd,omitempty"`
	PyOCDUID       string   `json:"pyocd_uid,omitempty"`
	QEMU           string   `json:"qemu,omitempty"`
	SerialPort     string   `json:"serial_port,omitempty"`
	SerialBaudRate int      `json:"serial_baud_rate,omitempty"`
	ZigCacheDir    string   `json:"zig_cache_dir,omitempty"`
	OutputDir      string   `json:"output_dir,omitempty"`
	ToolDir        string   `json:"tool_dir,omitempty"`
	BenchmarksFile string   `json:"benchmarks_file,omitempty"`
	RetryAttempts  int      `json:"retry_attempts,omitempty"`
	SilenceTimeout Duration `json:"silence_timeout,omitempty"`
	MaxOutputBytes int      `json:"max_output_bytes,omitempty"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Zig:            DefaultZig,
		PyOCD:          DefaultPyOCD,
		QEMU:           DefaultQEMU,
		SerialBaudRate: DefaultBaudRate,
		ZigCacheDir:    DefaultZigCacheDir,
		OutputDir:      DefaultOutputDir,
		RetryAttempts:  DefaultRetryAttempts,
		SilenceTimeout: Duration(DefaultSilenceTimeout),
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// GlobalPath returns ~/.config/runbench/config.json.
func GlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "runbench", "config.json"), nil
}

// WorkspacePath returns <workspace>/.runbench/config.json.
func WorkspacePath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".runbench", "config.json")
}

// Load reads and merges global and workspace configs, then the environment.
// Order: defaults → global → workspace → environment.
// Missing files are skipped; unreadable or malformed ones are reported.
func Load(workspaceRoot string) (Config, error) {
	cfg := Defaults()

	if globalPath, err := GlobalPath(); err == nil {
		if err := mergeFromFile(&cfg, globalPath); err != nil {
			return cfg, err
		}
	}

	if workspaceRoot != "" {
		if err := mergeFromFile(&cfg, WorkspacePath(workspaceRoot)); err != nil {
			return cfg, err
		}
	}

	if err := mergeFromEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the config to the workspace .runbench/config.json by default,
// or to the global config if global is true.
func Save(cfg Config, workspaceRoot string, global bool) error {
	path := WorkspacePath(workspaceRoot)
	if global {
		var err error
		if path, err = GlobalPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate rejects values the harness cannot run with.
func (c Config) Validate() error {
	switch {
	case c.RetryAttempts <= 0:
		return fmt.Errorf("retry_attempts must be positive, got %d", c.RetryAttempts)
	case c.SilenceTimeout <= 0:
		return fmt.Errorf("silence_timeout must be positive, got %s", time.Duration(c.SilenceTimeout))
	case c.MaxOutputBytes <= 0:
		return fmt.Errorf("max_output_bytes must be positive, got %d", c.MaxOutputBytes)
	case c.SerialBaudRate <= 0:
		return fmt.Errorf("serial_baud_rate must be positive, got %d", c.SerialBaudRate)
	case c.ZigCacheDir == "":
		return errors.New("zig_cache_dir must not be empty")
	case c.OutputDir == "":
		return errors.New("output_dir must not be empty")
	}
	return nil
}

func mergeFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading config %s", path)
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return errors.Wrapf(err, "parsing config %s", path)
	}

	merge(cfg, fileCfg)
	return nil
}

// merge copies every non-zero field of src into cfg.
func merge(cfg *Config, src Config) {
	if src.Zig != "" {
		cfg.Zig = src.Zig
	}
	if src.PyOCD != "" {
		cfg.PyOCD = src.PyOCD
	}
	if src.PyOCDUID != "" {
		cfg.PyOCDUID = src.PyOCDUID
	}
	if src.QEMU != "" {
		cfg.QEMU = src.QEMU
	}
	if src.SerialPort != "" {
		cfg.SerialPort = src.SerialPort
	}
	if src.SerialBaudRate != 0 {
		cfg.SerialBaudRate = src.SerialBaudRate
	}
	if src.ZigCacheDir != "" {
		cfg.ZigCacheDir = src.ZigCacheDir
	}
	if src.OutputDir != "" {
		cfg.OutputDir = src.OutputDir
	}
	if src.ToolDir != "" {
		cfg.ToolDir = src.ToolDir
	}
	if src.BenchmarksFile != "" {
		cfg.BenchmarksFile = src.BenchmarksFile
	}
	if src.RetryAttempts != 0 {
		cfg.RetryAttempts = src.RetryAttempts
	}
	if src.SilenceTimeout != 0 {
		cfg.SilenceTimeout = src.SilenceTimeout
	}
	if src.MaxOutputBytes != 0 {
		cfg.MaxOutputBytes = src.MaxOutputBytes
	}
}

func mergeFromEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var env Config
	strs := []struct {
		name string
		dst  *string
	}{
		{"ZIG", &env.Zig},
		{"PYOCD", &env.PyOCD},
		{"PYOCD_UID", &env.PyOCDUID},
		{"QEMU", &env.QEMU},
		{"SERIAL", &env.SerialPort},
		{"ZIG_CACHE_DIR", &env.ZigCacheDir},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok {
			*s.dst = v
		}
	}
	if v, ok := lookup("SERIAL_BAUD_RATE"); ok && v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "SERIAL_BAUD_RATE")
		}
		env.SerialBaudRate = baud
	}
	merge(cfg, env)
	return nil
}
