package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
)

// BuildFile marks the firmware examples directory.
const BuildFile = "build.zig"

// StateDirName is the per-workspace directory holding config and history.
const StateDirName = ".runbench"

// Workspace holds information about a detected firmware workspace.
type Workspace struct {
	Root      string // Absolute path of the directory containing build.zig
	BuildFile string // Absolute path of build.zig
}

// StateDir returns <root>/.runbench.
func (w *Workspace) StateDir() string {
	return filepath.Join(w.Root, StateDirName)
}

// Detect walks up from startDir looking for build.zig.
// It returns nil when the filesystem root is reached without a match.
func Detect(startDir string) *Workspace {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil
	}

	for {
		candidate := filepath.Join(dir, BuildFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return &Workspace{Root: dir, BuildFile: candidate}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil // reached filesystem root
		}
		dir = parent
	}
}

// MissingTools returns the entries of tools that are neither executable paths
// nor found in PATH.
func MissingTools(tools ...string) []string {
	var missing []string
	for _, tool := range tools {
		if tool == "" {
			continue
		}
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}
