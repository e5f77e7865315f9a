package command

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvWithToolDir returns a copy of the current environment with toolDir
// prepended to PATH. An empty toolDir returns nil, which inherits the
// environment unchanged.
func EnvWithToolDir(toolDir string) []string {
	if toolDir == "" {
		return nil
	}
	if abs, err := filepath.Abs(toolDir); err == nil {
		toolDir = abs
	}
	return buildEnvWithPath(os.Environ(), toolDir)
}

func buildEnvWithPath(env []string, binDir string) []string {
	result := make([]string, 0, len(env)+1)
	pathSet := false

	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			result = append(result, "PATH="+binDir+string(os.PathListSeparator)+e[5:])
			pathSet = true
		} else {
			result = append(result, e)
		}
	}

	if !pathSet {
		result = append(result, "PATH="+binDir)
	}

	return result
}

// Resolve looks name up in toolDir first and then in PATH. It returns name
// unchanged when nothing is found so the spawn error names the tool.
func Resolve(name, toolDir string) string {
	if toolDir != "" && !strings.ContainsRune(name, os.PathSeparator) {
		candidate := filepath.Join(toolDir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return name
}
