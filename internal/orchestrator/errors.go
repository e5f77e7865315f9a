package orchestrator

import (
	"fmt"

	"github.com/buckleypaul/runbench/internal/buildopt"
)

// Stage names a step of the per-configuration pipeline.
type Stage string

const (
	StageClean       Stage = "clean"
	StageBuild       Stage = "build"
	StageVerify      Stage = "verify"
	StageCopy        Stage = "copy"
	StageProgram     Stage = "program"
	StageCapture     Stage = "capture"
	StagePersist     Stage = "persist"
	StagePostProcess Stage = "post-process"
)

// Stages lists the pipeline in execution order.
func Stages() []Stage {
	return []Stage{
		StageClean, StageBuild, StageVerify, StageCopy,
		StageProgram, StageCapture, StagePersist, StagePostProcess,
	}
}

// ArtifactMissingError means the build succeeded without producing an executable.
type ArtifactMissingError struct {
	Path string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("the builder did not produce the executable file %q", e.Path)
}

// ConfigError is a failure while processing one configuration.
type ConfigError struct {
	Option buildopt.Option
	Stage  Stage
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Option, e.Stage, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
