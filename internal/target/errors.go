package target

import "fmt"

// ProgramError means the images could not be transferred to the target.
type ProgramError struct {
	Path string
	Err  error
}

func (e *ProgramError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("could not program the target: %v", e.Err)
	}
	return fmt.Sprintf("could not program the target with %s: %v", e.Path, e.Err)
}

func (e *ProgramError) Unwrap() error { return e.Err }

// CaptureStartError means the target could not be restarted or its output
// stream could not be opened.
type CaptureStartError struct {
	Step string // halt, open serial, reset or spawn
	Err  error
}

func (e *CaptureStartError) Error() string {
	return fmt.Sprintf("could not start output capture (%s): %v", e.Step, e.Err)
}

func (e *CaptureStartError) Unwrap() error { return e.Err }
