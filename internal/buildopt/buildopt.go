package buildopt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the optimization mode passed to `zig build`.
type Mode int

const (
	ReleaseFast Mode = iota
	ReleaseSmall
)

var modeNames = map[Mode]string{
	ReleaseFast:  "ReleaseFast",
	ReleaseSmall: "ReleaseSmall",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// MarshalJSON renders the mode by name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mode, name := range modeNames {
		if name == s {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown build mode %q", s)
}

// Option is one point in the build configuration matrix.
// Values are only produced by Space; they are compared and copied by value.
type Option struct {
	Mode          Mode  `json:"mode"`
	Ctx           bool  `json:"ctx"`
	SES           bool  `json:"ses"`
	Unnest        bool  `json:"unnest"`
	SS            bool  `json:"ss"`
	AbortingSS    bool  `json:"aborting_ss"`
	ICall         bool  `json:"icall"`
	AccelRaisePri bool  `json:"accel_raise_pri"`
	ROMOffset     uint8 `json:"rom_offset"`
}

// RuleError reports a violated dependency between two build flags.
type RuleError struct {
	Flag     string
	Requires string
}

func (e *RuleError) Error() string {
	return e.Flag + " requires " + e.Requires
}

// Validate checks the dependency graph between the flags.
func (o Option) Validate() error {
	switch {
	case o.SS && !o.Ctx:
		// Shadow stacks are managed by the context management API.
		return &RuleError{Flag: "cfi-ss", Requires: "cfi-ctx"}
	case o.SES && !o.Ctx:
		return &RuleError{Flag: "cfi-ses", Requires: "cfi-ctx"}
	case o.SS && !o.SES:
		// The shadow stack routines clobber the low bit of EXC_RETURN
		// unless shadow exception stacks are enabled too.
		return &RuleError{Flag: "cfi-ss", Requires: "cfi-ses"}
	case o.AbortingSS && !o.SS:
		return &RuleError{Flag: "cfi-aborting-ss", Requires: "cfi-ss"}
	case o.AccelRaisePri && !o.Ctx:
		// TCRaisePrivilege is a Secure function; every thread needs its own Secure stack.
		return &RuleError{Flag: "accel-raise-pri", Requires: "cfi-ctx"}
	case o.Unnest && !o.SES:
		return &RuleError{Flag: "cfi-unnest", Requires: "cfi-ses"}
	}
	return nil
}

// String returns the canonical id, e.g. "ReleaseFast+ctx+ses(unnest)+ss(aborting)".
// It is used both as a log label and as a file name prefix.
func (o Option) String() string {
	var b strings.Builder
	b.WriteString(o.Mode.String())
	add := func(part string) {
		b.WriteByte('+')
		b.WriteString(part)
	}
	if o.Ctx {
		add("ctx")
	}
	if o.SES {
		if o.Unnest {
			add("ses(unnest)")
		} else {
			add("ses")
		}
	}
	if o.SS {
		if o.AbortingSS {
			add("ss(aborting)")
		} else {
			add("ss(non-aborting)")
		}
	}
	if o.ICall {
		add("icall")
	}
	if o.AccelRaisePri {
		add("ape")
	}
	if o.ROMOffset != 0 {
		add("off(" + strconv.Itoa(int(o.ROMOffset)) + ")")
	}
	return b.String()
}

// BuildArgs returns the `zig build` options selecting this configuration.
func (o Option) BuildArgs() []string {
	var args []string
	switch o.Mode {
	case ReleaseSmall:
		args = append(args, "-Drelease-small")
	default:
		args = append(args, "-Drelease-fast")
	}
	args = append(args, "-Dcfi=false")
	if o.Ctx {
		args = append(args, "-Dcfi-ctx")
	}
	if o.SES {
		args = append(args, "-Dcfi-ses")
	}
	if o.Unnest {
		args = append(args, "-Dcfi-unnest")
	}
	if o.SS {
		args = append(args, "-Dcfi-ss")
	}
	if o.AbortingSS {
		args = append(args, "-Dcfi-aborting-ss")
	}
	if o.ICall {
		args = append(args, "-Dcfi-icall")
	}
	if o.AccelRaisePri {
		args = append(args, "-Daccel-raise-pri")
	} else {
		args = append(args, "-Daccel-raise-pri=false")
	}
	if o.ROMOffset != 0 {
		args = append(args, "-Drom-offset="+strconv.Itoa(int(o.ROMOffset)))
	}
	return args
}
