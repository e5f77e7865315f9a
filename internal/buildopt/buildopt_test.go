package buildopt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllSatisfiesValidate(t *testing.T) {
	for _, vary := range []bool{false, true} {
		for _, o := range (Space{VaryROMOffset: vary}).All() {
			if err := o.Validate(); err != nil {
				t.Errorf("enumerated invalid option %s: %v", o, err)
			}
		}
	}
}

func TestAllCounts(t *testing.T) {
	if got := len(Space{}.All()); got != 60 {
		t.Errorf("expected 60 options, got %d", got)
	}
	if got := len(Space{VaryROMOffset: true}.All()); got != 240 {
		t.Errorf("expected 240 options with rom offsets, got %d", got)
	}
}

func TestEnumerateDeterministic(t *testing.T) {
	s := Space{VaryROMOffset: true}
	first := s.Enumerate(AllFeatures)
	second := s.Enumerate(AllFeatures)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("enumeration not repeatable (-first +second):\n%s", diff)
	}
	first[0].Ctx = !first[0].Ctx
	if third := s.Enumerate(AllFeatures); third[0] == first[0] {
		t.Fatal("enumeration shares storage between calls")
	}
}

func TestEnumerateCollapsesDisabledDimensions(t *testing.T) {
	tests := []struct {
		name     string
		features Features
		want     int
		check    func(Option) bool
	}{
		{
			name:     "ses only",
			features: Features{ShadowExceptionStacks: true},
			want:     6,
			check:    func(o Option) bool { return o.Ctx && !o.SS && !o.ICall && !o.AccelRaisePri },
		},
		{
			name:     "ss and icall",
			features: Features{ShadowStacks: true, ICallSanitizer: true},
			want:     12,
			check:    func(o Option) bool { return o.Ctx && o.SES && !o.Unnest && !o.AccelRaisePri },
		},
		{
			name:     "everything",
			features: AllFeatures,
			want:     60,
			check:    func(Option) bool { return true },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Space{}.Enumerate(tt.features)
			if len(got) != tt.want {
				t.Fatalf("expected %d options, got %d", tt.want, len(got))
			}
			for _, o := range got {
				if !tt.check(o) {
					t.Errorf("option %s varies a disabled dimension", o)
				}
			}
		})
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		opt      Option
		flag     string
		requires string
	}{
		{Option{SS: true, SES: true}, "cfi-ss", "cfi-ctx"},
		{Option{SES: true}, "cfi-ses", "cfi-ctx"},
		{Option{Ctx: true, SS: true}, "cfi-ss", "cfi-ses"},
		{Option{Ctx: true, AbortingSS: true}, "cfi-aborting-ss", "cfi-ss"},
		{Option{AccelRaisePri: true}, "accel-raise-pri", "cfi-ctx"},
		{Option{Ctx: true, Unnest: true}, "cfi-unnest", "cfi-ses"},
	}
	for _, tt := range tests {
		err := tt.opt.Validate()
		var rule *RuleError
		if !errors.As(err, &rule) {
			t.Fatalf("%+v: expected RuleError, got %v", tt.opt, err)
		}
		if rule.Flag != tt.flag || rule.Requires != tt.requires {
			t.Errorf("%+v: got %q, want %s requires %s", tt.opt, err, tt.flag, tt.requires)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		opt  Option
		want string
	}{
		{Option{}, "ReleaseFast"},
		{Option{Mode: ReleaseSmall, Ctx: true}, "ReleaseSmall+ctx"},
		{
			Option{Ctx: true, SES: true, Unnest: true, SS: true, AbortingSS: true, ICall: true, AccelRaisePri: true, ROMOffset: 8},
			"ReleaseFast+ctx+ses(unnest)+ss(aborting)+icall+ape+off(8)",
		},
		{Option{Ctx: true, SES: true, SS: true}, "ReleaseFast+ctx+ses+ss(non-aborting)"},
	}
	for _, tt := range tests {
		if got := tt.opt.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if strings.ContainsAny(tt.opt.String(), `/\ `) {
			t.Errorf("%q is not file-name safe", tt.opt.String())
		}
	}
}

func TestBuildArgs(t *testing.T) {
	o := Option{Mode: ReleaseSmall, Ctx: true, SES: true, SS: true, AbortingSS: true, ROMOffset: 4}
	want := []string{
		"-Drelease-small", "-Dcfi=false", "-Dcfi-ctx", "-Dcfi-ses", "-Dcfi-ss",
		"-Dcfi-aborting-ss", "-Daccel-raise-pri=false", "-Drom-offset=4",
	}
	if diff := cmp.Diff(want, o.BuildArgs()); diff != "" {
		t.Errorf("BuildArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionJSON(t *testing.T) {
	o := Option{Mode: ReleaseSmall, Ctx: true, ROMOffset: 12}
	data, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"mode":"ReleaseSmall"`) {
		t.Errorf("unexpected encoding: %s", data)
	}
	var back Option
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != o {
		t.Errorf("got %+v, want %+v", back, o)
	}
}
