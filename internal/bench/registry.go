package bench

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/buckleypaul/runbench/internal/buildopt"
)

// Registry holds the known benchmarks by lower-case name.
type Registry struct {
	byName map[string]Benchmark
}

// NewRegistry returns a Registry holding the built-in benchmarks.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Benchmark)}
	for _, b := range Builtins() {
		r.byName[strings.ToLower(b.Name())] = b
	}
	return r
}

// Lookup finds a benchmark by name, ignoring case.
func (r *Registry) Lookup(name string) (Benchmark, error) {
	if b, ok := r.byName[strings.ToLower(name)]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("unknown benchmark %q (want one of %s)", name, strings.Join(r.Names(), ", "))
}

// Names returns the sorted benchmark names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for _, b := range r.byName {
		names = append(names, b.Name())
	}
	sort.Strings(names)
	return names
}

type fileProfile struct {
	Name       string `yaml:"name"`
	Binary     string `yaml:"binary"`
	Terminator string `yaml:"terminator"`
	Use        struct {
		SES           bool `yaml:"ses"`
		SS            bool `yaml:"ss"`
		Ctx           bool `yaml:"ctx"`
		AccelRaisePri bool `yaml:"accel_raise_pri"`
		ICall         bool `yaml:"icall"`
	} `yaml:"use"`
}

type profileFile struct {
	Benchmarks []fileProfile `yaml:"benchmarks"`
}

// LoadFile adds the benchmarks defined in a YAML file:
//
//	benchmarks:
//	  - name: bench-mutex
//	    terminator: "Done!"
//	    use: {ses: true, ss: true, ctx: true}
//
// A missing file is not an error.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to read benchmark file")
	}
	return r.Load(data)
}

// Load adds the benchmarks defined in YAML data.
func (r *Registry) Load(data []byte) error {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, "failed to parse benchmark YAML")
	}
	for i, fp := range file.Benchmarks {
		if fp.Name == "" {
			return errors.Errorf("benchmark %d must have a name", i)
		}
		key := strings.ToLower(fp.Name)
		if _, ok := r.byName[key]; ok {
			return errors.Errorf("benchmark %q is already defined", fp.Name)
		}
		p := &Profile{
			ProfileName: fp.Name,
			BinaryName:  fp.Binary,
			Use: buildopt.Features{
				ShadowExceptionStacks: fp.Use.SES,
				ShadowStacks:          fp.Use.SS,
				ContextManagement:     fp.Use.Ctx,
				AccelRaisePri:         fp.Use.AccelRaisePri,
				ICallSanitizer:        fp.Use.ICall,
			},
		}
		if fp.Terminator != "" {
			p.Terminator = []byte(fp.Terminator)
		}
		r.byName[key] = p
	}
	return nil
}
