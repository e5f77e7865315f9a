package bench

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/buckleypaul/runbench/internal/buildopt"
)

func TestDefaultProcessOutput(t *testing.T) {
	raw := []byte("boot log\n%output-start\n  {\"ticks\": 42}\n%output-end")
	got, err := DefaultProcessOutput(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"ticks": 42}` {
		t.Errorf("got %q", got)
	}
}

func TestDefaultProcessOutputUsesLastStart(t *testing.T) {
	raw := []byte("%output-start stale %output-start\nfresh\n%output-end")
	got, err := DefaultProcessOutput(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh" {
		t.Errorf("got %q", got)
	}
}

func TestProfileProcessOutputError(t *testing.T) {
	b, err := NewRegistry().Lookup("latency")
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.ProcessOutput([]byte("unhandled exception"))
	var ppErr *PostProcessError
	if !errors.As(err, &ppErr) || ppErr.Benchmark != "latency" {
		t.Fatalf("expected PostProcessError, got %v", err)
	}
}

func TestBuiltins(t *testing.T) {
	r := NewRegistry()
	rtos, err := r.Lookup("RTOS")
	if err != nil {
		t.Fatal(err)
	}
	if rtos.Binary() != "bench-rtos" || string(rtos.OutputTerminator()) != "Done!" {
		t.Errorf("unexpected rtos profile: %s %q", rtos.Binary(), rtos.OutputTerminator())
	}
	if rtos.Features() != buildopt.AllFeatures {
		t.Errorf("rtos should vary every dimension")
	}

	latency, _ := r.Lookup("latency")
	if string(latency.OutputTerminator()) != "%output-end" {
		t.Errorf("latency terminator = %q", latency.OutputTerminator())
	}

	markers := Markers(latency)
	if len(markers) != 2 || string(markers[0]) != "unhandled exception" {
		t.Errorf("unexpected markers %q", markers)
	}

	if _, err := r.Lookup("dhrystone"); err == nil {
		t.Error("expected unknown benchmark error")
	}
}

func TestRegistryLoad(t *testing.T) {
	r := NewRegistry()
	err := r.Load([]byte(`
benchmarks:
  - name: bench-mutex
    terminator: "mutex done"
    use:
      ctx: true
      ss: true
`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Lookup("bench-mutex")
	if err != nil {
		t.Fatal(err)
	}
	if b.Binary() != "bench-mutex" {
		t.Errorf("binary defaults to the name, got %q", b.Binary())
	}
	want := buildopt.Features{ContextManagement: true, ShadowStacks: true}
	if b.Features() != want {
		t.Errorf("features = %+v", b.Features())
	}
	if string(b.OutputTerminator()) != "mutex done" {
		t.Errorf("terminator = %q", b.OutputTerminator())
	}
}

func TestRegistryLoadRejects(t *testing.T) {
	tests := map[string]string{
		"shadowing": "benchmarks:\n  - name: Coremark\n",
		"unnamed":   "benchmarks:\n  - binary: x\n",
		"malformed": "benchmarks: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if err := NewRegistry().Load([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistryLoadFile(t *testing.T) {
	r := NewRegistry()
	if err := r.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), "benchmarks.yaml")
	os.WriteFile(path, []byte("benchmarks:\n  - name: bench-idle\n"), 0o644)
	if err := r.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Lookup("bench-idle"); err != nil {
		t.Error(err)
	}
}
