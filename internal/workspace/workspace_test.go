package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetect_Root(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "build.zig"), []byte("// build\n"), 0o644)

	ws := Detect(tmp)
	if ws == nil {
		t.Fatal("expected workspace to be found")
	}
	if ws.Root != tmp {
		t.Errorf("expected root=%s, got=%s", tmp, ws.Root)
	}
	if ws.BuildFile != filepath.Join(tmp, "build.zig") {
		t.Errorf("unexpected build file %s", ws.BuildFile)
	}
	if ws.StateDir() != filepath.Join(tmp, ".runbench") {
		t.Errorf("unexpected state dir %s", ws.StateDir())
	}
}

func TestDetect_Subdirectory(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "build.zig"), []byte(""), 0o644)
	subdir := filepath.Join(tmp, "src", "bench")
	os.MkdirAll(subdir, 0o755)

	ws := Detect(subdir)
	if ws == nil {
		t.Fatal("expected workspace to be found from subdirectory")
	}
	if ws.Root != tmp {
		t.Errorf("expected root=%s, got=%s", tmp, ws.Root)
	}
}

func TestDetect_NearestWins(t *testing.T) {
	tmp := t.TempDir()
	inner := filepath.Join(tmp, "examples")
	os.MkdirAll(inner, 0o755)
	os.WriteFile(filepath.Join(tmp, "build.zig"), []byte(""), 0o644)
	os.WriteFile(filepath.Join(inner, "build.zig"), []byte(""), 0o644)

	ws := Detect(inner)
	if ws == nil || ws.Root != inner {
		t.Fatalf("expected root=%s, got=%+v", inner, ws)
	}
}

func TestDetect_DirectoryNamedBuildZig(t *testing.T) {
	tmp := t.TempDir()
	os.MkdirAll(filepath.Join(tmp, "build.zig"), 0o755)

	if ws := Detect(tmp); ws != nil && ws.Root == tmp {
		t.Error("a directory named build.zig must not mark a workspace")
	}
}

func TestMissingTools(t *testing.T) {
	missing := MissingTools("sh", "", "definitely-not-a-real-tool-xyz")
	if len(missing) != 1 || missing[0] != "definitely-not-a-real-tool-xyz" {
		t.Errorf("unexpected missing tools %v", missing)
	}
}
