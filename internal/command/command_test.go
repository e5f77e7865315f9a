package command

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCmdString(t *testing.T) {
	c := New("zig", "build", "build:bench-rtos", "-Dcfi-ctx", "with space", "")
	want := `zig build build:bench-rtos -Dcfi-ctx "with space" ""`
	if got := c.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestExecRunSuccess(t *testing.T) {
	e := &Exec{Stdout: io.Discard, Stderr: io.Discard}
	if err := e.Run(context.Background(), New("sh", "-c", "exit 0")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestExecRunExitError(t *testing.T) {
	e := &Exec{Stdout: io.Discard, Stderr: io.Discard}
	err := e.Run(context.Background(), New("sh", "-c", "exit 3"))
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", exitErr.ExitCode)
	}
	if !strings.Contains(err.Error(), `sh -c "exit 3"`) {
		t.Errorf("error does not name the command line: %v", err)
	}
}

func TestExecRunSpawnError(t *testing.T) {
	e := &Exec{}
	err := e.Run(context.Background(), New("runbench-no-such-tool"))
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if spawnErr.Cmd.Name != "runbench-no-such-tool" {
		t.Errorf("unexpected command in error: %v", spawnErr.Cmd)
	}
}

func TestExecOutput(t *testing.T) {
	e := &Exec{Stderr: io.Discard}
	out, err := e.Output(context.Background(), New("sh", "-c", "echo qemu version 8.2"))
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "qemu version 8.2" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestExecRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := (&Exec{Stderr: io.Discard}).Run(ctx, New("sleep", "30"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Errorf("interrupted command reported as %v", exitErr)
	}
	if !strings.Contains(err.Error(), "sleep 30 was interrupted") {
		t.Errorf("unexpected message %q", err)
	}
}

func TestExecStartAndClose(t *testing.T) {
	e := &Exec{Stderr: io.Discard}
	p, err := e.Start(context.Background(), New("sh", "-c", "echo hello; sleep 30"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	buf := make([]byte, 64)
	n, err := p.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "hello\n" {
		t.Errorf("unexpected output %q", buf[:n])
	}

	done := make(chan error, 1)
	go func() { done <- p.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not kill the child")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestEnvWithToolDir(t *testing.T) {
	if env := EnvWithToolDir(""); env != nil {
		t.Errorf("expected nil env without tool dir, got %d entries", len(env))
	}

	env := buildEnvWithPath([]string{"HOME=/home/x", "PATH=/usr/bin"}, "/opt/zig")
	want := "PATH=/opt/zig" + string(os.PathListSeparator) + "/usr/bin"
	if env[1] != want {
		t.Errorf("got %q, want %q", env[1], want)
	}

	env = buildEnvWithPath([]string{"HOME=/home/x"}, "/opt/zig")
	if env[len(env)-1] != "PATH=/opt/zig" {
		t.Errorf("PATH not added: %v", env)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "pyocd")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := Resolve("pyocd", dir); got != tool {
		t.Errorf("Resolve = %q, want %q", got, tool)
	}
	if got := Resolve("qemu-system-arm", dir); got != "qemu-system-arm" {
		t.Errorf("Resolve fell through to %q", got)
	}
	if got := Resolve("pyocd", ""); got != "pyocd" {
		t.Errorf("Resolve without tool dir = %q", got)
	}
}
