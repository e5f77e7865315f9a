package store

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MetadataFile is the name of the run metadata inside a run directory.
const MetadataFile = "meta.json"

// Run is the output directory of a single harness run.
type Run struct {
	dir string
}

// ExpandDir replaces %date%, %time%, %target% and %benchmark% in template.
func ExpandDir(template string, now time.Time, target, benchmark string) string {
	return strings.NewReplacer(
		"%date%", now.Format("20060102"),
		"%time%", now.Format("150405"),
		"%target%", target,
		"%benchmark%", benchmark,
	).Replace(template)
}

// CreateRun creates dir and returns a handle to it.
func CreateRun(dir string) (*Run, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "could not create the output directory")
	}
	return &Run{dir: dir}, nil
}

// Dir returns the run directory.
func (r *Run) Dir() string { return r.dir }

// Path returns the path of name inside the run directory.
func (r *Run) Path(name string) string {
	return filepath.Join(r.dir, name)
}

// WriteRaw saves the raw output captured for configuration id.
func (r *Run) WriteRaw(id string, data []byte) (string, error) {
	return r.write(id+".raw", data)
}

// WriteResult saves the post-processed output for configuration id.
func (r *Run) WriteResult(id string, data []byte) (string, error) {
	return r.write(id+".json", data)
}

func (r *Run) write(name string, data []byte) (string, error) {
	path := r.Path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "could not save the program output")
	}
	return path, nil
}

// CopyArtifact copies src into the run directory as name.
func (r *Run) CopyArtifact(src, name string) (string, error) {
	dst := r.Path(name)
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", errors.Wrapf(err, "copying %s to %s", src, dst)
	}
	return dst, out.Close()
}

// WriteMetadata writes meta.json.
func (r *Run) WriteMetadata(m *Metadata) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := r.Path(MetadataFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "could not save the run metadata")
	}
	return path, nil
}

// ReadMetadata reads meta.json back.
func (r *Run) ReadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(r.Path(MetadataFile))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
