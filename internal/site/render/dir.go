package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sitegen/pkg/platform/sentinel"
)

// ErrInvalidName is returned for names that are not a single plain file name.
var ErrInvalidName = errors.New("invalid document name")

// ValidName reports whether name is a plain file name with no directory part.
func ValidName(name string) bool {
	return name != "" &&
		filepath.IsLocal(name) &&
		filepath.Base(name) == name &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.HasPrefix(name, ".")
}

// DirSource reads templates from a directory.
type DirSource struct {
	dir string
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Load reads dir/name. A missing file is sentinel.ErrNotFound.
func (s *DirSource) Load(_ context.Context, name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("template %s: %w", name, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}
	return string(data), nil
}

// DirSink writes documents into a directory, creating it on demand. Each
// document is written to a temp file and renamed so downloads never see a
// partial file.
type DirSink struct {
	dir string
}

// NewDirSink creates a DirSink rooted at dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Dir returns the output root.
func (s *DirSink) Dir() string {
	return s.dir
}

// Write stores content as dir/name.
func (s *DirSink) Write(_ context.Context, name, content string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write output %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod output %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace output %s: %w", name, err)
	}
	return nil
}

// Open opens dir/name for reading. A missing file is sentinel.ErrNotFound.
func (s *DirSink) Open(name string) (*os.File, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("document %s: %w", name, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", name, err)
	}
	return f, nil
}
