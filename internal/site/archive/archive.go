// Package archive bundles the documents of one generated site into a single
// downloadable zip file.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"sitegen/internal/site/render"
	"sitegen/pkg/platform/sentinel"
	"sitegen/pkg/requestcontext"
)

// ErrNoDocuments is returned when no document of the batch succeeded.
var ErrNoDocuments = errors.New("no generated documents to archive")

// maxNameAttempts bounds the suffixes tried when an archive name is taken.
const maxNameAttempts = 100

// Packager turns the successful outputs of a batch into one archive and
// returns its file name.
type Packager interface {
	Pack(ctx context.Context, outputs render.Outputs, label string) (string, error)
}

// Name builds site_<label>_<YYYYMMDDhhmmss>.zip. Every character of label
// outside [A-Za-z0-9] becomes an underscore.
func Name(label string, at time.Time) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, label)
	return "site_" + clean + "_" + at.Format("20060102150405") + ".zip"
}

// candidateName returns name for the first attempt and name with a _<n>
// suffix before the extension afterwards.
func candidateName(name string, attempt int) string {
	if attempt <= 1 {
		return name
	}
	return fmt.Sprintf("%s_%d.zip", strings.TrimSuffix(name, ".zip"), attempt)
}

// ZipPackager zips the rendered content of a batch and writes the archive
// into dir. Existing archives are never replaced.
type ZipPackager struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the ZipPackager.
type Option func(*ZipPackager)

// WithClock injects the time source used in archive names. Without it the
// request time from requestcontext is used.
func WithClock(now func() time.Time) Option {
	return func(p *ZipPackager) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *ZipPackager) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewZipPackager creates a ZipPackager for the output directory dir.
func NewZipPackager(dir string, opts ...Option) *ZipPackager {
	p := &ZipPackager{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pack zips the content of the successful documents in batch order.
func (p *ZipPackager) Pack(ctx context.Context, outputs render.Outputs, label string) (string, error) {
	var docs render.Outputs
	for _, out := range outputs {
		if out.Status == render.StatusSuccess {
			docs = append(docs, out)
		}
	}
	if len(docs) == 0 {
		return "", ErrNoDocuments
	}

	now := requestcontext.Now(ctx)
	if p.now != nil {
		now = p.now()
	}
	base := Name(label, now)

	tmp, err := os.CreateTemp(p.dir, "."+base+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := writeZip(tmp, docs, now); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("chmod archive: %w", err)
	}
	archiveName, err := p.publish(tmpName, base)
	if err != nil {
		return "", err
	}

	p.logger.InfoContext(ctx, "archive created",
		"archive", archiveName,
		"documents", len(docs),
	)
	return archiveName, nil
}

// publish hard-links the finished temp file under the first free name, so a
// concurrent generation with the same label and second keeps its archive.
func (p *ZipPackager) publish(tmpName, base string) (string, error) {
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		name := candidateName(base, attempt)
		err := os.Link(tmpName, filepath.Join(p.dir, name))
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("publish archive: %w", err)
		}
	}
	return "", fmt.Errorf("publish archive %s: %w", base, fs.ErrExist)
}

func writeZip(w io.Writer, docs render.Outputs, modified time.Time) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	for _, doc := range docs {
		if err := addDocument(zw, doc, modified); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addDocument(zw *zip.Writer, doc render.Output, modified time.Time) error {
	if !render.ValidName(doc.Name) {
		return fmt.Errorf("archive %q: %w", doc.Name, render.ErrInvalidName)
	}
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     doc.Name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("add %s: %w", doc.Name, err)
	}
	if _, err := io.WriteString(entry, doc.Content); err != nil {
		return fmt.Errorf("compress %s: %w", doc.Name, err)
	}
	return nil
}

// Disabled is the Packager used when archiving is turned off. Callers fall
// back to per-document downloads.
type Disabled struct{}

// Pack always reports the capability as unavailable.
func (Disabled) Pack(context.Context, render.Outputs, string) (string, error) {
	return "", fmt.Errorf("zip archives: %w", sentinel.ErrUnavailable)
}
