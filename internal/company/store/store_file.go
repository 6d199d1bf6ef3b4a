package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sitegen/internal/company/models"
	"sitegen/pkg/domain"
	"sitegen/pkg/platform/sentinel"
)

// FileCache keeps one JSON document per CNPJ under dir. The document is the
// raw registry record; the file modification time is the retrieval time.
type FileCache struct {
	dir string
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(cnpj domain.CNPJ) string {
	return filepath.Join(c.dir, cnpj.String()+".json")
}

// Find reads the cached snapshot for cnpj. A file that does not decode into a
// record is reported as not found so the caller refetches and overwrites it.
func (c *FileCache) Find(_ context.Context, cnpj domain.CNPJ) (*models.CacheEntry, error) {
	path := c.path(cnpj)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat cache entry: %w", err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	var record models.CompanyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w: %w", cnpj, sentinel.ErrNotFound, err)
	}
	if record.IsEmpty() {
		return nil, fmt.Errorf("decode cache entry %s: empty record: %w", cnpj, sentinel.ErrNotFound)
	}

	return &models.CacheEntry{
		CNPJ:        cnpj.String(),
		Record:      &record,
		RetrievedAt: info.ModTime(),
	}, nil
}

// Save replaces the snapshot atomically: the record is written to a temp file
// in the same directory, stamped with RetrievedAt and renamed into place.
func (c *FileCache) Save(_ context.Context, entry *models.CacheEntry) error {
	if err := validEntry(entry); err != nil {
		return err
	}
	data, err := json.Marshal(entry.Record)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, entry.CNPJ+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Chtimes(tmpName, entry.RetrievedAt, entry.RetrievedAt); err != nil {
		return fmt.Errorf("stamp cache entry: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(c.dir, entry.CNPJ+".json")); err != nil {
		return fmt.Errorf("replace cache entry: %w", err)
	}
	return nil
}
