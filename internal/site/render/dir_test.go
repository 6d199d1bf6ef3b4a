package render

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/pkg/platform/sentinel"
)

func TestValidName(t *testing.T) {
	valid := []string{"index.html", "site_Acme_20250309140507.zip", "a"}
	invalid := []string{"", ".", "..", "../index.html", "sub/index.html", `sub\index.html`, "/etc/passwd", ".hidden"}

	for _, name := range valid {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range invalid {
		assert.False(t, ValidName(name), name)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>{{CNPJ}}</p>"), 0o644))
	source := NewDirSource(dir)

	content, err := source.Load(context.Background(), "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>{{CNPJ}}</p>", content)

	_, err = source.Load(context.Background(), "terms.html")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = source.Load(context.Background(), "../index.html")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gerados")
	sink := NewDirSink(dir)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, "index.html", "first"))
	require.NoError(t, sink.Write(ctx, "index.html", "second"))

	f, err := sink.Open("index.html")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be renamed or removed")

	_, err = sink.Open("missing.html")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	assert.ErrorIs(t, sink.Write(ctx, "../escape.html", "x"), ErrInvalidName)
	_, err = sink.Open("../escape.html")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Equal(t, dir, sink.Dir())
}
