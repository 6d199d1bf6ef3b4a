package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/pkg/platform/sentinel"
)

type mapSource map[string]string

func (m mapSource) Load(_ context.Context, name string) (string, error) {
	content, ok := m[name]
	if !ok {
		return "", fmt.Errorf("template %s: %w", name, sentinel.ErrNotFound)
	}
	return content, nil
}

type memorySink struct {
	mu      sync.Mutex
	written map[string]string
	failOn  map[string]bool
}

func newMemorySink(failOn ...string) *memorySink {
	s := &memorySink{written: map[string]string{}, failOn: map[string]bool{}}
	for _, name := range failOn {
		s.failOn[name] = true
	}
	return s
}

func (s *memorySink) Write(_ context.Context, name, content string) error {
	if s.failOn[name] {
		return errors.New("disk full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[name] = content
	return nil
}

func quietEngine(source TemplateSource, sink OutputSink) *Engine {
	return NewEngine(source, sink, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestEngine_Render(t *testing.T) {
	repl := Replacements{{TokenTradeName, "Acme"}}

	t.Run("all templates rendered in order", func(t *testing.T) {
		source := mapSource{
			"index.html":   "<h1>{{NOME_FANTASIA}}</h1>",
			"privacy.html": "{{NOME_FANTASIA}} privacy",
			"terms.html":   "terms",
			"cookie.html":  "{{NOME_FANTASIA}} {{NOME_FANTASIA}}",
		}
		sink := newMemorySink()

		outputs := quietEngine(source, sink).Render(context.Background(), DefaultTemplates, repl)

		require.Len(t, outputs, 4)
		for i, name := range DefaultTemplates {
			assert.Equal(t, name, outputs[i].Name)
			assert.Equal(t, StatusSuccess, outputs[i].Status)
			assert.Equal(t, MessageGenerated, outputs[i].Message)
		}
		assert.Equal(t, "<h1>Acme</h1>", sink.written["index.html"])
		assert.Equal(t, "Acme Acme", sink.written["cookie.html"])
		assert.Equal(t, "<h1>Acme</h1>", outputs[0].Content)
		assert.Equal(t, "Acme Acme", outputs[3].Content)
		assert.Equal(t, DefaultTemplates, outputs.Succeeded())
		assert.Zero(t, outputs.Failed())
	})

	t.Run("missing template does not abort the batch", func(t *testing.T) {
		source := mapSource{"index.html": "x", "terms.html": "y", "cookie.html": "z"}
		sink := newMemorySink()

		outputs := quietEngine(source, sink).Render(context.Background(), DefaultTemplates, repl)

		require.Len(t, outputs, 4)
		assert.Equal(t, Output{Name: "privacy.html", Status: StatusFailure, Message: MessageTemplateNotFound}, outputs[1])
		assert.Equal(t, []string{"index.html", "terms.html", "cookie.html"}, outputs.Succeeded())
		assert.Len(t, sink.written, 3)
	})

	t.Run("write failure is reported per document", func(t *testing.T) {
		source := mapSource{"index.html": "x", "privacy.html": "y", "terms.html": "z", "cookie.html": "w"}
		sink := newMemorySink("terms.html")

		outputs := quietEngine(source, sink).Render(context.Background(), DefaultTemplates, repl)

		assert.Equal(t, Output{Name: "terms.html", Status: StatusFailure, Message: MessageWriteError}, outputs[2])
		assert.Equal(t, StatusSuccess, outputs[3].Status)
		assert.Equal(t, "w", outputs[3].Content)
		assert.Equal(t, 1, outputs.Failed())
	})

	t.Run("no templates", func(t *testing.T) {
		outputs := quietEngine(mapSource{}, newMemorySink()).Render(context.Background(), nil, repl)
		assert.Empty(t, outputs)
		assert.Empty(t, outputs.Succeeded())
	})
}
