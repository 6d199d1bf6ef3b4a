// Package render fills the site templates. Substitution is literal token
// replacement; each template succeeds or fails on its own and a failure never
// stops the rest of the batch.
package render

import (
	"context"
	"log/slog"
)

// DefaultTemplates are the documents every generated site is made of.
var DefaultTemplates = []string{"index.html", "privacy.html", "terms.html", "cookie.html"}

// Status of a rendered document.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Messages attached to rendered documents.
const (
	MessageGenerated        = "generated"
	MessageTemplateNotFound = "template not found"
	MessageWriteError       = "write error"
)

// TemplateSource loads raw template content by name.
type TemplateSource interface {
	Load(ctx context.Context, name string) (string, error)
}

// OutputSink stores rendered content under name.
type OutputSink interface {
	Write(ctx context.Context, name, content string) error
}

// Output is the result of rendering one template. Content holds the rendered
// document and is empty on failure.
type Output struct {
	Name    string `json:"name"`
	Content string `json:"-"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Outputs keeps the template order of the batch.
type Outputs []Output

// Succeeded lists the names of the documents that were written.
func (o Outputs) Succeeded() []string {
	var names []string
	for _, out := range o {
		if out.Status == StatusSuccess {
			names = append(names, out.Name)
		}
	}
	return names
}

// Failed counts the documents that were not written.
func (o Outputs) Failed() int {
	n := 0
	for _, out := range o {
		if out.Status != StatusSuccess {
			n++
		}
	}
	return n
}

// Engine renders templates from a source into a sink.
type Engine struct {
	source TemplateSource
	sink   OutputSink
	logger *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(source TemplateSource, sink OutputSink, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render processes names in order and reports one Output per name.
func (e *Engine) Render(ctx context.Context, names []string, replacements Replacements) Outputs {
	outputs := make(Outputs, 0, len(names))
	for _, name := range names {
		outputs = append(outputs, e.renderOne(ctx, name, replacements))
	}
	return outputs
}

func (e *Engine) renderOne(ctx context.Context, name string, replacements Replacements) Output {
	content, err := e.source.Load(ctx, name)
	if err != nil {
		e.logger.WarnContext(ctx, "template not found",
			"template", name,
			"error", err,
		)
		return Output{Name: name, Status: StatusFailure, Message: MessageTemplateNotFound}
	}

	rendered := replacements.Apply(content)
	if err := e.sink.Write(ctx, name, rendered); err != nil {
		e.logger.ErrorContext(ctx, "failed to write document",
			"template", name,
			"error", err,
		)
		return Output{Name: name, Status: StatusFailure, Message: MessageWriteError}
	}

	e.logger.InfoContext(ctx, "document generated", "template", name)
	return Output{Name: name, Content: rendered, Status: StatusSuccess, Message: MessageGenerated}
}
