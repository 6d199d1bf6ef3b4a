// Package service runs the site generation pipeline: validate the CNPJ,
// resolve the company, format its fields, render the templates, then package
// and record the result. Only validation and resolution can fail a request;
// later stages degrade per document or are logged.
package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sitegen/internal/audit"
	"sitegen/internal/company/models"
	"sitegen/internal/company/registry"
	"sitegen/internal/site/format"
	"sitegen/internal/site/history"
	"sitegen/internal/site/metrics"
	"sitegen/internal/site/render"
	"sitegen/pkg/domain"
	dErrors "sitegen/pkg/domain-errors"
	"sitegen/pkg/platform/sentinel"
	platformstrings "sitegen/pkg/platform/strings"
	"sitegen/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Resolver,Renderer,Packager,HistoryStore,Documents

// Resolver returns the company record for a CNPJ.
type Resolver interface {
	Resolve(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error)
}

// Renderer fills the named templates with replacements.
type Renderer interface {
	Render(ctx context.Context, names []string, replacements render.Replacements) render.Outputs
}

// Packager bundles successful outputs into an archive.
type Packager interface {
	Pack(ctx context.Context, outputs render.Outputs, label string) (string, error)
}

// HistoryStore records generated sites.
type HistoryStore interface {
	Append(ctx context.Context, record history.Record) error
	List(ctx context.Context) ([]history.Record, error)
}

// Documents gives read access to generated documents and archives.
type Documents interface {
	Open(name string) (*os.File, error)
}

// GenerateRequest is the caller input.
type GenerateRequest struct {
	CNPJ  string
	Email string
	Site  string
}

// GenerateResult is what a successful generation produced. Archive is empty
// when packaging was unavailable or failed; callers then offer the documents
// individually.
type GenerateResult struct {
	Fields      format.Fields
	Documents   render.Outputs
	Archive     string
	GeneratedAt time.Time
}

// Service wires the pipeline stages together.
type Service struct {
	resolver  Resolver
	renderer  Renderer
	packager  Packager
	history   HistoryStore
	documents Documents
	publisher *audit.Publisher
	templates []string
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithTemplates overrides render.DefaultTemplates. Blank and repeated names
// are dropped.
func WithTemplates(names ...string) Option {
	return func(s *Service) {
		if names = platformstrings.DedupeAndTrim(names); len(names) > 0 {
			s.templates = names
		}
	}
}

// WithDocuments enables Open for downloads.
func WithDocuments(d Documents) Option {
	return func(s *Service) {
		s.documents = d
	}
}

// WithPublisher sets the pipeline event publisher.
func WithPublisher(p *audit.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock injects the time source. Without it the request time from
// requestcontext is used, so every stage of one request shares a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New creates the generation service.
func New(resolver Resolver, renderer Renderer, packager Packager, historyStore HistoryStore, opts ...Option) *Service {
	s := &Service{
		resolver:  resolver,
		renderer:  renderer,
		packager:  packager,
		history:   historyStore,
		templates: render.DefaultTemplates,
		logger:    slog.Default(),
		tracer:    otel.Tracer("sitegen/internal/site/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate runs the pipeline for one request.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "site.Generate")
	defer span.End()

	result, outcome, err := s.generate(ctx, req)
	s.metrics.IncrementGeneration(outcome)
	s.metrics.ObserveGenerateLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return result, nil
}

func (s *Service) generate(ctx context.Context, req GenerateRequest) (*GenerateResult, string, error) {
	cnpj, err := domain.ParseCNPJ(req.CNPJ)
	if err != nil {
		return nil, "invalid", err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("cnpj", cnpj.String()))

	record, err := s.resolve(ctx, cnpj)
	if err != nil {
		s.publisher.Emit(ctx, audit.Event{
			Action:  audit.ActionResolutionFailed,
			CNPJ:    cnpj.String(),
			Outcome: audit.OutcomeFailure,
			Reason:  string(registry.GetCategory(err)),
		})
		translated := translateResolveError(err)
		return nil, outcomeFor(translated), translated
	}
	s.publisher.Emit(ctx, audit.Event{
		Action:  audit.ActionCompanyResolved,
		CNPJ:    cnpj.String(),
		Outcome: audit.OutcomeSuccess,
	})

	now := s.clock(ctx)
	fields := format.NewFields(record, format.Contact{Email: req.Email, Site: req.Site})
	outputs := s.render(ctx, cnpj, fields, now)
	archiveName := s.pack(ctx, cnpj, outputs, fields.TradeName)
	s.appendHistory(ctx, cnpj, now, fields)

	s.publisher.Emit(ctx, audit.Event{
		Action:  audit.ActionSiteGenerated,
		CNPJ:    cnpj.String(),
		Outcome: audit.OutcomeSuccess,
		Detail:  archiveName,
	})
	s.logger.InfoContext(ctx, "site generated",
		"cnpj", cnpj.String(),
		"documents", len(outputs.Succeeded()),
		"failed_documents", outputs.Failed(),
		"archive", archiveName,
	)

	return &GenerateResult{
		Fields:      fields,
		Documents:   outputs,
		Archive:     archiveName,
		GeneratedAt: now,
	}, "success", nil
}

func (s *Service) clock(ctx context.Context) time.Time {
	if s.now != nil {
		return s.now()
	}
	return requestcontext.Now(ctx)
}

func (s *Service) resolve(ctx context.Context, cnpj domain.CNPJ) (*models.CompanyRecord, error) {
	ctx, span := s.tracer.Start(ctx, "company.Resolve")
	defer span.End()

	record, err := s.resolver.Resolve(ctx, cnpj)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		s.logger.WarnContext(ctx, "company resolution failed",
			"cnpj", cnpj.String(),
			"category", string(registry.GetCategory(err)),
			"error", err,
		)
		return nil, err
	}
	return record, nil
}

func (s *Service) render(ctx context.Context, cnpj domain.CNPJ, fields format.Fields, now time.Time) render.Outputs {
	ctx, span := s.tracer.Start(ctx, "site.Render")
	defer span.End()

	outputs := s.renderer.Render(ctx, s.templates, render.BuildReplacements(fields, now))
	succeeded := len(outputs.Succeeded())
	s.metrics.AddDocuments(string(render.StatusSuccess), succeeded)
	s.metrics.AddDocuments(string(render.StatusFailure), outputs.Failed())
	span.SetAttributes(
		attribute.Int("documents.succeeded", succeeded),
		attribute.Int("documents.failed", outputs.Failed()),
	)

	outcome := audit.OutcomeSuccess
	if outputs.Failed() > 0 {
		outcome = audit.OutcomeFailure
	}
	s.publisher.Emit(ctx, audit.Event{
		Action:  audit.ActionDocumentsRendered,
		CNPJ:    cnpj.String(),
		Outcome: outcome,
		Detail:  strings.Join(outputs.Succeeded(), ","),
	})
	return outputs
}

func (s *Service) pack(ctx context.Context, cnpj domain.CNPJ, outputs render.Outputs, label string) string {
	if s.packager == nil {
		return ""
	}
	ctx, span := s.tracer.Start(ctx, "site.Pack")
	defer span.End()

	name, err := s.packager.Pack(ctx, outputs, label)
	switch {
	case err == nil:
		s.metrics.IncrementArchive("created")
		s.publisher.Emit(ctx, audit.Event{
			Action:  audit.ActionArchiveCreated,
			CNPJ:    cnpj.String(),
			Outcome: audit.OutcomeSuccess,
			Detail:  name,
		})
		return name
	case errors.Is(err, sentinel.ErrUnavailable):
		s.metrics.IncrementArchive("unavailable")
		s.logger.InfoContext(ctx, "archive unavailable, documents served individually", "cnpj", cnpj.String())
	default:
		span.RecordError(err)
		s.metrics.IncrementArchive("error")
		s.logger.WarnContext(ctx, "archive packaging failed",
			"cnpj", cnpj.String(),
			"error", err,
		)
	}
	s.publisher.Emit(ctx, audit.Event{
		Action:  audit.ActionArchiveSkipped,
		CNPJ:    cnpj.String(),
		Outcome: audit.OutcomeFailure,
		Reason:  err.Error(),
	})
	return ""
}

func (s *Service) appendHistory(ctx context.Context, cnpj domain.CNPJ, now time.Time, fields format.Fields) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, history.NewRecord(now, fields)); err != nil {
		s.metrics.IncrementHistoryFailure()
		s.logger.ErrorContext(ctx, "failed to append history",
			"cnpj", cnpj.String(),
			"error", err,
		)
		s.publisher.Emit(ctx, audit.Event{
			Action:  audit.ActionHistoryAppendFailed,
			CNPJ:    cnpj.String(),
			Outcome: audit.OutcomeFailure,
			Reason:  err.Error(),
		})
	}
}

// History lists generated sites, newest first.
func (s *Service) History(ctx context.Context) ([]history.Record, error) {
	if s.history == nil {
		return []history.Record{}, nil
	}
	records, err := s.history.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read history")
	}
	return records, nil
}

// Open returns a generated document or archive by name.
func (s *Service) Open(_ context.Context, name string) (*os.File, error) {
	if s.documents == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "downloads are not enabled")
	}
	if !render.ValidName(name) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid file name")
	}
	f, err := s.documents.Open(name)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "file not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open file")
	}
	return f, nil
}
