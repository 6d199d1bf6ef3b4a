package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sitegen/internal/audit"
	"sitegen/internal/company/models"
	"sitegen/internal/company/registry"
	"sitegen/internal/site/archive"
	"sitegen/internal/site/history"
	"sitegen/internal/site/metrics"
	"sitegen/internal/site/render"
	"sitegen/internal/site/service/mocks"
	"sitegen/pkg/domain"
	dErrors "sitegen/pkg/domain-errors"
	"sitegen/pkg/platform/sentinel"
	"sitegen/pkg/requestcontext"
)

const (
	rawCNPJ   = "11.444.777/0001-61"
	testCNPJ  = domain.CNPJ("11444777000161")
	requestID = "req-123"
)

var fixedNow = time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)

func acme() *models.CompanyRecord {
	return &models.CompanyRecord{
		CNPJ:         testCNPJ.String(),
		LegalName:    "ACME COMERCIO DE PECAS LTDA",
		TradeName:    "ACME PECAS",
		Phone:        "1133334444",
		Street:       "RUA DAS FLORES",
		Number:       "100",
		Neighborhood: "CENTRO",
		City:         "SAO PAULO",
		State:        "SP",
		PostalCode:   "01001000",
	}
}

func allSucceeded() render.Outputs {
	outputs := make(render.Outputs, 0, len(render.DefaultTemplates))
	for _, name := range render.DefaultTemplates {
		outputs = append(outputs, render.Output{Name: name, Status: render.StatusSuccess, Message: render.MessageGenerated})
	}
	return outputs
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	resolver *mocks.MockResolver
	renderer *mocks.MockRenderer
	packager *mocks.MockPackager
	history  *mocks.MockHistoryStore
	events   *audit.MemorySink
	metrics  *metrics.Metrics
	sut      *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = requestcontext.WithRequestID(context.Background(), requestID)
	s.resolver = mocks.NewMockResolver(ctrl)
	s.renderer = mocks.NewMockRenderer(ctrl)
	s.packager = mocks.NewMockPackager(ctrl)
	s.history = mocks.NewMockHistoryStore(ctrl)
	s.events = audit.NewMemorySink()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.sut = New(s.resolver, s.renderer, s.packager, s.history,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithPublisher(audit.NewPublisher(s.events)),
	)
}

func (s *ServiceSuite) TestGenerate() {
	s.Run("renders, packages and records history", func() {
		s.SetupTest()
		var gotRepl render.Replacements
		var gotRecord history.Record
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(acme(), nil)
		s.renderer.EXPECT().Render(gomock.Any(), render.DefaultTemplates, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ []string, repl render.Replacements) render.Outputs {
				gotRepl = repl
				return allSucceeded()
			})
		s.packager.EXPECT().Pack(gomock.Any(), gomock.Any(), "ACME PECAS").Return("site_ACME_PECAS_20250309140507.zip", nil)
		s.history.EXPECT().Append(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r history.Record) error {
				gotRecord = r
				return nil
			})

		result, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ, Email: "vendas@acme.com.br"})
		s.Require().NoError(err)

		s.Equal("ACME COMERCIO DE PECAS LTDA", result.Fields.LegalName)
		s.Equal("11.444.777/0001-61", result.Fields.CNPJ)
		s.Equal("(11) 3333-4444", result.Fields.Phone)
		s.Equal("vendas@acme.com.br", result.Fields.Email)
		s.Equal("site_ACME_PECAS_20250309140507.zip", result.Archive)
		s.Len(result.Documents.Succeeded(), 4)
		s.Equal(fixedNow, result.GeneratedAt)

		year, ok := gotRepl.Lookup(render.TokenYear)
		s.True(ok)
		s.Equal("2025", year)

		s.Equal("2025-03-09 14:05:07", gotRecord.Timestamp)
		s.Equal("11444777000161", gotRecord.CNPJ)
		s.Equal("SAO PAULO", gotRecord.City)

		s.Equal([]audit.Action{
			audit.ActionCompanyResolved,
			audit.ActionDocumentsRendered,
			audit.ActionArchiveCreated,
			audit.ActionSiteGenerated,
		}, s.events.Actions())
		for _, ev := range s.events.Events() {
			s.Equal(requestID, ev.RequestID)
			s.Equal(testCNPJ.String(), ev.CNPJ)
		}
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Generations.WithLabelValues("success")))
		s.Equal(4.0, testutil.ToFloat64(s.metrics.Documents.WithLabelValues("success")))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Archives.WithLabelValues("created")))
	})

	s.Run("empty cnpj fails validation before any lookup", func() {
		s.SetupTest()
		_, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: "   "})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Generations.WithLabelValues("invalid")))
		s.Empty(s.events.Events())
	})

	s.Run("check digit mismatch is an invalid identifier", func() {
		s.SetupTest()
		_, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: "11.444.777/0001-62"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidIdentifier))
	})

	s.Run("registry not found maps to not found and stops the pipeline", func() {
		s.SetupTest()
		notFound := &registry.RegistryError{Category: registry.ErrorNotFound, CNPJ: testCNPJ.String(), Message: "cnpj not found in registry"}
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(nil, notFound)

		_, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.ErrorIs(err, registry.ErrNotFound)
		s.Equal([]audit.Action{audit.ActionResolutionFailed}, s.events.Actions())
		s.Equal("not_found", s.events.Events()[0].Reason)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Generations.WithLabelValues("not_found")))
	})

	s.Run("remote and status failures map to bad gateway", func() {
		for _, category := range []registry.ErrorCategory{
			registry.ErrorRemote,
			registry.ErrorUnexpectedStatus,
			registry.ErrorMalformedResponse,
		} {
			s.SetupTest()
			regErr := &registry.RegistryError{Category: category, CNPJ: testCNPJ.String(), StatusCode: 503}
			s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(nil, regErr)

			_, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
			s.Require().Error(err, category)
			s.True(dErrors.HasCode(err, dErrors.CodeBadGateway), category)
			s.Equal(1.0, testutil.ToFloat64(s.metrics.Generations.WithLabelValues("registry_error")), category)
		}
	})

	s.Run("caller cancellation maps to bad gateway", func() {
		s.SetupTest()
		abandoned := &registry.RegistryError{Category: registry.ErrorRemote, CNPJ: testCNPJ.String(), Underlying: context.Canceled}
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(nil, abandoned)

		_, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.True(dErrors.HasCode(err, dErrors.CodeBadGateway))
		s.ErrorIs(err, context.Canceled)
		s.ErrorIs(err, registry.ErrRemote)
		s.Equal("remote", s.events.Events()[0].Reason)
	})

	s.Run("bare context errors still map to bad gateway", func() {
		s.SetupTest()
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(nil, context.DeadlineExceeded)

		_, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.True(dErrors.HasCode(err, dErrors.CodeBadGateway))
		s.ErrorIs(err, context.DeadlineExceeded)
	})

	s.Run("unknown resolver errors are internal", func() {
		s.SetupTest()
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(nil, errors.New("boom"))

		_, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("failed documents do not fail the generation", func() {
		s.SetupTest()
		outputs := render.Outputs{
			{Name: "index.html", Status: render.StatusSuccess, Message: render.MessageGenerated},
			{Name: "terms.html", Status: render.StatusFailure, Message: render.MessageTemplateNotFound},
		}
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(acme(), nil)
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(outputs)
		s.packager.EXPECT().Pack(gomock.Any(), outputs, gomock.Any()).Return("site.zip", nil)
		s.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.Require().NoError(err)
		s.Equal([]string{"index.html"}, result.Documents.Succeeded())
		s.Equal(1, result.Documents.Failed())
		s.Equal(audit.OutcomeFailure, s.events.Events()[1].Outcome)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Documents.WithLabelValues("failure")))
	})

	s.Run("disabled archiving leaves archive empty", func() {
		s.SetupTest()
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(acme(), nil)
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(allSucceeded())
		s.packager.EXPECT().Pack(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(archive.Disabled{}.Pack(context.Background(), nil, ""))
		s.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.Require().NoError(err)
		s.Empty(result.Archive)
		s.Contains(s.events.Actions(), audit.ActionArchiveSkipped)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Archives.WithLabelValues("unavailable")))
	})

	s.Run("packaging errors are logged not returned", func() {
		s.SetupTest()
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(acme(), nil)
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(allSucceeded())
		s.packager.EXPECT().Pack(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))
		s.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.Require().NoError(err)
		s.Empty(result.Archive)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Archives.WithLabelValues("error")))
	})

	s.Run("history append failure is reported but not fatal", func() {
		s.SetupTest()
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(acme(), nil)
		s.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(allSucceeded())
		s.packager.EXPECT().Pack(gomock.Any(), gomock.Any(), gomock.Any()).Return("site.zip", nil)
		s.history.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("read-only file system"))

		result, err := s.sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.Require().NoError(err)
		s.Equal("site.zip", result.Archive)
		s.Contains(s.events.Actions(), audit.ActionHistoryAppendFailed)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.HistoryFailures))
	})

	s.Run("custom templates are passed to the renderer", func() {
		s.SetupTest()
		sut := New(s.resolver, s.renderer, nil, nil, WithTemplates(" about.html ", "about.html", ""))
		s.resolver.EXPECT().Resolve(gomock.Any(), testCNPJ).Return(acme(), nil)
		s.renderer.EXPECT().Render(gomock.Any(), []string{"about.html"}, gomock.Any()).Return(render.Outputs{})

		result, err := sut.Generate(s.ctx, GenerateRequest{CNPJ: rawCNPJ})
		s.Require().NoError(err)
		s.Empty(result.Archive)
	})
}

func (s *ServiceSuite) TestHistory() {
	s.Run("returns the store contents", func() {
		s.SetupTest()
		records := []history.Record{{CNPJ: "11.444.777/0001-61"}}
		s.history.EXPECT().List(gomock.Any()).Return(records, nil)

		got, err := s.sut.History(s.ctx)
		s.Require().NoError(err)
		s.Equal(records, got)
	})

	s.Run("store errors are internal", func() {
		s.SetupTest()
		s.history.EXPECT().List(gomock.Any()).Return(nil, errors.New("io"))

		_, err := s.sut.History(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
	sink := render.NewDirSink(dir)

	t.Run("serves existing documents", func(t *testing.T) {
		svc := New(nil, nil, nil, nil, WithDocuments(sink))
		f, err := svc.Open(context.Background(), "index.html")
		require.NoError(t, err)
		defer f.Close()
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "<html></html>", string(body))
	})

	t.Run("missing files are not found", func(t *testing.T) {
		svc := New(nil, nil, nil, nil, WithDocuments(sink))
		_, err := svc.Open(context.Background(), "privacy.html")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		svc := New(nil, nil, nil, nil, WithDocuments(sink))
		for _, name := range []string{"../etc/passwd", "a/b.html", ".hidden", ""} {
			_, err := svc.Open(context.Background(), name)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), name)
		}
	})

	t.Run("downloads disabled without a document store", func(t *testing.T) {
		svc := New(nil, nil, nil, nil)
		_, err := svc.Open(context.Background(), "index.html")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
