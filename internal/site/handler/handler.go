package handler

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"sitegen/internal/site/history"
	"sitegen/internal/site/service"
	dErrors "sitegen/pkg/domain-errors"
	"sitegen/pkg/platform/httputil"
	"sitegen/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

// Service defines the site generation operations exposed over HTTP.
type Service interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error)
	History(ctx context.Context) ([]history.Record, error)
	Open(ctx context.Context, name string) (*os.File, error)
}

// Handler wires site endpoints to the generation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a site handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts site endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sites", h.HandleGenerate)
	r.Get("/history", h.HandleHistory)
	r.Get("/downloads/{name}", h.HandleDownload)
}

// HandleGenerate handles POST /sites requests.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.DecodeJSON[GenerateRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.logger.WarnContext(ctx, "invalid generate request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Generate(ctx, service.GenerateRequest{
		CNPJ:  req.CNPJ,
		Email: req.Email,
		Site:  req.Site,
	})
	if err != nil {
		level := slog.LevelError
		if code := dErrors.CodeOf(err); code == dErrors.CodeValidation || code == dErrors.CodeInvalidIdentifier || code == dErrors.CodeNotFound {
			level = slog.LevelInfo
		}
		h.logger.Log(ctx, level, "site generation failed",
			"request_id", requestID,
			"cnpj", req.CNPJ,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "site generated",
		"request_id", requestID,
		"cnpj", result.Fields.CNPJDigits,
		"documents", len(result.Documents.Succeeded()),
		"archive", result.Archive,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// HandleHistory handles GET /history requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := h.service.History(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list history",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HistoryResponse{Records: records})
}

// HandleDownload handles GET /downloads/{name} requests.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	f, err := h.service.Open(ctx, name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to stat download",
			"request_id", requestcontext.RequestID(ctx),
			"name", name,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read file"))
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
