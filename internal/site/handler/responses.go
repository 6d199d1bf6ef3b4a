package handler

import (
	"net/url"
	"time"

	"sitegen/internal/site/format"
	"sitegen/internal/site/history"
	"sitegen/internal/site/render"
	"sitegen/internal/site/service"
)

// GenerateResponse is the HTTP response for POST /sites.
type GenerateResponse struct {
	Company     format.Fields      `json:"company"`
	Documents   []DocumentResponse `json:"documents"`
	Archive     *ArchiveResponse   `json:"archive,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// DocumentResponse reports one rendered document.
type DocumentResponse struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	DownloadURL string `json:"download_url,omitempty"`
}

// ArchiveResponse points at the packaged site.
type ArchiveResponse struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// HistoryResponse is the HTTP response for GET /history.
type HistoryResponse struct {
	Records []history.Record `json:"records"`
}

// FromResult converts a generation result to an HTTP response.
func FromResult(result *service.GenerateResult) *GenerateResponse {
	resp := &GenerateResponse{
		Company:     result.Fields,
		Documents:   make([]DocumentResponse, 0, len(result.Documents)),
		GeneratedAt: result.GeneratedAt,
	}
	for _, out := range result.Documents {
		doc := DocumentResponse{
			Name:    out.Name,
			Status:  string(out.Status),
			Message: out.Message,
		}
		if out.Status == render.StatusSuccess {
			doc.DownloadURL = downloadURL(out.Name)
		}
		resp.Documents = append(resp.Documents, doc)
	}
	if result.Archive != "" {
		resp.Archive = &ArchiveResponse{
			Name:        result.Archive,
			DownloadURL: downloadURL(result.Archive),
		}
	}
	return resp
}

func downloadURL(name string) string {
	return "/downloads/" + url.PathEscape(name)
}
