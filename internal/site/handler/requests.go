package handler

import (
	"strings"

	dErrors "sitegen/pkg/domain-errors"
)

// GenerateRequest is the HTTP request body for POST /sites.
type GenerateRequest struct {
	CNPJ  string `json:"cnpj"`
	Email string `json:"email"`
	Site  string `json:"site"`
}

// Validate applies size limits and trims input. CNPJ content is checked by
// the service so every caller gets the same rules.
func (r *GenerateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.CNPJ) > 32 {
		return dErrors.New(dErrors.CodeValidation, "cnpj must be at most 32 characters")
	}
	if len(r.Email) > 254 {
		return dErrors.New(dErrors.CodeValidation, "email must be at most 254 characters")
	}
	if len(r.Site) > 2048 {
		return dErrors.New(dErrors.CodeValidation, "site must be at most 2048 characters")
	}
	r.CNPJ = strings.TrimSpace(r.CNPJ)
	r.Email = strings.TrimSpace(r.Email)
	r.Site = strings.TrimSpace(r.Site)
	return nil
}
