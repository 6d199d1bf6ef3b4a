package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

// CompanyRecord is a company as described by the registry. Known fields are
// typed; everything else the registry returns is kept verbatim in Extra so a
// cached snapshot can be re-encoded without loss. Records are treated as
// immutable: a fresh lookup produces a new record.
type CompanyRecord struct {
	CNPJ         string
	LegalName    string
	TradeName    string
	Phone        string
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	PostalCode   string

	Extra map[string]json.RawMessage
}

// JSON keys used by the registry for the typed fields.
const (
	FieldCNPJ         = "cnpj"
	FieldLegalName    = "razao_social"
	FieldTradeName    = "nome_fantasia"
	FieldPhone        = "ddd_telefone_1"
	FieldStreet       = "logradouro"
	FieldNumber       = "numero"
	FieldComplement   = "complemento"
	FieldNeighborhood = "bairro"
	FieldCity         = "municipio"
	FieldState        = "uf"
	FieldPostalCode   = "cep"
)

// ErrNotObject is returned when the payload is not a JSON object.
var ErrNotObject = errors.New("company record must be a JSON object")

func (r *CompanyRecord) fields() map[string]*string {
	return map[string]*string{
		FieldCNPJ:         &r.CNPJ,
		FieldLegalName:    &r.LegalName,
		FieldTradeName:    &r.TradeName,
		FieldPhone:        &r.Phone,
		FieldStreet:       &r.Street,
		FieldNumber:       &r.Number,
		FieldComplement:   &r.Complement,
		FieldNeighborhood: &r.Neighborhood,
		FieldCity:         &r.City,
		FieldState:        &r.State,
		FieldPostalCode:   &r.PostalCode,
	}
}

// UnmarshalJSON decodes a registry payload. Typed fields accept strings,
// numbers and null; unknown keys go to Extra.
func (r *CompanyRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return ErrNotObject
	}

	var out CompanyRecord
	known := out.fields()
	for key, value := range raw {
		dst, ok := known[key]
		if !ok {
			if out.Extra == nil {
				out.Extra = make(map[string]json.RawMessage)
			}
			out.Extra[key] = value
			continue
		}
		text, err := decodeText(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		*dst = text
	}
	*r = out
	return nil
}

// MarshalJSON writes the typed fields under their registry keys plus Extra.
func (r CompanyRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+11)
	for k, v := range r.Extra {
		out[k] = v
	}
	for k, v := range r.fields() {
		out[k] = *v
	}
	return json.Marshal(out)
}

// IsEmpty reports whether the record carries no data at all.
func (r *CompanyRecord) IsEmpty() bool {
	if r == nil {
		return true
	}
	for _, v := range r.fields() {
		if *v != "" {
			return false
		}
	}
	return len(r.Extra) == 0
}

// Clone returns a deep copy so callers cannot mutate a cached snapshot.
func (r *CompanyRecord) Clone() *CompanyRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Extra = maps.Clone(r.Extra)
	return &c
}

func decodeText(value json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(value))
	switch {
	case trimmed == "null":
		return "", nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		var n json.Number
		if err := json.Unmarshal(value, &n); err != nil {
			return "", fmt.Errorf("expected string or number, got %s", trimmed)
		}
		return n.String(), nil
	}
}

// CacheEntry is a record snapshot with the time it was fetched from the registry.
type CacheEntry struct {
	CNPJ        string
	Record      *CompanyRecord
	RetrievedAt time.Time
}

// Fresh reports whether the entry is younger than window at now.
func (e *CacheEntry) Fresh(now time.Time, window time.Duration) bool {
	if e == nil || e.Record == nil {
		return false
	}
	return now.Sub(e.RetrievedAt) < window
}
