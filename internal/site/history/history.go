// Package history keeps the newest-first log of generated sites, capped at
// MaxRecords entries.
package history

import (
	"context"
	"time"

	"sitegen/internal/site/format"
)

// MaxRecords is the number of entries kept; older ones are dropped on append.
const MaxRecords = 100

// TimestampLayout is the format of Record.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one history entry. JSON keys match the history file format.
type Record struct {
	Timestamp string `json:"data"`
	CNPJ      string `json:"cnpj"`
	LegalName string `json:"razao_social"`
	TradeName string `json:"nome_fantasia"`
	Email     string `json:"email"`
	Site      string `json:"site"`
	Phone     string `json:"telefone"`
	City      string `json:"cidade"`
	State     string `json:"estado"`
}

// NewRecord builds the entry for a site generated at now.
func NewRecord(now time.Time, f format.Fields) Record {
	return Record{
		Timestamp: now.Format(TimestampLayout),
		CNPJ:      f.CNPJDigits,
		LegalName: f.LegalName,
		TradeName: f.TradeName,
		Email:     f.Email,
		Site:      f.Site,
		Phone:     f.Phone,
		City:      f.City,
		State:     f.State,
	}
}

// Store is the history persistence contract.
type Store interface {
	Append(ctx context.Context, record Record) error
	List(ctx context.Context) ([]Record, error)
}

func prepend(records []Record, record Record, limit int) []Record {
	out := make([]Record, 0, min(len(records)+1, limit))
	out = append(out, record)
	for _, r := range records {
		if len(out) >= limit {
			break
		}
		out = append(out, r)
	}
	return out
}
