// Package format turns raw registry fields and caller input into the display
// values placed in generated documents. Every function is pure and total.
package format

import (
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sitegen/pkg/domain"
)

// Placeholders used when the record or the caller leaves a value empty.
const (
	DefaultLegalName = "Empresa LTDA"
	DefaultTradeName = "Central"
	DefaultSite      = "https://seudominio.com"
	DefaultEmail     = "contato@example.com"
)

// Phone formats a registry phone ("DDD + number") as (DD) DDDD-DDDD or
// (DD) DDDDD-DDDD. Input shorter than 10 characters yields "", other lengths
// yield the bare digits.
func Phone(raw string) string {
	if len(raw) < 10 {
		return ""
	}
	d := domain.OnlyDigits(raw)
	switch len(d) {
	case 10:
		return "(" + d[:2] + ") " + d[2:6] + "-" + d[6:]
	case 11:
		return "(" + d[:2] + ") " + d[2:7] + "-" + d[7:]
	default:
		return d
	}
}

// PostalCode formats an 8-digit CEP as NN.NNN-NNN; anything else is returned
// unchanged.
func PostalCode(raw string) string {
	d := domain.OnlyDigits(raw)
	if len(d) != 8 {
		return raw
	}
	return d[:2] + "." + d[2:5] + "-" + d[5:]
}

// CNPJ formats a 14-digit identifier as NN.NNN.NNN/NNNN-NN; anything else is
// returned unchanged.
func CNPJ(raw string) string {
	d := domain.OnlyDigits(raw)
	if len(d) != domain.CNPJLength {
		return raw
	}
	return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
}

// LegalName returns the registry legal name or DefaultLegalName when blank.
func LegalName(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return DefaultLegalName
	}
	return raw
}

// TradeName returns the trimmed trade name. When it is blank the name is
// derived from the legal name minus its first word, title-cased
// ("ACME COMERCIO LTDA" becomes "Comercio Ltda"); a one-word legal name
// yields DefaultTradeName.
func TradeName(legal, trade string) string {
	if t := strings.TrimSpace(trade); t != "" {
		return t
	}
	_, rest, ok := strings.Cut(legal, " ")
	if !ok || strings.TrimSpace(rest) == "" {
		return DefaultTradeName
	}
	// Casers carry state and are not safe to share between goroutines.
	return cases.Title(language.BrazilianPortuguese).String(strings.ToLower(rest))
}

// Site normalizes the caller-supplied site URL: blank becomes DefaultSite and
// a missing http(s):// scheme is replaced by https://.
func Site(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return DefaultSite
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return s
	default:
		return "https://" + s
	}
}

// Email returns the caller-supplied address when it is a bare, syntactically
// valid address with a dotted domain, otherwise DefaultEmail.
func Email(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefaultEmail
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return DefaultEmail
	}
	_, host, _ := strings.Cut(s, "@")
	if !strings.Contains(host, ".") || strings.HasSuffix(host, ".") || strings.HasPrefix(host, ".") {
		return DefaultEmail
	}
	return s
}

// Address holds the components of a full postal address line.
type Address struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	PostalCode   string // already formatted
}

// FullAddress renders "street, number[ - complement] - neighborhood,
// city/state[ - CEP: postal]".
func FullAddress(a Address) string {
	var b strings.Builder
	b.WriteString(a.Street)
	b.WriteString(", ")
	b.WriteString(a.Number)
	if a.Complement != "" {
		b.WriteString(" - ")
		b.WriteString(a.Complement)
	}
	b.WriteString(" - ")
	b.WriteString(a.Neighborhood)
	b.WriteString(", ")
	b.WriteString(a.City)
	b.WriteString("/")
	b.WriteString(a.State)
	if a.PostalCode != "" {
		b.WriteString(" - CEP: ")
		b.WriteString(a.PostalCode)
	}
	return b.String()
}
