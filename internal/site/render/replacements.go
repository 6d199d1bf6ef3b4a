package render

import (
	"html"
	"strings"
	"time"

	"sitegen/internal/site/format"
)

// Tokens recognized in templates.
const (
	TokenLegalName    = "{{RAZAO_SOCIAL}}"
	TokenTradeName    = "{{NOME_FANTASIA}}"
	TokenCNPJ         = "{{CNPJ}}"
	TokenCNPJDigits   = "{{CNPJ_LIMPO}}"
	TokenEmail        = "{{EMAIL}}"
	TokenPhone        = "{{TELEFONE}}"
	TokenSite         = "{{SITE}}"
	TokenStreet       = "{{LOGRADOURO}}"
	TokenNumber       = "{{NUMERO}}"
	TokenComplement   = "{{COMPLEMENTO}}"
	TokenNeighborhood = "{{BAIRRO}}"
	TokenCity         = "{{CIDADE}}"
	TokenState        = "{{ESTADO}}"
	TokenPostalCode   = "{{CEP}}"
	TokenFullAddress  = "{{ENDERECO_COMPLETO}}"
	TokenYear         = "{{ANO}}"
	TokenGeneratedAt  = "{{DATA_GERACAO}}"
)

// GeneratedAtLayout renders {{DATA_GERACAO}} as dd/mm/yyyy hh:mm:ss.
const GeneratedAtLayout = "02/01/2006 15:04:05"

// Replacement maps one token to its already-escaped value.
type Replacement struct {
	Token string
	Value string
}

// Replacements is an ordered token table. Tokens never overlap, so the order
// only matters for presentation.
type Replacements []Replacement

// Lookup returns the value for token.
func (r Replacements) Lookup(token string) (string, bool) {
	for _, rep := range r {
		if rep.Token == token {
			return rep.Value, true
		}
	}
	return "", false
}

// Apply replaces every occurrence of every token in one pass. Tokens with no
// entry are left as they are.
func (r Replacements) Apply(content string) string {
	if len(r) == 0 {
		return content
	}
	pairs := make([]string, 0, len(r)*2)
	for _, rep := range r {
		if rep.Token == "" {
			continue
		}
		pairs = append(pairs, rep.Token, rep.Value)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

// BuildReplacements escapes f for HTML and pairs each value with its token.
// now supplies {{ANO}} and {{DATA_GERACAO}}.
func BuildReplacements(f format.Fields, now time.Time) Replacements {
	esc := html.EscapeString
	return Replacements{
		{TokenLegalName, esc(f.LegalName)},
		{TokenTradeName, esc(f.TradeName)},
		{TokenCNPJ, esc(f.CNPJ)},
		{TokenCNPJDigits, esc(f.CNPJDigits)},
		{TokenEmail, esc(f.Email)},
		{TokenPhone, esc(f.Phone)},
		{TokenSite, esc(f.Site)},
		{TokenStreet, esc(f.Street)},
		{TokenNumber, esc(f.Number)},
		{TokenComplement, esc(f.Complement)},
		{TokenNeighborhood, esc(f.Neighborhood)},
		{TokenCity, esc(f.City)},
		{TokenState, esc(f.State)},
		{TokenPostalCode, esc(f.PostalCode)},
		{TokenFullAddress, esc(f.FullAddress)},
		{TokenYear, now.Format("2006")},
		{TokenGeneratedAt, now.Format(GeneratedAtLayout)},
	}
}
