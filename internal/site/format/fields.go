package format

import (
	"sitegen/internal/company/models"
)

// Contact is the caller-supplied contact data, before normalization.
type Contact struct {
	Email string
	Site  string
}

// Fields are the display values of one generated site. Values are plain text;
// escaping for markup happens when they become replacements.
type Fields struct {
	LegalName    string `json:"razao_social"`
	TradeName    string `json:"nome_fantasia"`
	CNPJ         string `json:"cnpj"`
	CNPJDigits   string `json:"cnpj_limpo"`
	Email        string `json:"email"`
	Phone        string `json:"telefone"`
	Site         string `json:"site"`
	Street       string `json:"logradouro"`
	Number       string `json:"numero"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	State        string `json:"estado"`
	PostalCode   string `json:"cep"`
	FullAddress  string `json:"endereco_completo"`
}

// NewFields derives the display values from a resolved record and contact.
func NewFields(record *models.CompanyRecord, contact Contact) Fields {
	if record == nil {
		record = &models.CompanyRecord{}
	}
	legal := LegalName(record.LegalName)
	postal := PostalCode(record.PostalCode)
	return Fields{
		LegalName:    legal,
		TradeName:    TradeName(legal, record.TradeName),
		CNPJ:         CNPJ(record.CNPJ),
		CNPJDigits:   record.CNPJ,
		Email:        Email(contact.Email),
		Phone:        Phone(record.Phone),
		Site:         Site(contact.Site),
		Street:       record.Street,
		Number:       record.Number,
		Complement:   record.Complement,
		Neighborhood: record.Neighborhood,
		City:         record.City,
		State:        record.State,
		PostalCode:   postal,
		FullAddress: FullAddress(Address{
			Street:       record.Street,
			Number:       record.Number,
			Complement:   record.Complement,
			Neighborhood: record.Neighborhood,
			City:         record.City,
			State:        record.State,
			PostalCode:   postal,
		}),
	}
}
