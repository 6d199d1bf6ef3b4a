package domain

import (
	"strings"

	dErrors "sitegen/pkg/domain-errors"
)

// CNPJLength is the number of digits in a normalized CNPJ.
const CNPJLength = 14

// CNPJ is a normalized, checksum-valid 14-digit company tax identifier.
// Values are only produced by ParseCNPJ, so holding one means it passed validation.
type CNPJ string

// String returns the 14 digits without punctuation.
func (c CNPJ) String() string {
	return string(c)
}

// IsNil reports whether c is the zero value.
func (c CNPJ) IsNil() bool {
	return c == ""
}

// ParseCNPJ strips punctuation from raw and validates the check digits.
func ParseCNPJ(raw string) (CNPJ, error) {
	if strings.TrimSpace(raw) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "cnpj is required")
	}
	if !ValidCNPJ(raw) {
		return "", dErrors.New(dErrors.CodeInvalidIdentifier, "invalid cnpj: check digit verification failed")
	}
	return CNPJ(OnlyDigits(raw)), nil
}

// ValidCNPJ reports whether raw, once reduced to its digits, is a 14-digit
// CNPJ with matching check digits. Repeated sequences such as 00000000000000
// satisfy the checksum but are rejected.
func ValidCNPJ(raw string) bool {
	digits := OnlyDigits(raw)
	if len(digits) != CNPJLength || allSame(digits) {
		return false
	}

	for t := 12; t < CNPJLength; t++ {
		sum := 0
		c := 0
		for m := t - 7; m >= 2; m-- {
			sum += int(digits[c]-'0') * m
			c++
		}
		for m := 9; m >= 2 && c < t; m-- {
			sum += int(digits[c]-'0') * m
			c++
		}
		check := ((sum * 10) % 11) % 10
		if int(digits[t]-'0') != check {
			return false
		}
	}
	return true
}

// OnlyDigits drops every byte that is not an ASCII digit.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
