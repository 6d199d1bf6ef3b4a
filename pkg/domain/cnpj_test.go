package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sitegen/pkg/domain-errors"
)

const validCNPJ = "11222333000181"

func TestValidCNPJ(t *testing.T) {
	t.Run("accepts known valid identifiers", func(t *testing.T) {
		assert.True(t, ValidCNPJ(validCNPJ))
		assert.True(t, ValidCNPJ("11444777000161"))
	})

	t.Run("ignores punctuation", func(t *testing.T) {
		assert.True(t, ValidCNPJ("11.222.333/0001-81"))
		assert.True(t, ValidCNPJ(" 11 222 333 0001 81 "))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		assert.False(t, ValidCNPJ(""))
		assert.False(t, ValidCNPJ("1122233300018"))
		assert.False(t, ValidCNPJ("112223330001810"))
		assert.False(t, ValidCNPJ("abc"))
	})

	t.Run("rejects repeated digit sequences", func(t *testing.T) {
		for d := '0'; d <= '9'; d++ {
			seq := strings.Repeat(string(d), CNPJLength)
			assert.False(t, ValidCNPJ(seq), seq)
		}
	})

	t.Run("rejects wrong check digits", func(t *testing.T) {
		assert.False(t, ValidCNPJ("11222333000182"))
		assert.False(t, ValidCNPJ("11222333000191"))
	})
}

// Every single-digit substitution of a valid identifier must fail: weights
// 2..9 never cancel modulo 11 and the first check digit of this sample is
// not subject to the 10 -> 0 fold.
func TestValidCNPJ_SingleDigitSubstitution(t *testing.T) {
	for pos := 0; pos < CNPJLength; pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if validCNPJ[pos] == d {
				continue
			}
			mutated := []byte(validCNPJ)
			mutated[pos] = d
			assert.False(t, ValidCNPJ(string(mutated)), "position %d digit %c", pos, d)
		}
	}
}

func TestParseCNPJ(t *testing.T) {
	t.Run("returns normalized digits", func(t *testing.T) {
		c, err := ParseCNPJ("11.222.333/0001-81")
		require.NoError(t, err)
		assert.Equal(t, CNPJ(validCNPJ), c)
		assert.Equal(t, validCNPJ, c.String())
		assert.False(t, c.IsNil())
	})

	t.Run("empty input is a validation error", func(t *testing.T) {
		_, err := ParseCNPJ("   ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("bad checksum is an invalid identifier", func(t *testing.T) {
		_, err := ParseCNPJ("11222333000100")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidIdentifier))
	})
}

func TestOnlyDigits(t *testing.T) {
	assert.Equal(t, "01310100", OnlyDigits("01310-100"))
	assert.Equal(t, "", OnlyDigits("(--)"))
	assert.Equal(t, "123", OnlyDigits("1a2b3"))
}
