package utils

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailHelpers(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.Com "))
	assert.True(t, IsValidEmail("a@b.com"))
	assert.False(t, IsValidEmail("a@b"))
	assert.False(t, IsValidEmail(""))
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("Sup3rSecret"))
	assert.Len(t, ValidatePassword("short"), 3)
	assert.Contains(t, ValidatePassword(strings.Repeat("Aa1", 30)), "Password must be at most 72 characters long")
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "leave at door", SanitizeString(" <b>leave</b> at\x00 door "))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$40.25", FormatCurrency(40.25))
	assert.Equal(t, "$0.10", FormatCurrency(0.1))
	assert.Equal(t, "Hello...", TruncateString("Hello, world", 8))
	assert.Equal(t, "Hi", TruncateString("Hi", 8))
	assert.Equal(t, "1 Market St Nairobi", FullName(" 1 Market St", "", "Nairobi "))
}

func TestTokens(t *testing.T) {
	a, b := GenerateRandomString(32), GenerateRandomString(32)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Len(t, HashToken(a), 64)
	assert.Equal(t, HashToken(a), HashToken(a))
}

func TestDescribeValidation(t *testing.T) {
	require.NoError(t, RegisterValidators())

	type payload struct {
		Email    string `json:"email" binding:"required,email"`
		Category string `json:"category" binding:"objectid"`
		Quantity int    `json:"quantity" binding:"gt=0"`
	}

	err := binding.Validator.ValidateStruct(&payload{Email: "nope", Category: "x"})
	require.Error(t, err)

	fields, ok := DescribeValidation(err)
	require.True(t, ok)
	assert.Equal(t, ValidationErrors{
		{Field: "email", Message: "must be a valid email address"},
		{Field: "category", Message: "must be a valid id"},
		{Field: "quantity", Message: "must be greater than 0"},
	}, fields)

	_, ok = DescribeValidation(assert.AnError)
	assert.False(t, ok)
}
