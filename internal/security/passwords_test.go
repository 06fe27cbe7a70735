package security

import (
	"errors"
	"strings"
	"testing"

	"clubhub/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("12345678"))

	err := ValidatePassword("1234567")
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "password", verr.Field)

	assert.Error(t, ValidatePassword(strings.Repeat("x", MaxPasswordLength+1)))
}

func TestHashAndCheckPassword(t *testing.T) {
	h := newTestHasher()

	hash, err := h.HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, h.CheckPassword(&hash, "correct horse"))
	assert.False(t, h.CheckPassword(&hash, "wrong horse"))
	assert.False(t, h.CheckPassword(nil, "correct horse"))

	empty := ""
	assert.False(t, h.CheckPassword(&empty, ""))
}

func TestHashPassword_RejectsShortPassword(t *testing.T) {
	_, err := newTestHasher().HashPassword("short")
	assert.Error(t, err)
}
