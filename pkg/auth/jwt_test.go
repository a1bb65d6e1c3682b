package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	v := NewTokenValidator("secret", "capd-api")

	token, err := v.GenerateToken(11, "nurse", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(11), claims.UserID)
	assert.Equal(t, "nurse", claims.Role)
}

func TestValidateToken_Rejects(t *testing.T) {
	v := NewTokenValidator("secret", "capd-api")

	expired, err := v.GenerateToken(11, "", -time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenValidator("other", "capd-api").GenerateToken(11, "", time.Hour)
	require.NoError(t, err)
	_, err = v.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
