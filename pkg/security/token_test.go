package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_IssueAndParse(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)

	tok, exp, err := ti.Issue("u1", "Ada", "ada@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := ti.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, "ada@example.com", c.Email)
}

func TestToken_Expired(t *testing.T) {
	ti := NewTokenIssuer("secret", time.Hour)
	ti.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, _, err := ti.Issue("u1", "Ada", "ada@example.com")
	require.NoError(t, err)

	ti.now = time.Now
	_, err = ti.Parse(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestToken_WrongSecret(t *testing.T) {
	tok, _, err := NewTokenIssuer("secret", time.Hour).Issue("u1", "Ada", "ada@example.com")
	require.NoError(t, err)

	_, err = NewTokenIssuer("other", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestToken_Malformed(t *testing.T) {
	_, err := NewTokenIssuer("secret", time.Hour).Parse("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestToken_RejectsOtherAlgorithms(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Parse(s)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestToken_RequiresExpiry(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "u1"})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Parse(s)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
