package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Cheap parameters, the defaults take a while per hash
func testArgon() *ArgonHash {
	a := New()
	a.Memory = 1024
	a.Iterations = 1
	return a
}

func TestArgon_RoundTrip(t *testing.T) {
	a := testArgon()

	hash, err := a.GenerateFromPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=2$"))

	ok, err := a.VerifyPasswd("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.VerifyPasswd("wrong horse battery", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon_SaltIsPerHash(t *testing.T) {
	a := testArgon()

	h1, err := a.GenerateFromPassword("same password")
	require.NoError(t, err)
	h2, err := a.GenerateFromPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestArgon_StoredParametersWin(t *testing.T) {
	old := testArgon()
	hash, err := old.GenerateFromPassword("password123")
	require.NoError(t, err)

	ok, err := New().VerifyPasswd("password123", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArgon_MalformedHashes(t *testing.T) {
	a := testArgon()

	_, err := a.VerifyPasswd("x", "plaintext")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = a.VerifyPasswd("x", "$argon2i$v=19$m=1024,t=1,p=2$c2FsdA$aGFzaA")
	assert.ErrorIs(t, err, ErrIncompatibleVariant)

	_, err = a.VerifyPasswd("x", "$argon2id$v=16$m=1024,t=1,p=2$c2FsdA$aGFzaA")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)

	_, err = a.VerifyPasswd("x", "$argon2id$v=19$m=1024,t=1,p=2$!!!$aGFzaA")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
