package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast
var testParams = Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashToken_DeterministicHex(t *testing.T) {
	a := HashToken("token-abc")
	b := HashToken("token-abc")
	c := HashToken("token-abd")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "token-abc")
}

func TestHashFingerprint_KeyOrderIndependent(t *testing.T) {
	h1, err := HashFingerprint(map[string]any{"userAgent": "firefox", "screen": "1920x1080", "tz": -120.0})
	require.NoError(t, err)
	h2, err := HashFingerprint(map[string]any{"tz": -120.0, "screen": "1920x1080", "userAgent": "firefox"})
	require.NoError(t, err)
	h3, err := HashFingerprint(map[string]any{"userAgent": "chrome", "screen": "1920x1080", "tz": -120.0})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestHashFingerprint_EmptyMeansUnbound(t *testing.T) {
	h, err := HashFingerprint(nil)
	require.NoError(t, err)
	assert.Equal(t, "", h)
}

func TestEqualHashes(t *testing.T) {
	assert.True(t, EqualHashes("abc", "abc"))
	assert.False(t, EqualHashes("abc", "abd"))
	assert.False(t, EqualHashes("abc", ""))
}

func TestHashAndVerifyPassword(t *testing.T) {
	encoded, err := HashPassword("correct horse", testParams)
	require.NoError(t, err)
	assert.Contains(t, encoded, "argon2id$v=19$m=8192,t=1,p=1$")

	ok, err := VerifyPassword("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("battery staple", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_EmptyInputs(t *testing.T) {
	ok, err := VerifyPassword("", "argon2id$whatever")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyPassword("pw", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"plain",
		"bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := VerifyPassword("pw", encoded)
		assert.Error(t, err, encoded)
	}
}
