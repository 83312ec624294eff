package auth

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestIssueAndParse(t *testing.T) {
	raw, err := IssueToken(testSecret, 42, "ada", time.Hour)
	require.NoError(t, err)

	id, err := ParseToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	_, err = ParseToken("another-secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, err := IssueToken("", 1, "ada", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestParseToken_Rejects(t *testing.T) {
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.Itoa(7),
			"iss": Issuer,
			"aud": Audience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		want   error
	}{
		{"expired", func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }, ErrInvalidToken},
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "someone-else" }, ErrInvalidClaims},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "someone-else" }, ErrInvalidClaims},
		{"missing subject", func(c jwt.MapClaims) { delete(c, "sub") }, ErrInvalidClaims},
		{"non-numeric subject", func(c jwt.MapClaims) { c["sub"] = "ada" }, ErrInvalidClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := valid()
			tt.mutate(claims)
			raw := signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), claims)
			_, err := ParseToken(testSecret, raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unsigned", func(t *testing.T) {
		raw := signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())
		_, err := ParseToken(testSecret, raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
