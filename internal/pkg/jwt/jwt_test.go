package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	for _, accountID := range []int64{1, 123, 9223372036854775807} {
		token, err := GenerateToken(accountID, testSecret, 24)
		require.NoError(t, err)

		claims, err := ParseToken(token, testSecret)
		require.NoError(t, err)
		assert.Equal(t, accountID, claims.AccountID)
	}
}

func TestGenerateToken_Claims(t *testing.T) {
	before := time.Now().Add(-time.Second)
	token, err := GenerateToken(42, testSecret, 168)
	require.NoError(t, err)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(168*time.Hour), claims.ExpiresAt.Time, time.Minute)
	assert.True(t, claims.IssuedAt.After(before))
	assert.Equal(t, claims.IssuedAt.Unix(), claims.NotBefore.Unix())

	other, err := GenerateToken(43, testSecret, 168)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestParseToken_Errors(t *testing.T) {
	now := time.Now()
	live := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  error
	}{
		{
			name:  "empty",
			token: func(*testing.T) string { return "" },
			want:  ErrInvalidToken,
		},
		{
			name:  "not a jwt",
			token: func(*testing.T) string { return "invalid.token.string" },
			want:  ErrInvalidToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte("wrong-secret"), Claims{AccountID: 1, RegisteredClaims: live})
			},
			want: ErrInvalidToken,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
					AccountID: 1,
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
						IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
					},
				})
			},
			want: ErrExpiredToken,
		},
		{
			name: "not yet valid",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodHS256, []byte(testSecret), Claims{
					AccountID: 1,
					RegisteredClaims: jwt.RegisteredClaims{
						ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Hour)),
						NotBefore: jwt.NewNumericDate(now.Add(time.Hour)),
					},
				})
			},
			want: ErrInvalidToken,
		},
		{
			name: "alg none",
			token: func(t *testing.T) string {
				return sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, Claims{AccountID: 1, RegisteredClaims: live})
			},
			want: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(tt.token(t), testSecret)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, claims)
		})
	}
}
