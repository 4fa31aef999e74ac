package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/chachabrian/wheelster-backend/internal/models"
)

func testUser() *models.User {
	return &models.User{Model: gorm.Model{ID: 7}, Email: "asha@example.com", Role: models.RoleDriver}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(testUser(), "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, models.RoleDriver, claims.Role)
	assert.Equal(t, "7", claims.Subject)
}

func TestValidateTokenRejects(t *testing.T) {
	good, err := GenerateToken(testUser(), "s3cret", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(testUser(), "s3cret", -time.Minute)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 7, Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}})
	roleless, err := noRole.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tc := range map[string]struct{ token, secret string }{
		"wrong secret": {good, "other"},
		"expired":      {expired, "s3cret"},
		"alg none":     {unsigned, "s3cret"},
		"no role":      {roleless, "s3cret"},
		"garbage":      {"not.a.token", "s3cret"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateToken(tc.token, tc.secret)
			assert.Error(t, err)
		})
	}
}

func TestGenerateTokenNeedsSecret(t *testing.T) {
	_, err := GenerateToken(testUser(), "", time.Hour)
	assert.Error(t, err)
}
