package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "grocery"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	token, err := MintAccessToken(testJWT, now, 30*time.Minute, AccessTokenPayload{
		Email: " Dana@Example.com ",
		Role:  enums.RoleStaff,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", claims.Email)
	assert.Equal(t, enums.RoleStaff, claims.Role)
	assert.Equal(t, "grocery", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{
		Email: "dana@example.com",
		Role:  enums.RoleCustomer,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseAccessTokenRejectsWrongIssuerAndSecret(t *testing.T) {
	token, err := MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{Email: "a@b.c", Role: enums.RoleCustomer})
	require.NoError(t, err)

	_, err = ParseAccessToken(config.JWTConfig{Secret: "secret", Issuer: "other"}, token)
	assert.Error(t, err)
	_, err = ParseAccessToken(config.JWTConfig{Secret: "nope", Issuer: "grocery"}, token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsMissingRole(t *testing.T) {
	claims := AccessTokenClaims{
		Email: "a@b.c",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testJWT.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testJWT, token)
	assert.ErrorContains(t, err, "invalid role")
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{}, time.Now(), time.Hour, AccessTokenPayload{Email: "a@b.c", Role: enums.RoleAdmin})
	assert.Error(t, err)
	_, err = MintAccessToken(testJWT, time.Now(), time.Hour, AccessTokenPayload{Role: enums.RoleAdmin})
	assert.Error(t, err)
	_, err = MintAccessToken(testJWT, time.Now(), 0, AccessTokenPayload{Email: "a@b.c", Role: enums.RoleAdmin})
	assert.Error(t, err)
}
