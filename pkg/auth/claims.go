package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/grocery-backend/pkg/enums"
)

// AccessTokenPayload captures the identity carried by an access token.
type AccessTokenPayload struct {
	Email string
	Role  enums.Role
	JTI   string
}

// AccessTokenClaims is the typed JWT presented by clients. Tokens are issued
// by the identity service; this backend only verifies them.
type AccessTokenClaims struct {
	Email string     `json:"email"`
	Role  enums.Role `json:"role"`
	jwt.RegisteredClaims
}
