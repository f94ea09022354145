package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents the JWT claims issued by the identity provider.
// Subject carries the user ID every category operation is scoped to.
type AuthClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
