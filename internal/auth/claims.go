package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// The dashboard is single-operator: OperatorID identifies which shared
// key holder a token was issued to.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string    `json:"operator_id"`
	TokenType  TokenType `json:"token_type"`
}
