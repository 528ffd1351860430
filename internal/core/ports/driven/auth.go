package driven

import "github.com/custodia-labs/sercha-retriever/internal/core/domain"

// TokenVerifier validates operator bearer tokens.
// Tokens are issued out of band by the binary's token mode.
type TokenVerifier interface {
	// ParseToken returns domain.ErrTokenExpired for expired tokens
	ParseToken(token string) (*domain.TokenClaims, error)
}
