// Package identity maps inbound identity-provider bearer tokens to local
// platform users. The provider issues HS256 session tokens carrying the
// stable subject and email; this package verifies them and keeps the local
// user row in sync.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed, expired or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid identity token")
)

// Identity is the resolved external identity of a caller.
type Identity struct {
	ExternalID string
	Email      string
}

// Resolver maps a bearer credential to a stable external identity.
type Resolver interface {
	Resolve(token string) (Identity, error)
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenResolver verifies identity-provider session tokens signed with a
// shared HS256 secret.
type TokenResolver struct {
	secret []byte
	issuer string
}

// NewTokenResolver creates a resolver. An empty issuer disables the iss check.
func NewTokenResolver(secret, issuer string) *TokenResolver {
	return &TokenResolver{secret: []byte(secret), issuer: issuer}
}

// Resolve verifies the token and extracts the subject and email.
func (r *TokenResolver) Resolve(tokenString string) (Identity, error) {
	var opts []jwt.ParserOption
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return r.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{ExternalID: claims.Subject, Email: claims.Email}, nil
}
