package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signSession(t *testing.T, secret, subject, email, issuer string, expires time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"exp":   expires.Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestResolveValidToken(t *testing.T) {
	r := NewTokenResolver("shared-secret", "")
	token := signSession(t, "shared-secret", "ext_42", "dev@example.com", "", time.Now().Add(time.Hour))

	ident, err := r.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ident.ExternalID != "ext_42" || ident.Email != "dev@example.com" {
		t.Errorf("identity = %+v", ident)
	}
}

func TestResolveRejects(t *testing.T) {
	r := NewTokenResolver("shared-secret", "https://auth.akvora.example")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signSession(t, "other-secret", "ext_1", "a@b.c", "https://auth.akvora.example", time.Now().Add(time.Hour))},
		{"expired", signSession(t, "shared-secret", "ext_1", "a@b.c", "https://auth.akvora.example", time.Now().Add(-time.Hour))},
		{"wrong issuer", signSession(t, "shared-secret", "ext_1", "a@b.c", "https://evil.example", time.Now().Add(time.Hour))},
		{"missing subject", signSession(t, "shared-secret", "", "a@b.c", "https://auth.akvora.example", time.Now().Add(time.Hour))},
		{"garbage", "not-a-token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := r.Resolve(tc.token); err == nil {
				t.Error("Resolve succeeded, want error")
			}
		})
	}
}
