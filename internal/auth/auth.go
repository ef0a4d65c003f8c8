package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated identity derived from a verified bearer token.
// It is reconstructed per request and never persisted.
type Principal struct {
	UserID string
	Email  string
}

// Verifier validates bearer tokens against a shared signing secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for HS256-signed tokens.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses an Authorization header value of the form "Bearer <token>" and
// returns the principal it asserts. It returns nil for any malformed header,
// bad signature, expired token, or missing claims; it never returns an error
// to the caller — the HTTP boundary only needs the yes/no answer.
func (v *Verifier) Verify(rawHeaderValue string) *Principal {
	token, err := extractBearer(rawHeaderValue)
	if err != nil {
		return nil
	}
	return v.VerifyToken(token)
}

// VerifyToken validates a raw token string without the Bearer prefix.
func (v *Verifier) VerifyToken(raw string) *Principal {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return nil
	}

	return &Principal{
		UserID: sub,
		Email:  strings.ToLower(email),
	}
}

// Issue mints a signed token asserting the given identity, valid for ttl.
func (v *Verifier) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	return token.SignedString(v.secret)
}

// extractBearer pulls the token out of an Authorization header value.
func extractBearer(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}
