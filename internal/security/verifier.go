package security

import (
	"crypto"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed or invalid.
var ErrInvalidToken = errors.New("invalid token")

// Verifier validates caller access tokens (RS256 or ES256) issued by the
// external identity service.
type Verifier struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
}

// NewVerifier parses publicKeyPEM (inline PEM or file path) and returns a
// Verifier that checks signature, exp, iss, and aud.
func NewVerifier(publicKeyPEM, issuer, audience string) (*Verifier, error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Verifier{publicKey: pub, issuer: issuer, audience: audience}, nil
}

// ValidateAccess parses and validates the access token. Returns the caller's
// user ID (the sub claim).
func (v *Verifier) ValidateAccess(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return v.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return v.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != v.issuer {
		return "", ErrInvalidToken
	}
	audOK := false
	for _, a := range claims.Audience {
		if a == v.audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
