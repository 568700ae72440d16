package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "image-vault"

var (
	// ErrAccessTokenInvalid indicates the access token is malformed, tampered with or unsigned.
	ErrAccessTokenInvalid = errors.New("access token invalid")
	// ErrAccessTokenExpired indicates the access token was valid but is past its expiry.
	ErrAccessTokenExpired = errors.New("access token expired")
)

// TokenSigner issues and validates HS256 access tokens carrying the user id as subject.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner returns a signer for the provided secret.
func NewTokenSigner(secret string) (*TokenSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: token secret must be at least 16 characters")
	}
	return &TokenSigner{secret: []byte(secret)}, nil
}

// Sign creates an access token for userID that expires at expiresAt.
func (s *TokenSigner) Sign(userID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign access token: %w", err)
	}
	return signed, nil
}

// Verify validates an access token and returns its subject.
func (s *TokenSigner) Verify(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrAccessTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrAccessTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", ErrAccessTokenInvalid
	}
	return claims.Subject, nil
}
