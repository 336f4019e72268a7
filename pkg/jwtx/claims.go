package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens.
const DefaultAccessTokenTTL = 6 * time.Hour

// DefaultPendingTokenTTL is the default lifetime for second-factor-pending
// tokens. Short-lived: it only needs to survive the gap between password
// entry and code entry.
const DefaultPendingTokenTTL = 5 * time.Minute

// TokenType tags a claim set with its single permitted purpose. Types are
// mutually exclusive: a token of one type must never be accepted where
// another type is required.
type TokenType string

const (
	// TypeAccess is the fully authenticated bearer credential.
	TypeAccess TokenType = "access"

	// TypeSecondFactorPending asserts "password already validated; second
	// factor still pending" for the subject user.
	TypeSecondFactorPending TokenType = "second_factor_pending"

	// TypeTOTPSetupSecret authorises binding the embedded candidate secret
	// to the subject's account during enrollment.
	TypeTOTPSetupSecret TokenType = "totp_setup_secret"
)

// Claims is the single claim shape signed by this service. Every token
// carries a type tag from the closed TokenType set; the optional fields are
// populated per type and ignored otherwise.
type Claims struct {
	jwt.RegisteredClaims

	// Type is the purpose tag. Always set.
	Type TokenType `json:"typ"`

	// Email and Role travel on access tokens for display and authorisation
	// decisions downstream.
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`

	// TOTPSecret is the candidate secret carried only by totp_setup_secret
	// tokens. Never present on access or pending tokens.
	TOTPSecret string `json:"secret,omitempty"`
}

// NewAccessClaims builds the claims for a fully authenticated bearer token.
func NewAccessClaims(subject, email, role, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, now, ttl),
		Type:             TypeAccess,
		Email:            email,
		Role:             role,
	}
}

// NewSecondFactorPendingClaims builds the claims for the intermediate token
// returned when a password checks out but a TOTP code is still owed.
func NewSecondFactorPendingClaims(subject, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, now, ttl),
		Type:             TypeSecondFactorPending,
	}
}

// NewSetupSecretClaims builds the claims for a setup token binding a
// candidate TOTP secret to the subject. No expiry is set: the token's useful
// life ends when the setup exchange consumes it.
func NewSetupSecretClaims(subject, secret, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       NewJTI(),
		},
		Type:       TypeTOTPSetupSecret,
		TOTPSecret: secret,
	}
}

func registered(subject, issuer string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateType checks the purpose tag against the type a call site requires.
func (c *Claims) ValidateType(expected TokenType) error {
	if c.Type != expected {
		return ErrTokenType
	}
	return nil
}
