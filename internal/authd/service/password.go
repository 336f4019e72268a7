package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/storefrontlabs/authd/internal/authd/domain"
	"github.com/storefrontlabs/authd/internal/authd/store"
	"github.com/storefrontlabs/authd/pkg/cryptox"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	// Callers must surface it identically for either cause so account
	// existence cannot be probed.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrInvalidToken is returned for malformed, forged, or wrong-type
	// tokens. Treated as a security event, never auto-recovered.
	ErrInvalidToken = errors.New("invalid_token")

	// ErrInvalidTOTPCode rejects a one-time code that does not match the
	// expected derivation within the tolerance window.
	ErrInvalidTOTPCode = errors.New("invalid_totp_code")

	// ErrAlreadyEnrolled rejects setup when a secret is already bound.
	ErrAlreadyEnrolled = errors.New("totp_already_enrolled")

	// ErrNotEnrolled rejects disable when no secret is bound.
	ErrNotEnrolled = errors.New("totp_not_enrolled")

	// ErrDataIntegrity flags a store/code inconsistency, e.g. the
	// second-factor path entered for a user without a secret. Surfaced as a
	// server fault, never downgraded to an authentication failure.
	ErrDataIntegrity = errors.New("data_integrity_fault")
)

// Authenticator validates email/password pairs against the user store.
type Authenticator struct {
	Store store.Store
}

// Validate looks up the user by email and compares the password against the
// stored Argon2id hash. Unknown email and wrong password both come back as
// ErrInvalidCredentials.
func (a *Authenticator) Validate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	user, err := a.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	return user, nil
}
