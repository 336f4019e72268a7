package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefrontlabs/authd/internal/authd/store"
	"github.com/storefrontlabs/authd/pkg/cryptox"
	"github.com/storefrontlabs/authd/pkg/jwtx"
	"github.com/storefrontlabs/authd/pkg/slogx"
	"github.com/storefrontlabs/authd/pkg/totpx"
)

// TwoFactorService handles enrollment: binding a TOTP secret to an already
// authenticated account, reporting enrollment state, and disabling.
type TwoFactorService struct {
	Auth     *Authenticator
	Store    store.Store
	Signer   *jwtx.HS256Signer
	Verifier *jwtx.HS256Verifier
	Issuer   string
}

// StatusResult is the UI-facing enrollment state for an authenticated user.
// When the second factor is disabled it carries a fresh candidate secret and
// a server-minted setup token binding that secret, which together bootstrap
// the setup exchange.
type StatusResult struct {
	Enabled bool
	Email   string

	// Enrollment bootstrap, set only when Enabled is false.
	Secret     string
	SetupToken string
}

// Status reports the enrollment state derived purely from whether the
// resolved user has a persisted secret. For users without one it also mints
// the enrollment bootstrap material; the secret is not trusted until Setup
// proves possession with a working code.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (*StatusResult, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.TOTPEnabled() {
		return &StatusResult{Enabled: true, Email: user.Email}, nil
	}

	secret, _, err := totpx.GenerateSecret(s.Issuer, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	setupToken, err := s.Signer.Sign(jwtx.NewSetupSecretClaims(user.ID, secret, s.Issuer, time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("sign setup token: %w", err)
	}

	return &StatusResult{
		Email:      user.Email,
		Secret:     secret,
		SetupToken: setupToken,
	}, nil
}

// Setup binds the candidate secret carried by setupToken to the user's
// record. All checks must pass together:
//
//  1. the plaintext password matches the stored hash (a hijacked but still
//     valid session cannot enroll its own authenticator),
//  2. setupToken is well signed, tagged totp_setup_secret, and bound to this
//     user,
//  3. initialCode matches the candidate secret, proving the caller's
//     authenticator was actually seeded with it.
//
// Any single failed check aborts the whole operation with no partial write.
func (s *TwoFactorService) Setup(ctx context.Context, userID, password, setupToken, initialCode string) error {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if user.TOTPEnabled() {
		return ErrAlreadyEnrolled
	}

	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return ErrInvalidCredentials
	}

	claims, err := s.Verifier.VerifyType(setupToken, jwtx.TypeTOTPSetupSecret)
	if err != nil {
		log.Warn("setup token rejected", "user_id", userID, "err", err)
		return ErrInvalidToken
	}
	if claims.Subject != "" && claims.Subject != userID {
		// A setup token minted for one account cannot seed another.
		log.Warn("setup token subject mismatch", "user_id", userID, "token_subject", claims.Subject)
		return ErrInvalidToken
	}
	if claims.TOTPSecret == "" {
		return ErrInvalidToken
	}

	if !totpx.Verify(claims.TOTPSecret, initialCode) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Users().UpdateTOTPSecret(ctx, userID, claims.TOTPSecret); err != nil {
		return fmt.Errorf("persist secret: %w", err)
	}

	log.Info("second factor enrolled", "user_id", userID)
	return nil
}

// Disable removes the bound secret after the password is re-proven, turning
// the second factor off for future logins.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	if !user.TOTPEnabled() {
		return ErrNotEnrolled
	}

	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return ErrInvalidCredentials
	}

	if err := s.Store.Users().ClearTOTPSecret(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDataIntegrity
		}
		return fmt.Errorf("clear secret: %w", err)
	}

	return nil
}
