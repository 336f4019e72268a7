package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefrontlabs/authd/internal/authd/domain"
	"github.com/storefrontlabs/authd/internal/authd/store"
	"github.com/storefrontlabs/authd/pkg/jwtx"
	"github.com/storefrontlabs/authd/pkg/slogx"
	"github.com/storefrontlabs/authd/pkg/totpx"
)

// LoginService drives the login state machine: password validation, then
// either a direct access token (second factor disabled) or a
// second_factor_pending token that must be exchanged via VerifySecondFactor.
type LoginService struct {
	Auth       *Authenticator
	Store      store.Store
	Signer     *jwtx.HS256Signer
	Verifier   *jwtx.HS256Verifier
	Issuer     string
	AccessTTL  time.Duration
	PendingTTL time.Duration
}

// LoginResult is the outcome of a successful password check. Exactly one of
// Token or TmpToken is set, depending on whether a second factor is owed.
type LoginResult struct {
	SecondFactorRequired bool

	// Token is the access token, set only on the direct path.
	Token string

	// TmpToken is the second_factor_pending token, set only when the user
	// has TOTP enabled.
	TmpToken string

	User domain.User
}

// Login validates the credentials and advances the state machine one step.
//
// The branch is decided solely by the presence of a TOTP secret on the
// resolved record: absent means Authenticated (access token), present means
// AwaitingSecondFactor (pending token). Credential failures are identical
// for unknown email and wrong password.
func (s *LoginService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.Auth.Validate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if !user.TOTPEnabled() {
		token, err := s.signAccess(user, now)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Token: token, User: user}, nil
	}

	// Password is good but a code is still owed. The pending token carries
	// only the user id; the secret is re-derived from the store at verify
	// time, never from the client.
	tmp, err := s.Signer.Sign(jwtx.NewSecondFactorPendingClaims(user.ID, s.Issuer, s.PendingTTL, now))
	if err != nil {
		return nil, fmt.Errorf("sign pending token: %w", err)
	}

	return &LoginResult{SecondFactorRequired: true, TmpToken: tmp, User: user}, nil
}

// VerifySecondFactor exchanges a pending token plus a valid TOTP code for an
// access token.
//
// The user id comes from inside the signed token, so a pending token for
// user A can never be redeemed with a code for user B's secret: the secret
// checked is always the one stored for the embedded id. The same tmpToken
// may be retried with a fresh code; it carries no consumed flag.
func (s *LoginService) VerifySecondFactor(ctx context.Context, tmpToken, code string) (string, domain.User, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.Verifier.VerifyType(tmpToken, jwtx.TypeSecondFactorPending)
	if err != nil {
		log.Warn("second factor token rejected", "err", err)
		return "", domain.User{}, ErrInvalidToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A well-signed pending token referencing a missing record is a
			// store inconsistency, not bad input.
			log.Error("pending token references unknown user", "user_id", claims.Subject)
			return "", domain.User{}, ErrDataIntegrity
		}
		return "", domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !user.TOTPEnabled() {
		log.Error("second factor path entered without a stored secret", "user_id", user.ID)
		return "", domain.User{}, ErrDataIntegrity
	}

	if !totpx.Verify(*user.TOTPSecret, code) {
		return "", domain.User{}, ErrInvalidTOTPCode
	}

	token, err := s.signAccess(user, time.Now().UTC())
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

func (s *LoginService) signAccess(u domain.User, now time.Time) (string, error) {
	token, err := s.Signer.Sign(jwtx.NewAccessClaims(u.ID, u.Email, u.Role, s.Issuer, s.AccessTTL, now))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}
