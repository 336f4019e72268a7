// Package totpx wraps time-based one-time password generation and
// verification with the parameters this service shares with client-side
// authenticator apps: base32 secret, 30 second step, 6 decimal digits,
// HMAC-SHA1 derivation. Any deviation breaks interoperability silently.
package totpx

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the TOTP time step in seconds.
	Period = 30

	// Skew is the number of adjacent steps accepted either side of now.
	// Exactly one: the current step plus the step before and after
	// (±30s clock drift tolerance). Widening this loosens the forgery
	// bound, so it stays at 1.
	Skew = 1
)

var validateOpts = totp.ValidateOpts{
	Period:    Period,
	Skew:      Skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateSecret creates a fresh base32 TOTP secret for enrollment, labelled
// with the issuer and account for authenticator apps. Returns the secret and
// the otpauth:// provisioning URL.
func GenerateSecret(issuer, account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyAt reports whether code matches the expected derivation of secret at
// the given time or either adjacent step. A malformed secret verifies as
// false rather than erroring: the caller treats both identically.
func VerifyAt(secret, code string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), validateOpts)
	if err != nil {
		return false
	}
	return ok
}

// Verify is VerifyAt against the wall clock.
func Verify(secret, code string) bool {
	return VerifyAt(secret, code, time.Now())
}

// CodeAt derives the code for a secret at a given time. Used by tests and
// tooling that play the client side of the exchange.
func CodeAt(secret string, now time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, now.UTC(), validateOpts)
}
