package totpx_test

import (
	"testing"
	"time"

	"github.com/storefrontlabs/authd/pkg/totpx"
	"github.com/stretchr/testify/require"
)

// Fixed secret and timestamp so the accepted window is deterministic.
const testSecret = "IFTXE3SPOEYVURT2MRYGI52TKJ4HC3KH"

var at = time.Date(2024, 5, 14, 10, 30, 15, 0, time.UTC)

func TestVerifyAtAcceptsAdjacentSteps(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"current step", 0, true},
		{"previous step", -30 * time.Second, true},
		{"next step", 30 * time.Second, true},
		{"two steps behind", -60 * time.Second, false},
		{"two steps ahead", 60 * time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Code generated at a shifted clock, verified at the fixed one.
			code, err := totpx.CodeAt(testSecret, at.Add(tc.offset))
			require.NoError(t, err)

			require.Equal(t, tc.want, totpx.VerifyAt(testSecret, code, at))
		})
	}
}

func TestVerifyAtRejectsWrongSecret(t *testing.T) {
	code, err := totpx.CodeAt("OTHER2SECRET2OTHER2SECRET2OTHER2", at)
	require.NoError(t, err)

	require.False(t, totpx.VerifyAt(testSecret, code, at))
}

func TestVerifyAtRejectsMalformedInput(t *testing.T) {
	require.False(t, totpx.VerifyAt(testSecret, "000000", at))
	require.False(t, totpx.VerifyAt(testSecret, "not-a-code", at))
	require.False(t, totpx.VerifyAt("not base32!!", "123456", at))
}

func TestGenerateSecret(t *testing.T) {
	secret, url, err := totpx.GenerateSecret("authd", "jim@x")
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.Contains(t, url, "otpauth://totp/")

	// A freshly generated secret round-trips through derive and verify.
	code, err := totpx.CodeAt(secret, at)
	require.NoError(t, err)
	require.True(t, totpx.VerifyAt(secret, code, at))
}
