package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/storefrontlabs/authd/internal/authd/domain"
	authhttp "github.com/storefrontlabs/authd/internal/authd/http"
	"github.com/storefrontlabs/authd/internal/authd/service"
	"github.com/storefrontlabs/authd/internal/authd/store"
	"github.com/storefrontlabs/authd/internal/authd/store/drivers/sqlite"
	"github.com/storefrontlabs/authd/pkg/authapi"
	"github.com/storefrontlabs/authd/pkg/cryptox"
	"github.com/storefrontlabs/authd/pkg/idx"
	"github.com/storefrontlabs/authd/pkg/jwtx"
	"github.com/storefrontlabs/authd/pkg/totpx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "authd-test"
	testPassword = "correct horse battery staple"
	testSecret   = "IFTXE3SPOEYVURT2MRYGI52TKJ4HC3KH"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "authd-http-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	code := m.Run()
	os.Remove(pepperPath)
	os.Exit(code)
}

type env struct {
	server *httptest.Server
	store  store.Store
	signer *jwtx.HS256Signer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	secret := []byte("0123456789abcdef0123456789abcdef")
	signer, err := jwtx.NewSignerHS256(secret)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierHS256(secret, testIssuer)

	auth := &service.Authenticator{Store: st}
	login := &service.LoginService{
		Auth:       auth,
		Store:      st,
		Signer:     signer,
		Verifier:   verifier,
		Issuer:     testIssuer,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		PendingTTL: jwtx.DefaultPendingTokenTTL,
	}
	twofa := &service.TwoFactorService{
		Auth:     auth,
		Store:    st,
		Signer:   signer,
		Verifier: verifier,
		Issuer:   testIssuer,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := authhttp.NewRouter(verifier, "test", st, logger)
	router.LoginService = login
	router.TwoFactorService = twofa
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{server: srv, store: st, signer: signer}
}

func (e *env) seedUser(t *testing.T, email, secret string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if secret != "" {
		u.TOTPSecret = &secret
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *env) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLoginEndpoint(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice@example.com", "")
	e.seedUser(t, "bob@example.com", testSecret)

	t.Run("direct login", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/rest/user/login", "", authapi.LoginRequest{
			Email:    "alice@example.com",
			Password: testPassword,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[authapi.LoginResponse](t, resp)
		require.NotEmpty(t, body.Authentication.Token)
		require.Equal(t, "alice@example.com", body.Authentication.Email)
	})

	t.Run("second factor owed", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/rest/user/login", "", authapi.LoginRequest{
			Email:    "bob@example.com",
			Password: testPassword,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[authapi.SecondFactorResponse](t, resp)
		require.Equal(t, authapi.StatusTOTPTokenRequired, body.Status)
		require.NotEmpty(t, body.Data.TmpToken)
	})

	t.Run("bad credentials", func(t *testing.T) {
		for _, req := range []authapi.LoginRequest{
			{Email: "nobody@example.com", Password: testPassword},
			{Email: "alice@example.com", Password: "wrong"},
		} {
			resp := e.do(t, http.MethodPost, "/rest/user/login", "", req)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			body := decode[map[string]string](t, resp)
			require.Equal(t, authapi.ErrorCodeInvalidCredentials, body["error"])
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, e.server.URL+"/rest/user/login", bytes.NewBufferString("{"))
		require.NoError(t, err)
		resp, err := e.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestVerifyEndpoint(t *testing.T) {
	e := newEnv(t)
	u := e.seedUser(t, "bob@example.com", testSecret)

	loginResp := e.do(t, http.MethodPost, "/rest/user/login", "", authapi.LoginRequest{
		Email:    "bob@example.com",
		Password: testPassword,
	})
	tmp := decode[authapi.SecondFactorResponse](t, loginResp).Data.TmpToken

	t.Run("valid code", func(t *testing.T) {
		code, err := totpx.CodeAt(testSecret, time.Now())
		require.NoError(t, err)

		resp := e.do(t, http.MethodPost, "/rest/2fa/verify", "", authapi.VerifyRequest{
			TmpToken: tmp,
			TOTPCode: code,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[authapi.LoginResponse](t, resp)
		require.NotEmpty(t, body.Authentication.Token)
		require.Equal(t, "bob@example.com", body.Authentication.Email)
	})

	t.Run("wrong code", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/rest/2fa/verify", "", authapi.VerifyRequest{
			TmpToken: tmp,
			TOTPCode: "000000",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decode[map[string]string](t, resp)
		require.Equal(t, authapi.ErrorCodeInvalidTOTPCode, body["error"])
	})

	t.Run("access token rejected as tmp token", func(t *testing.T) {
		access, err := e.signer.Sign(jwtx.NewAccessClaims(u.ID, u.Email, u.Role, testIssuer, time.Hour, time.Now().UTC()))
		require.NoError(t, err)
		code, err := totpx.CodeAt(testSecret, time.Now())
		require.NoError(t, err)

		resp := e.do(t, http.MethodPost, "/rest/2fa/verify", "", authapi.VerifyRequest{
			TmpToken: access,
			TOTPCode: code,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decode[map[string]string](t, resp)
		require.Equal(t, authapi.ErrorCodeInvalidToken, body["error"])
	})

	t.Run("integrity fault surfaces as 500", func(t *testing.T) {
		tmp, err := e.signer.Sign(jwtx.NewSecondFactorPendingClaims("01J0000000000000000000000X", testIssuer, time.Minute, time.Now().UTC()))
		require.NoError(t, err)
		code, err := totpx.CodeAt(testSecret, time.Now())
		require.NoError(t, err)

		resp := e.do(t, http.MethodPost, "/rest/2fa/verify", "", authapi.VerifyRequest{
			TmpToken: tmp,
			TOTPCode: code,
		})
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestStatusAndSetupEndpoints(t *testing.T) {
	e := newEnv(t)
	e.seedUser(t, "alice@example.com", "")

	loginResp := e.do(t, http.MethodPost, "/rest/user/login", "", authapi.LoginRequest{
		Email:    "alice@example.com",
		Password: testPassword,
	})
	access := decode[authapi.LoginResponse](t, loginResp).Authentication.Token

	t.Run("status without bearer", func(t *testing.T) {
		resp := e.do(t, http.MethodGet, "/rest/2fa/status", "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	var status authapi.StatusResponse
	t.Run("status mints bootstrap while disabled", func(t *testing.T) {
		resp := e.do(t, http.MethodGet, "/rest/2fa/status", access, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		status = decode[authapi.StatusResponse](t, resp)
		require.False(t, status.TOTPEnabled)
		require.Equal(t, "alice@example.com", status.Email)
		require.NotEmpty(t, status.Secret)
		require.NotEmpty(t, status.SetupToken)
	})

	t.Run("setup rejects bad initial code", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/rest/2fa/setup", access, authapi.SetupRequest{
			Password:     testPassword,
			SetupToken:   status.SetupToken,
			InitialToken: "000000",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("setup enrolls", func(t *testing.T) {
		code, err := totpx.CodeAt(status.Secret, time.Now())
		require.NoError(t, err)

		resp := e.do(t, http.MethodPost, "/rest/2fa/setup", access, authapi.SetupRequest{
			Password:     testPassword,
			SetupToken:   status.SetupToken,
			InitialToken: code,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("status flips to enabled", func(t *testing.T) {
		resp := e.do(t, http.MethodGet, "/rest/2fa/status", access, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		st := decode[authapi.StatusResponse](t, resp)
		require.True(t, st.TOTPEnabled)
		require.Empty(t, st.Secret)
		require.Empty(t, st.SetupToken)
	})

	t.Run("second setup is rejected", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/rest/2fa/setup", access, authapi.SetupRequest{
			Password:     testPassword,
			SetupToken:   status.SetupToken,
			InitialToken: "000000",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decode[map[string]string](t, resp)
		require.Equal(t, authapi.ErrorCodeAlreadyEnrolled, body["error"])
	})

	t.Run("disable", func(t *testing.T) {
		resp := e.do(t, http.MethodDelete, "/rest/2fa/disable", access, authapi.DisableRequest{
			Password: testPassword,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = e.do(t, http.MethodDelete, "/rest/2fa/disable", access, authapi.DisableRequest{
			Password: testPassword,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthenticatedEndpointsRejectNonAccessTokens(t *testing.T) {
	e := newEnv(t)
	u := e.seedUser(t, "bob@example.com", testSecret)

	pending, err := e.signer.Sign(jwtx.NewSecondFactorPendingClaims(u.ID, testIssuer, time.Minute, time.Now().UTC()))
	require.NoError(t, err)
	setup, err := e.signer.Sign(jwtx.NewSetupSecretClaims(u.ID, testSecret, testIssuer, time.Now().UTC()))
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		token string
	}{
		{"pending token", pending},
		{"setup token", setup},
		{"garbage", "not.a.token"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp := e.do(t, http.MethodGet, "/rest/2fa/status", tc.token, nil)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode[authapi.HealthResponse](t, resp).Status)

	resp = e.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[authapi.HealthResponse](t, resp)
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "ok", body.Checks.Database)
}
