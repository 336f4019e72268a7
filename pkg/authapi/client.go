package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a Go client for the authentication service. Unauthenticated
// operations hang off the Client itself; Login and VerifySecondFactor return
// a Session for the authenticated endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new auth service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// LoginOutcome is the decoded result of a login attempt. Exactly one of
// Session or TmpToken is set.
type LoginOutcome struct {
	// Session is ready to use when no second factor was owed.
	Session *Session

	// TmpToken must be redeemed via VerifySecondFactor when the account has
	// TOTP enabled.
	TmpToken string
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginOutcome, error) {
	resp, err := c.postJSON(ctx, "/rest/user/login", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	// The two success shapes share no fields, so decode into a superset.
	var body struct {
		Authentication *Authentication           `json:"authentication"`
		Status         string                    `json:"status"`
		Data           *SecondFactorResponseData `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if body.Status == StatusTOTPTokenRequired && body.Data != nil {
		return &LoginOutcome{TmpToken: body.Data.TmpToken}, nil
	}
	if body.Authentication == nil {
		return nil, fmt.Errorf("unexpected login response shape")
	}
	return &LoginOutcome{Session: c.newSession(body.Authentication.Token, body.Authentication.Email)}, nil
}

// VerifySecondFactor redeems a pending token plus a TOTP code for a session.
func (c *Client) VerifySecondFactor(ctx context.Context, tmpToken, code string) (*Session, error) {
	resp, err := c.postJSON(ctx, "/rest/2fa/verify", VerifyRequest{TmpToken: tmpToken, TOTPCode: code})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var body LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return c.newSession(body.Authentication.Token, body.Authentication.Email), nil
}

// Health fetches the readiness probe.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/readyz"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &body, nil
}

// Session is an authenticated view of the service, bound to one access
// token.
type Session struct {
	client *Client

	accessToken string
	email       string
}

func (c *Client) newSession(token, email string) *Session {
	return &Session{client: c, accessToken: token, email: email}
}

// NewSessionFromToken creates a session from a previously issued access
// token.
func (c *Client) NewSessionFromToken(token string) *Session {
	return c.newSession(token, "")
}

// AccessToken returns the raw access token held by the session.
func (s *Session) AccessToken() string { return s.accessToken }

// Email returns the email the session was issued for, when known.
func (s *Session) Email() string { return s.email }

// TwoFactorStatus fetches the enrollment state, including the setup
// bootstrap material when the second factor is disabled.
func (s *Session) TwoFactorStatus(ctx context.Context) (*StatusResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/rest/2fa/status", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &body, nil
}

// SetupTwoFactor completes enrollment with the material from
// TwoFactorStatus plus the password and a code from the freshly seeded
// authenticator.
func (s *Session) SetupTwoFactor(ctx context.Context, password, setupToken, initialCode string) error {
	body, err := encodeJSON(SetupRequest{
		Password:     password,
		SetupToken:   setupToken,
		InitialToken: initialCode,
	})
	if err != nil {
		return err
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/rest/2fa/setup", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// DisableTwoFactor removes the second factor after re-proving the password.
func (s *Session) DisableTwoFactor(ctx context.Context, password string) error {
	body, err := encodeJSON(DisableRequest{Password: password})
	if err != nil {
		return err
	}

	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/rest/2fa/disable", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (c *Client) postJSON(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := encodeJSON(v)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// doAuthRequest performs an authenticated HTTP request using the session's
// access token.
func (s *Session) doAuthRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.client.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

func encodeJSON(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return &buf, nil
}

// decodeAPIError turns a non-200 response into an *APIError. Responses
// without a parseable error body fall back to a generic APIError carrying
// the status code.
func decodeAPIError(resp *http.Response) error {
	var apiErr APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Code == "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        ErrorCodeServerError,
			Description: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}
	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}
