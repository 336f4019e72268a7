// Package authapi defines the wire types of the authentication service:
// request and response bodies shared by the HTTP handlers, their tests, and
// any Go client talking to the service.
package authapi

// LoginRequest is the body of POST /rest/user/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the success body of POST /rest/user/login when no second
// factor is owed.
type LoginResponse struct {
	Authentication Authentication `json:"authentication"`
}

// Authentication carries the issued access token and the email it was issued
// for.
type Authentication struct {
	Token string `json:"token"`
	Email string `json:"umail"`
}

// SecondFactorResponse is the body of POST /rest/user/login when the account
// has TOTP enabled. The client must follow up on the verify endpoint with
// TmpToken plus a code.
type SecondFactorResponse struct {
	Status string                   `json:"status"`
	Data   SecondFactorResponseData `json:"data"`
}

// StatusTOTPTokenRequired is the Status value of SecondFactorResponse.
const StatusTOTPTokenRequired = "totp_token_required"

type SecondFactorResponseData struct {
	TmpToken string `json:"tmpToken"`
}

// VerifyRequest is the body of POST /rest/2fa/verify.
type VerifyRequest struct {
	TmpToken string `json:"tmpToken"`
	TOTPCode string `json:"totpToken"`
}

// SetupRequest is the body of POST /rest/2fa/setup. All three fields are
// checked together before enrollment takes effect.
type SetupRequest struct {
	Password     string `json:"password"`
	SetupToken   string `json:"setupToken"`
	InitialToken string `json:"initialToken"`
}

// StatusResponse is the body of GET /rest/2fa/status. Secret and SetupToken
// are present only while the second factor is disabled.
type StatusResponse struct {
	TOTPEnabled bool   `json:"totpEnabled"`
	Email       string `json:"email"`
	Secret      string `json:"secret,omitempty"`
	SetupToken  string `json:"setupToken,omitempty"`
}

// DisableRequest is the body of DELETE /rest/2fa/disable.
type DisableRequest struct {
	Password string `json:"password"`
}

// HealthResponse is the body of the /livez and /readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
}
