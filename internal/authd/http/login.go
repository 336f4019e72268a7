package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/storefrontlabs/authd/internal/authd/service"
	"github.com/storefrontlabs/authd/pkg/authapi"
	"github.com/storefrontlabs/authd/pkg/httpx"
	"github.com/storefrontlabs/authd/pkg/slogx"
)

// LoginHandler handles POST /rest/user/login.
type LoginHandler struct {
	LoginService *service.LoginService
}

// ServeHTTP validates the credentials and returns either an access token or,
// for TOTP-enabled accounts, a pending token the client must redeem on the
// verify endpoint. Unknown email and wrong password produce the same 401.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	res, err := h.LoginService.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			authapi.ErrInvalidCredentials.WriteError(w)
			return
		}
		log.Error("login failed", "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	if res.SecondFactorRequired {
		httpx.WriteJSON(w, http.StatusOK, authapi.SecondFactorResponse{
			Status: authapi.StatusTOTPTokenRequired,
			Data:   authapi.SecondFactorResponseData{TmpToken: res.TmpToken},
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authapi.LoginResponse{
		Authentication: authapi.Authentication{
			Token: res.Token,
			Email: res.User.Email,
		},
	})
}
