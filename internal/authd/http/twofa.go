package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/storefrontlabs/authd/internal/authd/service"
	"github.com/storefrontlabs/authd/pkg/authapi"
	"github.com/storefrontlabs/authd/pkg/httpx"
	"github.com/storefrontlabs/authd/pkg/slogx"
)

// TwoFactorHandler handles the /rest/2fa endpoints.
type TwoFactorHandler struct {
	LoginService     *service.LoginService
	TwoFactorService *service.TwoFactorService
}

// HandleVerify handles POST /rest/2fa/verify. It is unauthenticated: the
// pending token from the login step is the caller's only credential.
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authapi.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	token, user, err := h.LoginService.VerifySecondFactor(ctx, req.TmpToken, req.TOTPCode)
	if err != nil {
		writeVerifyError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authapi.LoginResponse{
		Authentication: authapi.Authentication{
			Token: token,
			Email: user.Email,
		},
	})
}

// HandleSetup handles POST /rest/2fa/setup. The caller is already
// authenticated; password, setup token, and initial code are all re-checked
// before the secret is bound.
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromCtx(ctx)
	if !ok {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	var req authapi.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	err := h.TwoFactorService.Setup(ctx, userID, req.Password, req.SetupToken, req.InitialToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyEnrolled):
			authapi.ErrAlreadyEnrolled.WriteError(w)
		case errors.Is(err, service.ErrInvalidCredentials):
			authapi.ErrInvalidCredentials.WriteError(w)
		case errors.Is(err, service.ErrInvalidToken):
			authapi.ErrInvalidToken.WriteError(w)
		case errors.Is(err, service.ErrInvalidTOTPCode):
			authapi.ErrInvalidTOTPCode.WriteError(w)
		default:
			log.Error("setup failed", "user_id", userID, "err", err)
			authapi.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}

// HandleStatus handles GET /rest/2fa/status. For accounts without a second
// factor it also returns a fresh candidate secret and the setup token that
// binds it, which the client feeds back into HandleSetup.
func (h *TwoFactorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromCtx(ctx)
	if !ok {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	st, err := h.TwoFactorService.Status(ctx, userID)
	if err != nil {
		log.Error("status failed", "user_id", userID, "err", err)
		authapi.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authapi.StatusResponse{
		TOTPEnabled: st.Enabled,
		Email:       st.Email,
		Secret:      st.Secret,
		SetupToken:  st.SetupToken,
	})
}

// HandleDisable handles DELETE /rest/2fa/disable.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromCtx(ctx)
	if !ok {
		authapi.ErrInvalidToken.WriteError(w)
		return
	}

	var req authapi.DisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		authapi.ErrInvalidRequest.WriteError(w)
		return
	}

	err := h.TwoFactorService.Disable(ctx, userID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotEnrolled):
			authapi.ErrNotEnrolled.WriteError(w)
		case errors.Is(err, service.ErrInvalidCredentials):
			authapi.ErrInvalidCredentials.WriteError(w)
		default:
			log.Error("disable failed", "user_id", userID, "err", err)
			authapi.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}

func writeVerifyError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		authapi.ErrInvalidToken.WriteError(w)
	case errors.Is(err, service.ErrInvalidTOTPCode):
		authapi.ErrInvalidTOTPCode.WriteError(w)
	case errors.Is(err, service.ErrDataIntegrity):
		// A store inconsistency is the server's fault. Reporting it as 401
		// would mask the defect behind an authentication failure.
		log.Error("second factor data integrity fault", "err", err)
		authapi.ErrServerError.WriteError(w)
	default:
		log.Error("second factor verification failed", "err", err)
		authapi.ErrServerError.WriteError(w)
	}
}
