package http

import (
	"net/http"
	"time"

	"github.com/storefrontlabs/authd/internal/authd/store"
	"github.com/storefrontlabs/authd/pkg/authapi"
	"github.com/storefrontlabs/authd/pkg/httpx"
)

// ReadyzHandler is the readiness probe. It reports degraded with a 503 when
// the user store is unreachable.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authapi.HealthChecks{Database: "ok"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, authapi.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
