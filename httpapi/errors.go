package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/casecurate/caseauth"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine errors onto the route surface's status taxonomy.
// Credential failures answer 403 rather than 401: the routes never issue
// a WWW-Authenticate challenge. An invalid or expired reset token is the
// client's fault and answers 422, never a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, caseauth.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, caseauth.ErrInvalidCredentials),
		errors.Is(err, caseauth.ErrUnauthorized),
		errors.Is(err, caseauth.ErrForbidden),
		errors.Is(err, caseauth.ErrCaptchaFailed):
		return http.StatusForbidden
	case errors.Is(err, caseauth.ErrSigninLocked),
		errors.Is(err, caseauth.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, caseauth.ErrResetTokenInvalid),
		errors.Is(err, caseauth.ErrTokenNotScoped):
		return http.StatusUnprocessableEntity
	case errors.Is(err, caseauth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, caseauth.ErrUserNotFound),
		errors.Is(err, caseauth.ErrAPIKeyNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the log, not the response body.
		s.log.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
