package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/tenant-notes/internal/errs"
)

// envelope is the body of every API response.
type envelope struct {
	StatusCode int      `json:"statusCode"`
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Data       any      `json:"data,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{StatusCode: status, Success: true, Message: msg, Data: data})
}

// errorKinds maps domain error kinds to transport status and default message.
// Order matters only for readability; the kinds are disjoint.
var errorKinds = []struct {
	kind   error
	status int
	msg    string
}{
	{errs.ErrValidation, http.StatusBadRequest, "Validation failed"},
	{errs.ErrUnresolvedTenant, http.StatusBadRequest, "Email not associated with any tenant"},
	{errs.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized request"},
	{errs.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{errs.ErrTokenMismatch, http.StatusUnauthorized, "Refresh token mismatch"},
	{errs.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{errs.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{errs.ErrQuotaExceeded, http.StatusForbidden, "Note limit reached"},
	{errs.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{errs.ErrNotFound, http.StatusNotFound, "Resource not found"},
	{errs.ErrAlreadyExists, http.StatusConflict, "Resource already exists"},
	{errs.ErrRateLimited, http.StatusTooManyRequests, "Too many requests"},
}

// translate resolves err to a status, a caller-facing message and details.
// Unknown errors become a bare 500.
func translate(err error) (int, string, []string) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.kind) {
			continue
		}
		var e *errs.Error
		if errors.As(err, &e) && e.Msg != "" {
			return k.status, e.Msg, e.Details
		}
		return k.status, k.msg, nil
	}
	return http.StatusInternalServerError, "Internal Server Error", nil
}

// writeError is the single place errors leave the service as HTTP responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, details := translate(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, envelope{StatusCode: status, Success: false, Message: msg, Errors: details})
}
