package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// errorResponse writes a JSON error body with the given status code.
func errorResponse(w http.ResponseWriter, logger *slog.Logger, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, logger)
}

// statusFor maps a coreerr taxonomy sentinel onto its HTTP status code
// (spec.md §7, "internal/httpapi/errors.go" per SPEC_FULL.md §7).
func statusFor(err error) int {
	switch coreerr.Kind(err) {
	case coreerr.InvalidInput:
		return http.StatusBadRequest
	case coreerr.Concurrency:
		return http.StatusConflict
	case coreerr.NotFound:
		return http.StatusNotFound
	case coreerr.Unavailable:
		return http.StatusServiceUnavailable
	case coreerr.Timeout:
		return http.StatusGatewayTimeout
	case coreerr.Cancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeErr writes err mapped through statusFor, at the given fallback
// log level wording.
func writeErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	errorResponse(w, logger, code, err.Error())
}
