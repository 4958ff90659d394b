package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Коды ошибок API
const (
	CodeInvalidJSON         = "invalid_json"
	CodeInvalidInput        = "invalid_input"
	CodeInvalidAmount       = "invalid_amount"
	CodeIdempotencyConflict = "idempotency_conflict"
	CodeRuleExists          = "rule_exists"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal_error"
)

type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_input"`
	Message string `json:"message,omitempty"`
}

func WriteJSONError(w http.ResponseWriter, log *slog.Logger, status int, errCode, message string) {
	writeJSON(w, log, status, ErrorResponse{Error: errCode, Message: message})
}

func WriteJSONSuccess(w http.ResponseWriter, log *slog.Logger, status int, data any) {
	writeJSON(w, log, status, data)
}

// WriteInternalError hides the cause from the client; it is expected to be logged by the caller.
func WriteInternalError(w http.ResponseWriter, log *slog.Logger, message string) {
	WriteJSONError(w, log, http.StatusInternalServerError, CodeInternal, message)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("ошибка при кодировании JSON-ответа",
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
}
