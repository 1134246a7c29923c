package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/crlsmrls/sentra-gateway/internal/model"
)

// API version and error-code constants forming part of the gateway's
// external contract (spec §6/§7).
const (
	APIVersion = "2025-05-01"

	ErrCodeMissingAPIVersion = 4000
	ErrCodeBodyTooLarge      = 4001
	ErrCodeMissingFields     = 4002
	ErrCodeMalformedJSON     = 4003
	ErrCodeUnauthorized      = 2001
)

func writeError(w http.ResponseWriter, status, code int, message string, diagnostics map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{
		ErrorCode:   code,
		Message:     message,
		HTTPStatus:  status,
		Diagnostics: diagnostics,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
