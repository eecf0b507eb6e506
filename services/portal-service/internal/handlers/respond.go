package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/healthband/portal/services/portal-service/internal/booking"
)

// envelope is the wire shape of every response: success carries data and
// an optional message, failure carries message plus a coded error block.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Message string     `json:"message,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func respondError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var be *booking.Error
	if !errors.As(err, &be) {
		logger.Error("request failed", "err", err, "method", r.Method, "path", r.URL.Path)
		be = booking.AsError(err)
	}
	writeJSON(w, be.Status, envelope{
		Success: false,
		Message: be.Message,
		Error:   &errorBody{Code: be.Code, Details: be.Details},
	})
}

func respondFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{
		Success: false,
		Message: message,
		Error:   &errorBody{Code: code},
	})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
