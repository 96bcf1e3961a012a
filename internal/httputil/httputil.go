// Package httputil provides the wire envelope and JSON helpers shared by
// all REST handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/saalistaja/powerauth-server/internal/service"
)

// Envelope is the uniform response wrapper: every response is either an
// OK envelope with a response object or an ERROR envelope with error
// entries.
type Envelope struct {
	Status         string       `json:"status"`
	ResponseObject any          `json:"responseObject,omitempty"`
	ResponseError  []ErrorEntry `json:"responseError,omitempty"`
}

// ErrorEntry is one error in an ERROR envelope.
type ErrorEntry struct {
	Code                    string `json:"code"`
	Message                 string `json:"message"`
	LocalizedMessage        string `json:"localizedMessage"`
	CurrentRecoveryPukIndex *int   `json:"currentRecoveryPukIndex,omitempty"`
}

// WriteJSON writes data with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteOK wraps a response object in an OK envelope.
func WriteOK(w http.ResponseWriter, obj any) {
	WriteJSON(w, http.StatusOK, Envelope{Status: "OK", ResponseObject: obj})
}

// WriteError renders a service error as an ERROR envelope with HTTP 400.
// Unknown errors are masked as a generic entry so internals never leak.
func WriteError(w http.ResponseWriter, err error) {
	entry := ErrorEntry{
		Code:             string(service.CodeInvalidRequest),
		Message:          "Request processing failed",
		LocalizedMessage: "Request processing failed",
	}

	var se *service.Error
	var re *service.RecoveryError
	switch {
	case errors.As(err, &re):
		entry.Code = string(re.Code)
		entry.Message = re.Message
		entry.LocalizedMessage = re.Message
		idx := re.CurrentPUKIndex
		entry.CurrentRecoveryPukIndex = &idx
	case errors.As(err, &se):
		entry.Code = string(se.Code)
		entry.Message = se.Message
		entry.LocalizedMessage = se.Message
	case errors.Is(err, service.ErrConcurrency):
		entry.Code = string(service.CodeConcurrency)
		entry.Message = "Operation timed out waiting for a row lock, retry"
		entry.LocalizedMessage = entry.Message
	}

	WriteJSON(w, http.StatusBadRequest, Envelope{Status: "ERROR", ResponseError: []ErrorEntry{entry}})
}

// DecodeJSON decodes a request body, writing an INVALID_REQUEST envelope
// and reporting false on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, service.E(service.CodeInvalidRequest, "malformed request body"))
		return false
	}
	return true
}
