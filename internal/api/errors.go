package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/estufa-core/internal/device"
)

// errorBody is the failure envelope.
type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeBusy         = "broker_unavailable"
	ErrCodeTransport    = "broker_error"
	ErrCodeAudit        = "audit_failed"
	ErrCodeUnavailable  = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeOK writes {"success": true} merged with fields.
func writeOK(w http.ResponseWriter, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Success: false, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCommandError maps Dispatcher errors to statuses. Transport details
// stay in the log; callers only see a fixed message.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrMissingSessionReference):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "sessao_id obrigatório para irrigação")
	case device.IsValidation(err):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, device.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusy, "broker not connected, try again later")
	case errors.Is(err, device.ErrTransport):
		writeError(w, http.StatusBadGateway, ErrCodeTransport, "broker did not acknowledge the command")
	case errors.Is(err, device.ErrAuditFailed):
		writeError(w, http.StatusInternalServerError, ErrCodeAudit, "command sent but not recorded")
	default:
		writeInternalError(w, "command failed")
	}
}
