package handlers

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every successful endpoint returns.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the envelope for failures. Fields carries per-field
// validation messages when the request body was the problem.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeValidationErrors(w http.ResponseWriter, fields ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
}

// callerID extracts the authenticated shopper's ID. The gateway in front
// of this service sets the header after validating the session; the core
// trusts it as-is.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}
