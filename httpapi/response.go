// Package httpapi exposes the router's operations over HTTP: bearer-admin
// raw SQL and policy management, unauthenticated named-SQL invocation, and
// the small set of operator endpoints (healthz, interrupt) a complete
// gateway needs beyond the core's own scope.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ryanpbrewster/ezdb/ezerr"
)

// writeJSON writes v as a JSON body with status, matching the plain
// "encode straight to the response writer" style the rest of the pack's
// HTTP surfaces use.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorEnvelope is the wire shape of every error response.
type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError maps err onto the HTTP 400 error envelope. An *ezerr.Error keeps
// its kind, message and details; any other error (e.g. a failure opening the
// database) is reported with kind "unknown" and its own message.
func writeError(w http.ResponseWriter, err error) {
	e, ok := ezerr.As(err)
	if !ok {
		e = ezerr.Unknown(err.Error())
	}

	writeJSON(w, http.StatusBadRequest, errorEnvelope{
		Code:    string(e.Kind),
		Message: e.Message,
		Details: e.Details,
	})
}

// writeBadRequest reports a malformed request that never reached the core
// (bad token, bad JSON): same envelope shape, kind "unknown".
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Code: string(ezerr.KindUnknown), Message: message})
}

// writeUnauthorized reports a missing or wrong bearer token.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer`)
	writeJSON(w, http.StatusUnauthorized, errorEnvelope{Code: "unauthorized", Message: "missing or invalid bearer token"})
}
