// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler implements the JSON API of the public site and the admin
// panel on top of the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxJSONBody caps request bodies decoded by decodeJSON.
const maxJSONBody = 1 << 20

// errBadJSON is returned by decodeJSON for malformed bodies.
var errBadJSON = errors.New("invalid JSON body")

// response is the envelope of every JSON response.
type response struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data,omitempty"`
	Message    string            `json:"message,omitempty"`
	Error      string            `json:"error,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	RetryAfter int               `json:"retryAfter,omitempty"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData writes a {success, data} response.
func writeData(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, response{Success: true, Data: data})
}

// writeJSONSuccess writes a success response whose fields sit next to
// "success" instead of under "data".
func writeJSONSuccess(w http.ResponseWriter, fields map[string]any) {
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["success"] = true
	writeJSON(w, http.StatusOK, fields)
}

// writeMessage writes a success response carrying only a message.
func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, response{Success: true, Message: message})
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, response{Error: message})
}

// decodeJSON decodes the request body into dst, capped at maxJSONBody.
// Unknown fields are ignored so clients may send back whole views.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data", errBadJSON)
	}
	return nil
}
