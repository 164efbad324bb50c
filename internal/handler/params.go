// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/tegsite/internal/middleware"
	"github.com/olegiv/tegsite/internal/service"
	"github.com/olegiv/tegsite/internal/util"
)

// ParseIDParam parses the "id" URL parameter as a positive int64.
func ParseIDParam(r *http.Request) (int64, error) {
	return ParseURLParamInt64(r, "id")
}

// ParseURLParamInt64 parses a named URL parameter as a positive int64.
func ParseURLParamInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, errors.New("missing " + name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.New(name + " must be positive")
	}
	return v, nil
}

// requireID parses the id parameter, writing a 400 on failure.
func requireID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := ParseIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

// ParseIntParam parses an integer query parameter from the request.
// Returns defaultVal if the parameter is missing, invalid or outside
// [minVal, maxVal].
func ParseIntParam(r *http.Request, param string, defaultVal, minVal, maxVal int64) int64 {
	str := r.URL.Query().Get(param)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val < minVal || val > maxVal {
		return defaultVal
	}
	return val
}

// ParseBoolParam reports whether a query parameter is set to a true value.
func ParseBoolParam(r *http.Request, param string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(param))
	return err == nil && v
}

// actor describes the caller for the audit log.
func actor(r *http.Request) service.Actor {
	return service.Actor{
		UserID:    middleware.GetUserID(r),
		IP:        util.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
