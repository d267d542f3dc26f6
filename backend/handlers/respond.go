// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tredditapp/messaging/backend/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// writeError maps an error to its HTTP status. Errors without a known code
// are internal: logged in full, surfaced generically.
func writeError(w http.ResponseWriter, log *zap.Logger, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err))
	}
	writeJSON(w, status, errorBody{Code: code, Message: apperr.MessageOf(err)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: apperr.CodeInvalidArgument, Message: msg})
}

func forbidden(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusForbidden, errorBody{Code: apperr.CodePermissionDenied, Message: msg})
}

// pathID parses a numeric path variable, 0 when absent or malformed.
func pathID(r *http.Request, name string) int64 {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// queryInt parses an optional numeric query parameter, def when absent.
func queryInt(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
