// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/license-server/internal/auth"
	"github.com/autobrr/license-server/internal/services"
)

const APIKeyHeader = "X-API-Key"

type OutcomeRecorder interface {
	RecordOutcome(outcome services.Outcome)
}

// RequireAPIKey rejects any request whose X-API-Key does not match the configured key.
// recorder may be nil.
func RequireAPIKey(authService *auth.Service, recorder OutcomeRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authService.Authenticate(r.Header.Get(APIKeyHeader)) {
				log.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("header_present", r.Header.Get(APIKeyHeader) != "").
					Msg("Rejected request with invalid API key")
				if recorder != nil {
					recorder.RecordOutcome(services.OutcomeUnauthorized)
				}
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":    false,
		"error": code,
	})
}
