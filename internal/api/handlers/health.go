// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ServiceName  = "license-server"
	readyTimeout = 3 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{
		store: store,
	}
}

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// Liveness serves the fixed payload on / and /health
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, HealthResponse{
		OK:      true,
		Service: ServiceName,
	})
}

// Readiness checks that the license store answers
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		RespondError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Readiness check failed")
		RespondError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
