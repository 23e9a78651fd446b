// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autobrr/license-server/internal/api/handlers"
	apimiddleware "github.com/autobrr/license-server/internal/api/middleware"
	"github.com/autobrr/license-server/internal/auth"
	"github.com/autobrr/license-server/internal/config"
	"github.com/autobrr/license-server/internal/metrics"
	"github.com/autobrr/license-server/internal/web/swagger"
)

// LicenseVerifier is the evaluator plus the store health check behind it
type LicenseVerifier interface {
	handlers.Verifier
	handlers.Pinger
}

// Dependencies holds all the dependencies needed for the API
type Dependencies struct {
	Config         *config.AppConfig
	AuthService    *auth.Service
	LicenseService LicenseVerifier
	MetricsManager *metrics.Manager
	SwaggerHandler *swagger.Handler
}

// NewRouter creates and configures the main application router
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimiddleware.HTTPLogger)
	r.Use(apimiddleware.Recoverer)

	baseURL := ""
	if deps.Config != nil && deps.Config.Config != nil {
		baseURL = strings.TrimSuffix(deps.Config.Config.BaseURL, "/")
	}

	if baseURL == "" {
		registerRoutes(r, deps)
		return r
	}

	r.Route(baseURL, func(r chi.Router) {
		registerRoutes(r, deps)
	})

	return r
}

func registerRoutes(r chi.Router, deps *Dependencies) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	healthHandler := handlers.NewHealthHandler(deps.LicenseService)
	verifyHandler := handlers.NewVerifyHandler(deps.LicenseService)

	r.Get("/", healthHandler.Liveness)
	r.Get("/health", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	var recorder apimiddleware.OutcomeRecorder
	if deps.MetricsManager != nil {
		recorder = deps.MetricsManager
	}

	r.Group(func(r chi.Router) {
		r.Use(apimiddleware.RequireAPIKey(deps.AuthService, recorder))
		r.Post("/verify", verifyHandler.Verify)
	})

	if deps.MetricsManager != nil {
		metricsHandler := handlers.NewMetricsHandler(deps.MetricsManager)
		r.Get("/metrics", metricsHandler.ServeMetrics)
	}

	if deps.SwaggerHandler != nil {
		deps.SwaggerHandler.RegisterRoutes(r)
	}
}
