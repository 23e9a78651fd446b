// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/license-server/internal/services"
)

const namespace = "license_server"

type Manager struct {
	registry       *prometheus.Registry
	verifyTotal    *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	storeCollector *StoreCollector
}

// NewManager builds an isolated registry. cache and breaker may be nil.
func NewManager(cache CacheStats, breaker BreakerState) *Manager {
	registry := prometheus.NewRegistry()

	verifyTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verify_total",
		Help:      "Verification requests by outcome",
	}, []string{"outcome"})

	lookupDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "lookup_duration_seconds",
		Help:      "License store lookup latency by result",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"result"})

	// pre-create every outcome so rates exist before the first request
	for _, o := range services.Outcomes {
		verifyTotal.WithLabelValues(o.String())
	}

	storeCollector := NewStoreCollector(cache, breaker)

	registry.MustRegister(verifyTotal, lookupDuration, storeCollector)

	log.Info().Msg("Metrics manager initialized")

	return &Manager{
		registry:       registry,
		verifyTotal:    verifyTotal,
		lookupDuration: lookupDuration,
		storeCollector: storeCollector,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) RecordOutcome(outcome services.Outcome) {
	m.verifyTotal.WithLabelValues(outcome.String()).Inc()
}

func (m *Manager) ObserveLookup(result string, d time.Duration) {
	m.lookupDuration.WithLabelValues(result).Observe(d.Seconds())
}
