// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

type CacheStats interface {
	Stats() (hits, misses uint64)
}

type BreakerState interface {
	State() gobreaker.State
}

// StoreCollector reports cache and circuit breaker state at scrape time
type StoreCollector struct {
	cache   CacheStats
	breaker BreakerState

	cacheHitsDesc    *prometheus.Desc
	cacheMissesDesc  *prometheus.Desc
	breakerStateDesc *prometheus.Desc
}

func NewStoreCollector(cache CacheStats, breaker BreakerState) *StoreCollector {
	return &StoreCollector{
		cache:   cache,
		breaker: breaker,

		cacheHitsDesc: prometheus.NewDesc(
			namespace+"_cache_hits_total",
			"License cache hits",
			nil,
			nil,
		),
		cacheMissesDesc: prometheus.NewDesc(
			namespace+"_cache_misses_total",
			"License cache misses",
			nil,
			nil,
		),
		breakerStateDesc: prometheus.NewDesc(
			namespace+"_breaker_state",
			"License store circuit breaker state (0=closed, 1=half-open, 2=open)",
			nil,
			nil,
		),
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheHitsDesc
	ch <- c.cacheMissesDesc
	ch <- c.breakerStateDesc
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	if c.cache != nil {
		hits, misses := c.cache.Stats()
		ch <- prometheus.MustNewConstMetric(c.cacheHitsDesc, prometheus.CounterValue, float64(hits))
		ch <- prometheus.MustNewConstMetric(c.cacheMissesDesc, prometheus.CounterValue, float64(misses))
	}

	if c.breaker != nil {
		ch <- prometheus.MustNewConstMetric(c.breakerStateDesc, prometheus.GaugeValue, float64(c.breaker.State()))
	}
}
