// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/license-server/internal/config"
	"github.com/autobrr/license-server/internal/database"
	"github.com/autobrr/license-server/internal/domain"
	"github.com/autobrr/license-server/internal/metrics"
	"github.com/autobrr/license-server/internal/models"
	"github.com/autobrr/license-server/internal/services"
	"github.com/autobrr/license-server/internal/supabase"
)

// licenseStore is the configured finder chain: backend, then breaker, then cache
type licenseStore struct {
	finder  models.LicenseFinder
	cache   *models.CachedLicenseStore
	breaker *services.BreakerFinder
	closers []func() error
}

func (s *licenseStore) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("Failed to close license store")
		}
	}
}

func openLicenseStore(cfg *config.AppConfig) (*licenseStore, error) {
	store := &licenseStore{}
	storeCfg := cfg.Config.Store

	switch storeCfg.Driver {
	case domain.StoreDriverSQLite:
		db, err := database.New(cfg.GetDatabasePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		store.closers = append(store.closers, db.Close)

		licenses, err := models.NewLicenseStore(db, storeCfg.Table)
		if err != nil {
			store.Close()
			return nil, err
		}
		store.finder = licenses
		log.Info().Str("path", cfg.GetDatabasePath()).Msg("Using sqlite license store")

	case domain.StoreDriverPostgres:
		db, err := database.NewPostgres(database.DefaultPostgresConfig(storeCfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		store.closers = append(store.closers, db.Close)

		licenses, err := models.NewLicenseStore(db, storeCfg.Table)
		if err != nil {
			store.Close()
			return nil, err
		}
		store.finder = licenses
		log.Info().Str("table", storeCfg.Table).Msg("Using postgres license store")

	case domain.StoreDriverSupabase:
		client := supabase.NewClient(storeCfg.SupabaseURL, storeCfg.SupabaseKey, storeCfg.Table)
		if !client.IsClientConfigured() {
			return nil, supabase.ErrNotConfigured
		}
		store.finder = client
		log.Info().Str("table", storeCfg.Table).Msg("Using supabase license store")

	default:
		return nil, fmt.Errorf("unknown store driver %q", storeCfg.Driver)
	}

	if cfg.Config.Breaker.Enabled {
		store.breaker = services.NewBreakerFinder(store.finder, services.BreakerSettings{
			Name:                storeCfg.Driver,
			ConsecutiveFailures: cfg.Config.Breaker.ConsecutiveFailures,
			OpenTimeout:         cfg.BreakerOpenTimeout(),
		})
		store.finder = store.breaker
	}

	if cfg.Config.Cache.Enabled {
		cache, err := models.NewCachedLicenseStore(store.finder, cfg.CacheTTL(), cfg.Config.Cache.MaxEntries)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create license cache: %w", err)
		}
		store.cache = cache
		store.finder = cache
		store.closers = append(store.closers, func() error {
			cache.Close()
			return nil
		})
		log.Info().Dur("ttl", cfg.CacheTTL()).Msg("License lookup cache enabled")
	}

	return store, nil
}

// metricsSources avoids handing typed nil pointers to the collector
func (s *licenseStore) metricsSources() (cache metrics.CacheStats, breaker metrics.BreakerState) {
	if s.cache != nil {
		cache = s.cache
	}
	if s.breaker != nil {
		breaker = s.breaker
	}
	return cache, breaker
}
