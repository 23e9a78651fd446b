// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// LicenseFinder is the single read the verifier needs from a record store
type LicenseFinder interface {
	FindByKey(ctx context.Context, key string) (*License, error)
}

// notFoundEntry marks a cached miss
type notFoundEntry struct{}

// CachedLicenseStore keeps found records and misses for ttl. Store errors are never cached.
type CachedLicenseStore struct {
	next  LicenseFinder
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewCachedLicenseStore(next LicenseFinder, ttl time.Duration, maxEntries int64) (*CachedLicenseStore, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	// Cost is one per entry, so MaxCost is an entry count
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create license cache")
	}

	return &CachedLicenseStore{
		next:  next,
		cache: cache,
		ttl:   ttl,
	}, nil
}

func (s *CachedLicenseStore) FindByKey(ctx context.Context, key string) (*License, error) {
	if cached, found := s.cache.Get(key); found {
		switch v := cached.(type) {
		case *License:
			copied := *v
			return &copied, nil
		case notFoundEntry:
			return nil, ErrLicenseNotFound
		}
	}

	license, err := s.next.FindByKey(ctx, key)
	switch {
	case errors.Is(err, ErrLicenseNotFound):
		s.cache.SetWithTTL(key, notFoundEntry{}, 1, s.ttl)
		return nil, err
	case err != nil:
		return nil, err
	}

	stored := *license
	if !s.cache.SetWithTTL(key, &stored, 1, s.ttl) {
		log.Trace().Msg("License cache rejected entry")
	}

	return license, nil
}

// Ping forwards to the wrapped store when it supports it
func (s *CachedLicenseStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Stats returns cumulative hit and miss counts
func (s *CachedLicenseStore) Stats() (hits, misses uint64) {
	if s.cache.Metrics == nil {
		return 0, 0
	}
	return s.cache.Metrics.Hits(), s.cache.Metrics.Misses()
}

// Clear drops every cached entry
func (s *CachedLicenseStore) Clear() {
	s.cache.Clear()
}

func (s *CachedLicenseStore) Close() {
	s.cache.Close()
}
