// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/license-server/internal/models"
)

const defaultLookupTimeout = 5 * time.Second

// Pinger is implemented by stores that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Recorder receives verification metrics. A nil Recorder is allowed.
type Recorder interface {
	RecordOutcome(outcome Outcome)
	ObserveLookup(result string, d time.Duration)
}

// LicenseService classifies license keys against a record store
type LicenseService struct {
	finder        models.LicenseFinder
	lookupTimeout time.Duration
	now           func() time.Time
	recorder      Recorder
}

type Option func(*LicenseService)

func WithLookupTimeout(d time.Duration) Option {
	return func(s *LicenseService) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *LicenseService) {
		s.now = now
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *LicenseService) {
		s.recorder = r
	}
}

func NewLicenseService(finder models.LicenseFinder, opts ...Option) *LicenseService {
	s := &LicenseService{
		finder:        finder,
		lookupTimeout: defaultLookupTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify trims key, looks it up and applies the decision rules in order:
// lookup failure, not found, banned, malformed expiry, expired, valid.
func (s *LicenseService) Verify(ctx context.Context, key string) Result {
	result := s.verify(ctx, strings.TrimSpace(key))
	if s.recorder != nil {
		s.recorder.RecordOutcome(result.Outcome)
	}
	return result
}

func (s *LicenseService) verify(ctx context.Context, key string) Result {
	if key == "" {
		return Result{Outcome: OutcomeMissingKey}
	}

	license, err := s.lookup(ctx, key)
	switch {
	case errors.Is(err, models.ErrLicenseNotFound):
		return Result{Outcome: OutcomeInvalidKey}
	case err != nil:
		log.Error().Err(err).Str("licenseKey", maskLicenseKey(key)).Msg("License lookup failed")
		return Result{Outcome: OutcomeLookupFailure, Err: err}
	case license == nil:
		return Result{Outcome: OutcomeInvalidKey}
	}

	if license.IsBanned {
		return Result{Outcome: OutcomeBanned}
	}

	expiresAt, err := ParseExpiry(license.ExpiresAt)
	if err != nil {
		log.Error().Err(err).Str("licenseKey", maskLicenseKey(key)).Msg("License has malformed expires_at")
		return Result{Outcome: OutcomeMalformedExpiry, Err: err}
	}

	// one reading of the clock for both the comparison and the subtraction
	now := s.now()
	if !now.Before(expiresAt) {
		return Result{Outcome: OutcomeExpired, ExpiresAt: expiresAt}
	}

	return Result{
		Outcome:     OutcomeValid,
		SecondsLeft: int64(expiresAt.Sub(now) / time.Second),
		ExpiresAt:   expiresAt,
	}
}

func (s *LicenseService) lookup(ctx context.Context, key string) (*models.License, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	start := time.Now()
	license, err := s.finder.FindByKey(ctx, key)

	if s.recorder != nil {
		result := "found"
		switch {
		case errors.Is(err, models.ErrLicenseNotFound):
			result = "not_found"
		case err != nil:
			result = "error"
		}
		s.recorder.ObserveLookup(result, time.Since(start))
	}

	return license, err
}

// Ping reports whether the underlying store is reachable
func (s *LicenseService) Ping(ctx context.Context) error {
	if p, ok := s.finder.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// maskLicenseKey masks a license key for logging (shows first 8 chars + ***)
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "***"
}
