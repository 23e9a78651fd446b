// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/autobrr/license-server/internal/models"
)

// BreakerFinder stops calling a failing store for a while after repeated errors.
// A missing license and a cancelled caller never trip it.
type BreakerFinder struct {
	next    models.LicenseFinder
	breaker *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func NewBreakerFinder(next models.LicenseFinder, settings BreakerSettings) *BreakerFinder {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}

	return &BreakerFinder{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			// a caller hanging up says nothing about the store; a deadline does
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("License store circuit breaker changed state")
			},
		}),
	}
}

func (b *BreakerFinder) FindByKey(ctx context.Context, key string) (*models.License, error) {
	v, err := b.breaker.Execute(func() (interface{}, error) {
		license, err := b.next.FindByKey(ctx, key)
		if errors.Is(err, models.ErrLicenseNotFound) {
			return nil, nil
		}
		return license, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("license store unavailable: %w", err)
		}
		return nil, err
	}

	license, _ := v.(*models.License)
	if license == nil {
		return nil, models.ErrLicenseNotFound
	}
	return license, nil
}

func (b *BreakerFinder) Ping(ctx context.Context) error {
	if p, ok := b.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// State is 0 closed, 1 half-open, 2 open
func (b *BreakerFinder) State() gobreaker.State {
	return b.breaker.State()
}
