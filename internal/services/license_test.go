// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/license-server/internal/database"
	"github.com/autobrr/license-server/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeFinder struct {
	mu       sync.Mutex
	licenses map[string]models.License
	err      error
	delay    time.Duration
	keys     []string
}

func (f *fakeFinder) FindByKey(ctx context.Context, key string) (*models.License, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	license, ok := f.licenses[key]
	if !ok {
		return nil, models.ErrLicenseNotFound
	}
	return &license, nil
}

func (f *fakeFinder) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	lookups  []string
}

func (r *fakeRecorder) RecordOutcome(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *fakeRecorder) ObserveLookup(result string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, result)
}

func rfc3339(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func TestVerify_DecisionSequence(t *testing.T) {
	finder := &fakeFinder{licenses: map[string]models.License{
		"BANNED1":      {Key: "BANNED1", ExpiresAt: rfc3339(fixedNow.AddDate(1, 0, 0)), IsBanned: true},
		"BANNEDOLD":    {Key: "BANNEDOLD", ExpiresAt: rfc3339(fixedNow.AddDate(0, 0, -1)), IsBanned: true},
		"BANNEDBAD":    {Key: "BANNEDBAD", ExpiresAt: "garbage", IsBanned: true},
		"EXPIRED1":     {Key: "EXPIRED1", ExpiresAt: rfc3339(fixedNow.AddDate(0, 0, -1))},
		"EXPIRESNOW":   {Key: "EXPIRESNOW", ExpiresAt: rfc3339(fixedNow)},
		"VALID1":       {Key: "VALID1", ExpiresAt: rfc3339(fixedNow.Add(3600 * time.Second))},
		"FRACTION":     {Key: "FRACTION", ExpiresAt: rfc3339(fixedNow.Add(1999 * time.Millisecond))},
		"SUBSECOND":    {Key: "SUBSECOND", ExpiresAt: rfc3339(fixedNow.Add(500 * time.Millisecond))},
		"MALFORMED":    {Key: "MALFORMED", ExpiresAt: "next tuesday"},
		"NOEXPIRY":     {Key: "NOEXPIRY", ExpiresAt: ""},
		"PGFORMAT":     {Key: "PGFORMAT", ExpiresAt: "2025-06-01 13:00:00+00"},
		"OFFSETFORMAT": {Key: "OFFSETFORMAT", ExpiresAt: "2025-06-01T14:00:00+02:00"},
	}}

	tests := []struct {
		name        string
		key         string
		outcome     Outcome
		secondsLeft int64
	}{
		{name: "empty key", key: "", outcome: OutcomeMissingKey},
		{name: "whitespace key", key: "  \t\n ", outcome: OutcomeMissingKey},
		{name: "scenario A: unknown key", key: "ABC123", outcome: OutcomeInvalidKey},
		{name: "scenario B: banned beats future expiry", key: "BANNED1", outcome: OutcomeBanned},
		{name: "banned beats past expiry", key: "BANNEDOLD", outcome: OutcomeBanned},
		{name: "banned beats malformed expiry", key: "BANNEDBAD", outcome: OutcomeBanned},
		{name: "scenario C: expired yesterday", key: "EXPIRED1", outcome: OutcomeExpired},
		{name: "expires exactly now is expired", key: "EXPIRESNOW", outcome: OutcomeExpired},
		{name: "scenario D: valid for an hour", key: "VALID1", outcome: OutcomeValid, secondsLeft: 3600},
		{name: "key is trimmed", key: "  VALID1  ", outcome: OutcomeValid, secondsLeft: 3600},
		{name: "seconds are floored", key: "FRACTION", outcome: OutcomeValid, secondsLeft: 1},
		{name: "sub-second remaining is valid with zero", key: "SUBSECOND", outcome: OutcomeValid, secondsLeft: 0},
		{name: "malformed expiry", key: "MALFORMED", outcome: OutcomeMalformedExpiry},
		{name: "empty expiry", key: "NOEXPIRY", outcome: OutcomeMalformedExpiry},
		{name: "postgres text timestamp", key: "PGFORMAT", outcome: OutcomeValid, secondsLeft: 3600},
		{name: "offset timestamp", key: "OFFSETFORMAT", outcome: OutcomeValid, secondsLeft: 3600},
	}

	service := NewLicenseService(finder, WithClock(func() time.Time { return fixedNow }))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.Verify(context.Background(), tt.key)

			assert.Equal(t, tt.outcome, result.Outcome, "got %s", result.Outcome)
			assert.Equal(t, tt.outcome == OutcomeValid, result.OK())
			if tt.outcome == OutcomeValid {
				assert.Equal(t, tt.secondsLeft, result.SecondsLeft)
				assert.GreaterOrEqual(t, result.SecondsLeft, int64(0))
				assert.False(t, result.ExpiresAt.IsZero())
			} else {
				assert.Zero(t, result.SecondsLeft)
			}

			switch tt.outcome {
			case OutcomeValid, OutcomeExpired:
				assert.False(t, result.ExpiresAt.IsZero(), "expires_at kept for %s", tt.outcome)
			default:
				assert.True(t, result.ExpiresAt.IsZero(), "expires_at unset for %s", tt.outcome)
			}
		})
	}
}

func TestVerify_MissingKeySkipsStore(t *testing.T) {
	finder := &fakeFinder{}
	service := NewLicenseService(finder)

	for _, key := range []string{"", " ", "\t", "\r\n"} {
		result := service.Verify(context.Background(), key)
		assert.Equal(t, OutcomeMissingKey, result.Outcome)
	}

	assert.Empty(t, finder.Keys(), "store must not be queried for empty keys")
}

func TestVerify_LookupsUseTrimmedKey(t *testing.T) {
	finder := &fakeFinder{}
	service := NewLicenseService(finder)

	service.Verify(context.Background(), "  KEY-1 ")
	assert.Equal(t, []string{"KEY-1"}, finder.Keys())
}

func TestVerify_LookupFailure(t *testing.T) {
	storeErr := errors.New("connection reset by peer")
	finder := &fakeFinder{err: storeErr}
	service := NewLicenseService(finder)

	result := service.Verify(context.Background(), "VALID1")

	assert.Equal(t, OutcomeLookupFailure, result.Outcome)
	assert.ErrorIs(t, result.Err, storeErr)
}

func TestVerify_LookupTimeout(t *testing.T) {
	finder := &fakeFinder{delay: time.Second}
	service := NewLicenseService(finder, WithLookupTimeout(20*time.Millisecond))

	start := time.Now()
	result := service.Verify(context.Background(), "VALID1")

	assert.Equal(t, OutcomeLookupFailure, result.Outcome)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestVerify_SingleClockRead(t *testing.T) {
	finder := &fakeFinder{licenses: map[string]models.License{
		"EDGE": {Key: "EDGE", ExpiresAt: rfc3339(fixedNow.Add(time.Second))},
	}}

	// a clock that jumps forward on every read would flip the result to a
	// negative remaining time if it were read twice
	var reads int
	clock := func() time.Time {
		reads++
		return fixedNow.Add(time.Duration(reads-1) * 2 * time.Second)
	}

	result := NewLicenseService(finder, WithClock(clock)).Verify(context.Background(), "EDGE")

	assert.Equal(t, 1, reads)
	assert.Equal(t, OutcomeValid, result.Outcome)
	assert.Equal(t, int64(1), result.SecondsLeft)
}

func TestVerify_Idempotent(t *testing.T) {
	finder := &fakeFinder{licenses: map[string]models.License{
		"VALID1": {Key: "VALID1", ExpiresAt: rfc3339(time.Now().Add(time.Hour))},
	}}
	service := NewLicenseService(finder)

	first := service.Verify(context.Background(), "VALID1")
	second := service.Verify(context.Background(), "VALID1")

	assert.Equal(t, first.Outcome, second.Outcome)
	assert.LessOrEqual(t, second.SecondsLeft, first.SecondsLeft)
}

func TestVerify_RecordsMetrics(t *testing.T) {
	finder := &fakeFinder{licenses: map[string]models.License{
		"VALID1": {Key: "VALID1", ExpiresAt: rfc3339(fixedNow.Add(time.Hour))},
	}}
	recorder := &fakeRecorder{}
	service := NewLicenseService(finder, WithClock(func() time.Time { return fixedNow }), WithRecorder(recorder))

	service.Verify(context.Background(), "")
	service.Verify(context.Background(), "VALID1")
	service.Verify(context.Background(), "NOPE")

	assert.Equal(t, []Outcome{OutcomeMissingKey, OutcomeValid, OutcomeInvalidKey}, recorder.outcomes)
	assert.Equal(t, []string{"found", "not_found"}, recorder.lookups)
}

func TestVerify_SQLiteStore(t *testing.T) {
	ctx := t.Context()
	db, err := database.New(filepath.Join(t.TempDir(), "licenses.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().ExecContext(ctx,
		"INSERT INTO licenses (license_key, expires_at, is_banned) VALUES (?, ?, ?), (?, ?, ?)",
		"VALID1", rfc3339(fixedNow.Add(3600*time.Second)), false,
		"BANNED1", rfc3339(fixedNow.AddDate(1, 0, 0)), true,
	)
	require.NoError(t, err)

	store, err := models.NewLicenseStore(db, "licenses")
	require.NoError(t, err)

	service := NewLicenseService(store, WithClock(func() time.Time { return fixedNow }))

	valid := service.Verify(ctx, "VALID1")
	assert.Equal(t, OutcomeValid, valid.Outcome)
	assert.Equal(t, int64(3600), valid.SecondsLeft)

	assert.Equal(t, OutcomeBanned, service.Verify(ctx, "BANNED1").Outcome)
	assert.Equal(t, OutcomeInvalidKey, service.Verify(ctx, "ABC123").Outcome)
	assert.NoError(t, service.Ping(ctx))
}

func TestOutcomeCodes(t *testing.T) {
	expected := map[Outcome]string{
		OutcomeUnauthorized:    "unauthorized",
		OutcomeMissingKey:      "missing_key",
		OutcomeLookupFailure:   "db_error",
		OutcomeInvalidKey:      "invalid_key",
		OutcomeBanned:          "banned",
		OutcomeMalformedExpiry: "bad_expires_at",
		OutcomeExpired:         "expired",
		OutcomeValid:           "",
	}

	require.Len(t, Outcomes, len(expected))
	for _, o := range Outcomes {
		assert.Equal(t, expected[o], o.Code(), o.String())
		assert.NotEqual(t, "unknown", o.String())
	}
	assert.Equal(t, "unknown", Outcome(0).String())
}
