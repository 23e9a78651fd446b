// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/pkg/errors"

	"github.com/autobrr/license-server/internal/database"
)

var (
	ErrLicenseNotFound = errors.New("license not found")
	ErrInvalidTable    = errors.New("invalid table name")
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// License is a license record as stored. ExpiresAt is kept raw so that a value
// the store cannot express as a timestamp still reaches the evaluator.
type License struct {
	Key       string `json:"license_key"`
	ExpiresAt string `json:"expires_at"`
	IsBanned  bool   `json:"is_banned"`
}

// LicenseStore reads license records from a SQL database
type LicenseStore struct {
	db    *database.DB
	query string
}

func NewLicenseStore(db *database.DB, table string) (*LicenseStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, errors.Wrapf(ErrInvalidTable, "%q", table)
	}

	query := db.Rebind(fmt.Sprintf(`
		SELECT license_key, expires_at, is_banned
		FROM %s
		WHERE license_key = ?
		LIMIT 1
	`, table))

	return &LicenseStore{db: db, query: query}, nil
}

// FindByKey returns the record for key, or ErrLicenseNotFound
func (s *LicenseStore) FindByKey(ctx context.Context, key string) (*License, error) {
	var (
		license   License
		expiresAt sql.NullString
		isBanned  sql.NullBool
	)

	err := s.db.Conn().QueryRowContext(ctx, s.query, key).Scan(&license.Key, &expiresAt, &isBanned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query license")
	}

	license.ExpiresAt = expiresAt.String
	license.IsBanned = isBanned.Valid && isBanned.Bool

	return &license, nil
}

func (s *LicenseStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
