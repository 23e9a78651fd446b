// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/license-server/internal/models"
)

const (
	requestTimeout = 10 * time.Second
	maxErrorBody   = 512
	selectColumns  = "license_key,expires_at,is_banned"
)

var ErrNotConfigured = errors.New("supabase client not configured")

// Client reads license rows through a Supabase project's PostgREST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	table      string
}

func NewClient(baseURL, serviceKey, table string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
		table:      table,
	}
}

// IsClientConfigured checks that the project URL and service key are set
func (c *Client) IsClientConfigured() bool {
	return c.baseURL != "" && c.serviceKey != "" && c.table != ""
}

type licenseRow struct {
	LicenseKey string          `json:"license_key"`
	ExpiresAt  json.RawMessage `json:"expires_at"`
	IsBanned   *bool           `json:"is_banned"`
}

// FindByKey fetches at most one row matching key, or models.ErrLicenseNotFound
func (c *Client) FindByKey(ctx context.Context, key string) (*models.License, error) {
	params := url.Values{}
	params.Set("select", selectColumns)
	params.Set("license_key", "eq."+key)
	params.Set("limit", "1")

	var rows []licenseRow
	if err := c.get(ctx, params, &rows); err != nil {
		log.Debug().Err(err).Str("licenseKey", maskLicenseKey(key)).Msg("Supabase license lookup failed")
		return nil, err
	}

	if len(rows) == 0 {
		return nil, models.ErrLicenseNotFound
	}

	row := rows[0]
	return &models.License{
		Key:       row.LicenseKey,
		ExpiresAt: rawTimestamp(row.ExpiresAt),
		IsBanned:  row.IsBanned != nil && *row.IsBanned,
	}, nil
}

// Ping issues an empty select against the table
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("select", "license_key")
	params.Set("limit", "0")

	var rows []licenseRow
	return c.get(ctx, params, &rows)
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	if !c.IsClientConfigured() {
		return ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(c.table), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "supabase request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Errorf("supabase returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode supabase response")
	}

	return nil
}

// rawTimestamp returns a JSON string's value, "" for null, and the literal text otherwise
func rawTimestamp(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}

// maskLicenseKey masks a license key for logging (shows first 8 chars + ***)
func maskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "***"
}
