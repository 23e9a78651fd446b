// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/license-server/internal/services"
)

const maxVerifyBody = 64 << 10

// ExpiresAtLayout is ISO 8601 in UTC with milliseconds
const ExpiresAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Verifier is the evaluator behind POST /verify
type Verifier interface {
	Verify(ctx context.Context, key string) services.Result
}

type VerifyHandler struct {
	verifier Verifier
}

func NewVerifyHandler(verifier Verifier) *VerifyHandler {
	return &VerifyHandler{
		verifier: verifier,
	}
}

// VerifyRequest is the body of POST /verify
type VerifyRequest struct {
	Key LicenseKey `json:"key"`
}

// LicenseKey accepts a JSON string, or a number as its shortest decimal text
// (1e3 reads as "1000", 1.0 as "1"). Anything else reads as empty.
type LicenseKey string

func (k *LicenseKey) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = LicenseKey(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*k = LicenseKey(numberText(n))
	default:
		*k = ""
	}
	return nil
}

func numberText(n json.Number) string {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return n.String()
	}
	if f == 0 {
		return "0"
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// VerifyResponse is the body of a successful verification
type VerifyResponse struct {
	OK          bool   `json:"ok"`
	SecondsLeft int64  `json:"seconds_left"`
	ExpiresAt   string `json:"expires_at"`
}

// Verify handles POST /verify. The API key has already been checked by middleware.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	body := http.MaxBytesReader(w, r.Body, maxVerifyBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("Unreadable verify body, treating key as missing")
		req.Key = ""
	}

	result := h.verifier.Verify(r.Context(), string(req.Key))
	status, payload := renderResult(result)

	log.Debug().
		Str("outcome", result.Outcome.String()).
		Int("status", status).
		Msg("License verified")

	RespondJSON(w, status, payload)
}

// renderResult maps every outcome to its status code and body
func renderResult(result services.Result) (int, interface{}) {
	switch result.Outcome {
	case services.OutcomeValid:
		return http.StatusOK, VerifyResponse{
			OK:          true,
			SecondsLeft: result.SecondsLeft,
			ExpiresAt:   result.ExpiresAt.UTC().Format(ExpiresAtLayout),
		}
	case services.OutcomeInvalidKey, services.OutcomeBanned, services.OutcomeExpired:
		return http.StatusOK, ErrorResponse{Error: result.Outcome.Code()}
	case services.OutcomeMissingKey:
		return http.StatusBadRequest, ErrorResponse{Error: result.Outcome.Code()}
	case services.OutcomeUnauthorized:
		return http.StatusUnauthorized, ErrorResponse{Error: result.Outcome.Code()}
	case services.OutcomeLookupFailure, services.OutcomeMalformedExpiry:
		return http.StatusInternalServerError, ErrorResponse{Error: result.Outcome.Code()}
	default:
		panic(fmt.Sprintf("unhandled verification outcome %d", result.Outcome))
	}
}
