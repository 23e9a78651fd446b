// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import "time"

// Outcome is the terminal classification of a verification request
type Outcome int

const (
	OutcomeUnauthorized Outcome = iota + 1
	OutcomeMissingKey
	OutcomeLookupFailure
	OutcomeInvalidKey
	OutcomeBanned
	OutcomeMalformedExpiry
	OutcomeExpired
	OutcomeValid
)

// Outcomes lists every outcome, in decision order
var Outcomes = []Outcome{
	OutcomeUnauthorized,
	OutcomeMissingKey,
	OutcomeLookupFailure,
	OutcomeInvalidKey,
	OutcomeBanned,
	OutcomeMalformedExpiry,
	OutcomeExpired,
	OutcomeValid,
}

func (o Outcome) String() string {
	switch o {
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeMissingKey:
		return "missing_key"
	case OutcomeLookupFailure:
		return "lookup_failure"
	case OutcomeInvalidKey:
		return "invalid_key"
	case OutcomeBanned:
		return "banned"
	case OutcomeMalformedExpiry:
		return "malformed_expiry"
	case OutcomeExpired:
		return "expired"
	case OutcomeValid:
		return "valid"
	default:
		return "unknown"
	}
}

// Code is the error string sent to callers. Valid has none.
func (o Outcome) Code() string {
	switch o {
	case OutcomeLookupFailure:
		return "db_error"
	case OutcomeMalformedExpiry:
		return "bad_expires_at"
	case OutcomeValid:
		return ""
	default:
		return o.String()
	}
}

// Result is what Verify returns. SecondsLeft is set only for OutcomeValid,
// ExpiresAt for OutcomeValid and OutcomeExpired. Err carries the cause of a
// system-fault outcome for logging.
type Result struct {
	Outcome     Outcome
	SecondsLeft int64
	ExpiresAt   time.Time
	Err         error
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeValid
}
