// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"crypto/subtle"
	"strings"
)

// Service checks the shared API key callers present. The expected key is fixed at construction.
type Service struct {
	apiKey []byte
}

func NewService(apiKey string) *Service {
	return &Service{
		apiKey: []byte(strings.TrimSpace(apiKey)),
	}
}

// IsConfigured reports whether an API key was set. Without one every request is rejected.
func (s *Service) IsConfigured() bool {
	return s != nil && len(s.apiKey) > 0
}

// Authenticate compares the presented key, minus surrounding whitespace, in constant time
func (s *Service) Authenticate(presented string) bool {
	if !s.IsConfigured() {
		return false
	}

	candidate := []byte(strings.TrimSpace(presented))
	return subtle.ConstantTimeCompare(candidate, s.apiKey) == 1
}
