// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"unicode"
)

// Request headers carrying credentials
const (
	HeaderModeratorKey = "X-Moderator-Key"
	HeaderVoterID      = "X-Voter-ID"
)

// MaxVoterIDLength bounds the voter identity accepted from the identity provider
const MaxVoterIDLength = 128

var (
	ErrInvalidModeratorKey = errors.New("invalid moderator key")
	ErrMissingVoterID      = errors.New("missing voter id")
	ErrInvalidVoterID      = errors.New("invalid voter id")
)

// GenerateModeratorKey creates an HMAC-based moderator key for an event
// This is deterministic and verifiable
func GenerateModeratorKey(eventID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(eventID))
	sum := h.Sum(nil)
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateModeratorKey checks if the provided key is valid for the event
func ValidateModeratorKey(eventID, key, salt string) error {
	expected := GenerateModeratorKey(eventID, salt)
	if !hmac.Equal([]byte(key), []byte(expected)) {
		return ErrInvalidModeratorKey
	}
	return nil
}

// VoterID extracts the voter identity set by the upstream identity provider.
func VoterID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderVoterID))
	if id == "" {
		return "", ErrMissingVoterID
	}
	if len(id) > MaxVoterIDLength {
		return "", ErrInvalidVoterID
	}
	for _, c := range id {
		if unicode.IsControl(c) {
			return "", ErrInvalidVoterID
		}
	}
	return id, nil
}
