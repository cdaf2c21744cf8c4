// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/michaelalipng/yap-sub000/auth"
	"github.com/michaelalipng/yap-sub000/cliparse"
	"github.com/michaelalipng/yap-sub000/db"
	"github.com/michaelalipng/yap-sub000/models"
	"github.com/michaelalipng/yap-sub000/store"
)

// TestDBURL opens a private in-memory SQLite database per connection pool
const TestDBURL = "file::memory:"

// SetupTestDB creates a fresh in-memory database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, TestDBURL)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:                3318,
		DatabaseURL:         TestDBURL,
		DatabaseType:        cliparse.DatabaseSQLite,
		ModeratorKeySalt:    "test-moderator-salt",
		TransitionInterval:  time.Second,
		DefaultPollDuration: models.DefaultPollDuration,
	}
}

// CreateTestEvent creates an event and returns its ID and moderator key
func CreateTestEvent(t *testing.T, repo store.Repository, cfg cliparse.Config) (eventID, moderatorKey string) {
	t.Helper()

	event, err := repo.CreateEvent(context.Background(), "Test Event")
	if err != nil {
		t.Fatalf("Failed to create test event: %v", err)
	}

	return event.ID, auth.GenerateModeratorKey(event.ID, cfg.ModeratorKeySalt)
}

// TestPoll describes a poll to seed. Zero values give a queued draft
// with two options.
type TestPoll struct {
	Question        string
	Status          string
	Labels          []string
	AutoStart       bool
	QueuePosition   int
	DurationSeconds *int
	EndsAt          *time.Time
}

// CreateTestPoll creates a poll with options and returns it with its options
func CreateTestPoll(t *testing.T, repo store.Repository, eventID string, seed TestPoll) (models.Poll, []models.PollOption) {
	t.Helper()

	if seed.Question == "" {
		seed.Question = "Test Poll"
	}
	if len(seed.Labels) == 0 {
		seed.Labels = []string{"Yes", "No"}
	}

	options := make([]models.PollOption, len(seed.Labels))
	for i, label := range seed.Labels {
		options[i] = models.PollOption{Label: label, Position: i}
	}

	var startsAt *time.Time
	if seed.Status == models.StatusActive || seed.Status == models.StatusEnded {
		now := time.Now().UTC()
		startsAt = &now
	}

	poll, stored, err := repo.CreatePoll(context.Background(), models.Poll{
		EventID:         eventID,
		Question:        seed.Question,
		Type:            models.TypeMulti,
		Status:          seed.Status,
		DurationSeconds: seed.DurationSeconds,
		AutoStart:       seed.AutoStart,
		QueuePosition:   seed.QueuePosition,
		StartsAt:        startsAt,
		EndsAt:          seed.EndsAt,
	}, options)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return poll, stored
}

// CastTestVote records a vote for voterID
func CastTestVote(t *testing.T, repo store.Repository, pollID, optionID, voterID string) models.Vote {
	t.Helper()

	vote, err := repo.UpsertVote(context.Background(), models.Vote{
		PollID:   pollID,
		OptionID: optionID,
		VoterID:  voterID,
	})
	if err != nil {
		t.Fatalf("Failed to cast test vote: %v", err)
	}

	return vote
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// ModeratorHeaders returns the header map for a moderator request
func ModeratorHeaders(key string) map[string]string {
	return map[string]string{auth.HeaderModeratorKey: key}
}

// VoterHeaders returns the header map for a voter request
func VoterHeaders(voterID string) map[string]string {
	return map[string]string{auth.HeaderVoterID: voterID}
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
