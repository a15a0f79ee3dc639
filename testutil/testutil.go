// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielhkuo/crowd-poll/auth"
	"github.com/danielhkuo/crowd-poll/cliparse"
	"github.com/danielhkuo/crowd-poll/db"
)

// SetupTestDB creates a fresh sqlite database with the full schema.
// The file lives in the test's temp dir and is removed with it.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// sqlite allows one writer; a single pooled connection keeps
	// concurrent test writes from tripping SQLITE_BUSY.
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          3318,
		DatabaseType:  "sqlite",
		JWTSecret:     "test-jwt-secret",
		SlugSalt:      "test-slug-salt",
		AdminUsername: "admin",
		AdminPassword: "admin123",
	}
}

// CreateTestPoll creates a poll and returns its ID and slug.
func CreateTestPoll(t *testing.T, conn *sql.DB, cfg cliparse.Config, pollType string, active bool) (pollID, slug string) {
	t.Helper()

	pollID, _ = auth.GenerateID(16)
	slug = auth.GenerateSlug(pollID, cfg.SlugSalt)

	_, err := conn.Exec(`
		INSERT INTO polls (id, title, description, slug, poll_type, is_active, archived, start_time)
		VALUES ($1, 'Test Poll', 'A test poll', $2, $3, $4, FALSE, $5)
	`, pollID, slug, pollType, active, db.FormatTime(time.Now()))
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	return pollID, slug
}

// SetPollEndTime sets (or clears, with nil) a poll's deadline.
func SetPollEndTime(t *testing.T, conn *sql.DB, pollID string, end *time.Time) {
	t.Helper()

	var stored *string
	if end != nil {
		s := db.FormatTime(*end)
		stored = &s
	}
	if _, err := conn.Exec(`UPDATE polls SET end_time = $1 WHERE id = $2`, stored, pollID); err != nil {
		t.Fatalf("Failed to set poll end time: %v", err)
	}
}

// ArchiveTestPoll marks a poll archived.
func ArchiveTestPoll(t *testing.T, conn *sql.DB, pollID string) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE polls SET archived = TRUE, is_active = FALSE WHERE id = $1`, pollID); err != nil {
		t.Fatalf("Failed to archive test poll: %v", err)
	}
}

// AddTestQuestion adds a question with the given choices and returns
// the question ID and choice IDs in choice order.
func AddTestQuestion(t *testing.T, conn *sql.DB, pollID string, position int, text string, choices ...string) (string, []string) {
	t.Helper()

	questionID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO questions (id, poll_id, position, text)
		VALUES ($1, $2, $3, $4)
	`, questionID, pollID, position, text)
	if err != nil {
		t.Fatalf("Failed to create test question: %v", err)
	}

	choiceIDs := make([]string, 0, len(choices))
	for i, label := range choices {
		choiceID, _ := auth.GenerateID(12)
		_, err := conn.Exec(`
			INSERT INTO choices (id, question_id, position, text, is_correct)
			VALUES ($1, $2, $3, $4, $5)
		`, choiceID, questionID, i, label, i == 0)
		if err != nil {
			t.Fatalf("Failed to create test choice: %v", err)
		}
		choiceIDs = append(choiceIDs, choiceID)
	}

	return questionID, choiceIDs
}

// CreateTestAdmin inserts an admin user and returns a bearer token for it.
func CreateTestAdmin(t *testing.T, conn *sql.DB, cfg cliparse.Config) string {
	t.Helper()

	id, _ := auth.GenerateID(16)
	hashed, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}
	_, err = conn.Exec(`
		INSERT INTO users (id, username, hashed_password, is_admin)
		VALUES ($1, $2, $3, TRUE)
	`, id, cfg.AdminUsername, hashed)
	if err != nil {
		t.Fatalf("Failed to create test admin: %v", err)
	}

	token, err := auth.CreateAccessToken(cfg.AdminUsername, cfg.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create test token: %v", err)
	}
	return token
}

// CountRows returns the row count of a table.
func CountRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
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

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
