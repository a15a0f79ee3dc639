// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/crowd-poll/cliparse"
	"github.com/danielhkuo/crowd-poll/db"
	"github.com/danielhkuo/crowd-poll/middleware"
	"github.com/danielhkuo/crowd-poll/models"
)

type PollHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewPollHandler(sqlDB *sql.DB, cfg cliparse.Config) *PollHandler {
	return &PollHandler{db: sqlDB, cfg: cfg}
}

// nullableTime converts a stored nullable timestamp column
func nullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := db.ParseTime(s.String)
	if err != nil {
		slog.Warn("unparseable stored time", "value", s.String, "error", err)
		return nil
	}
	return &t
}

// scanSummary reads one poll summary row (id, title, poll_type, slug, end_time)
func scanSummary(row interface{ Scan(...interface{}) error }) (models.PollSummary, error) {
	var s models.PollSummary
	var slug, endTime sql.NullString
	if err := row.Scan(&s.ID, &s.Title, &s.PollType, &slug, &endTime); err != nil {
		return s, err
	}
	if slug.Valid {
		s.Slug = &slug.String
	}
	s.EndTime = nullableTime(endTime)
	return s, nil
}

const summaryColumns = "id, title, poll_type, slug, end_time"

// Active handles GET /poll/active?type=T
func (h *PollHandler) Active(w http.ResponseWriter, r *http.Request) {
	pollType := r.URL.Query().Get("type")
	if pollType != "" && !models.ValidPollType(pollType) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown poll type")
		return
	}

	query := "SELECT " + summaryColumns + " FROM polls WHERE is_active = TRUE AND archived = FALSE"
	args := []interface{}{}
	if pollType != "" {
		query += " AND poll_type = $1"
		args = append(args, pollType)
	}
	query += " ORDER BY title"

	rows, err := h.db.Query(query, args...)
	if err != nil {
		slog.Error("failed to query active polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	summaries := []models.PollSummary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			slog.Error("failed to scan poll", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		summaries = append(summaries, s)
	}

	middleware.JSONResponse(w, http.StatusOK, summaries)
}

// ByTitle handles GET /poll/by-title?title=S&type=T
func (h *PollHandler) ByTitle(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, "LOWER(title) = LOWER($1)", r.URL.Query().Get("title"), "title is required")
}

// BySlug handles GET /poll/by-slug?slug=S&type=T
func (h *PollHandler) BySlug(w http.ResponseWriter, r *http.Request) {
	h.lookup(w, r, "slug = $1", r.URL.Query().Get("slug"), "slug is required")
}

func (h *PollHandler) lookup(w http.ResponseWriter, r *http.Request, where, value, missingMsg string) {
	if value == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, missingMsg)
		return
	}
	pollType := r.URL.Query().Get("type")
	if pollType != "" && !models.ValidPollType(pollType) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown poll type")
		return
	}

	query := "SELECT " + summaryColumns + " FROM polls WHERE is_active = TRUE AND archived = FALSE AND " + where
	args := []interface{}{value}
	if pollType != "" {
		query += " AND poll_type = $2"
		args = append(args, pollType)
	}

	s, err := scanSummary(h.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		middleware.ErrorCode(w, http.StatusNotFound, models.CodePollNotFound, "Active poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to look up poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, s)
}

// StatusByTitle handles GET /poll/status/by-title?title=S
func (h *PollHandler) StatusByTitle(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, "LOWER(title) = LOWER($1)", r.URL.Query().Get("title"), "title is required")
}

// StatusBySlug handles GET /poll/status/by-slug?slug=S
func (h *PollHandler) StatusBySlug(w http.ResponseWriter, r *http.Request) {
	h.status(w, r, "slug = $1", r.URL.Query().Get("slug"), "slug is required")
}

// status reports existence regardless of lifecycle state so the client
// can word its "closed" vs "never existed" messages.
func (h *PollHandler) status(w http.ResponseWriter, r *http.Request, where, value, missingMsg string) {
	if value == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, missingMsg)
		return
	}

	var st models.PollStatus
	err := h.db.QueryRow(
		"SELECT title, poll_type, is_active, archived FROM polls WHERE "+where, value,
	).Scan(&st.Title, &st.PollType, &st.IsActive, &st.Archived)

	if err == sql.ErrNoRows {
		middleware.JSONResponse(w, http.StatusOK, models.PollStatus{Exists: false})
		return
	}
	if err != nil {
		slog.Error("failed to query poll status", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	st.Exists = true
	middleware.JSONResponse(w, http.StatusOK, st)
}

// Detail handles GET /poll/{id}
// Returns the full question/choice tree for an active poll. Correct
// answers are never included here.
func (h *PollHandler) Detail(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	var detail models.PollDetail
	var description, endTime sql.NullString
	err := h.db.QueryRow(`
		SELECT id, title, description, poll_type, end_time
		FROM polls
		WHERE id = $1 AND is_active = TRUE AND archived = FALSE
	`, pollID).Scan(&detail.ID, &detail.Title, &description, &detail.PollType, &endTime)

	if err == sql.ErrNoRows {
		middleware.ErrorCode(w, http.StatusNotFound, models.CodePollNotFound, "Active poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	detail.Description = description.String
	detail.EndTime = nullableTime(endTime)

	rows, err := h.db.Query(`
		SELECT q.id, q.text, c.id, c.text
		FROM questions q
		JOIN choices c ON c.question_id = q.id
		WHERE q.poll_id = $1
		ORDER BY q.position, c.position
	`, pollID)
	if err != nil {
		slog.Error("failed to query questions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	detail.Questions = []models.QuestionRead{}
	for rows.Next() {
		var qID, qText, cID, cText string
		if err := rows.Scan(&qID, &qText, &cID, &cText); err != nil {
			slog.Error("failed to scan question row", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		n := len(detail.Questions)
		if n == 0 || detail.Questions[n-1].ID != qID {
			detail.Questions = append(detail.Questions, models.QuestionRead{ID: qID, Text: qText})
			n++
		}
		q := &detail.Questions[n-1]
		q.Choices = append(q.Choices, models.ChoiceRead{ID: cID, Text: cText})
	}

	middleware.JSONResponse(w, http.StatusOK, detail)
}
