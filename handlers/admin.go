// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/crowd-poll/auth"
	"github.com/danielhkuo/crowd-poll/cliparse"
	"github.com/danielhkuo/crowd-poll/db"
	"github.com/danielhkuo/crowd-poll/middleware"
	"github.com/danielhkuo/crowd-poll/models"
)

const tokenTTL = time.Hour

type AdminHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewAdminHandler(sqlDB *sql.DB, cfg cliparse.Config) *AdminHandler {
	return &AdminHandler{db: sqlDB, cfg: cfg}
}

// EnsureDefaultAdmin seeds the configured admin user when no admin
// account exists yet. Called once at server startup.
func EnsureDefaultAdmin(sqlDB *sql.DB, cfg cliparse.Config) error {
	var exists bool
	err := sqlDB.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE is_admin = TRUE)`).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	userID, err := auth.GenerateID(16)
	if err != nil {
		return err
	}
	hashed, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	_, err = sqlDB.Exec(`
		INSERT INTO users (id, username, hashed_password, is_admin)
		VALUES ($1, $2, $3, TRUE)
	`, userID, cfg.AdminUsername, hashed)
	if err != nil {
		return err
	}

	slog.Info("default admin created", "username", cfg.AdminUsername)
	return nil
}

// Login handles POST /admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var hashed string
	err := h.db.QueryRow(`
		SELECT hashed_password FROM users WHERE username = $1 AND is_admin = TRUE
	`, req.Username).Scan(&hashed)

	if err == sql.ErrNoRows || (err == nil && auth.VerifyPassword(req.Password, hashed) != nil) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Incorrect username or password")
		return
	}
	if err != nil {
		slog.Error("failed to query user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	token, err := auth.CreateAccessToken(req.Username, h.cfg.JWTSecret, tokenTTL)
	if err != nil {
		slog.Error("failed to create access token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to log in")
		return
	}

	slog.Info("admin logged in", "username", req.Username)

	middleware.JSONResponse(w, http.StatusOK, models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// CreatePoll handles POST /admin/polls
// Creates the poll with its full question/choice tree in one transaction.
func (h *AdminHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.PollType == "" {
		req.PollType = models.TypeTrivia
	}
	if !models.ValidPollType(req.PollType) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "unknown poll type")
		return
	}
	if len(req.Questions) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "at least one question is required")
		return
	}
	for _, q := range req.Questions {
		if q.Text == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "question text is required")
			return
		}
		if len(q.Choices) < 2 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "each question needs at least 2 choices")
			return
		}
	}

	pollID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate poll ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = auth.GenerateSlug(pollID, h.cfg.SlugSalt)
	}

	var endTime sql.NullString
	if req.EndTime != nil {
		endTime = sql.NullString{String: db.FormatTime(*req.EndTime), Valid: true}
	}

	creator := r.Header.Get("X-Admin-User")

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	var creatorID sql.NullString
	if creator != "" {
		var id string
		if err := tx.QueryRow(`SELECT id FROM users WHERE username = $1`, creator).Scan(&id); err == nil {
			creatorID = sql.NullString{String: id, Valid: true}
		}
	}

	_, err = tx.Exec(`
		INSERT INTO polls (id, title, description, slug, poll_type, is_active, archived, end_time, created_by)
		VALUES ($1, $2, $3, $4, $5, FALSE, FALSE, $6, $7)
	`, pollID, req.Title, req.Description, slug, req.PollType, endTime, creatorID)

	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorResponse(w, http.StatusConflict, "Slug already in use")
			return
		}
		slog.Error("failed to insert poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	for qi, q := range req.Questions {
		questionID, err := auth.GenerateID(12)
		if err != nil {
			slog.Error("failed to generate question ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}

		_, err = tx.Exec(`
			INSERT INTO questions (id, poll_id, position, text)
			VALUES ($1, $2, $3, $4)
		`, questionID, pollID, qi, q.Text)
		if err != nil {
			slog.Error("failed to insert question", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
			return
		}

		for ci, c := range q.Choices {
			choiceID, err := auth.GenerateID(12)
			if err != nil {
				slog.Error("failed to generate choice ID", "error", err)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
				return
			}

			_, err = tx.Exec(`
				INSERT INTO choices (id, question_id, position, text, is_correct)
				VALUES ($1, $2, $3, $4, $5)
			`, choiceID, questionID, ci, c.Text, c.IsCorrect)
			if err != nil {
				slog.Error("failed to insert choice", "error", err)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
				return
			}
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit poll creation", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create poll")
		return
	}

	slog.Info("poll created", "poll_id", pollID, "slug", slug, "questions", len(req.Questions))

	middleware.JSONResponse(w, http.StatusCreated, models.Poll{
		ID:       pollID,
		Title:    req.Title,
		Slug:     &slug,
		PollType: req.PollType,
		EndTime:  req.EndTime,
	})
}

// scanPoll reads a full poll row
func scanPoll(row interface{ Scan(...interface{}) error }) (models.Poll, error) {
	var p models.Poll
	var description, slug, startTime, endTime, createdBy sql.NullString
	err := row.Scan(&p.ID, &p.Title, &description, &slug, &p.PollType,
		&p.IsActive, &p.Archived, &startTime, &endTime, &createdBy)
	if err != nil {
		return p, err
	}
	p.Description = description.String
	if slug.Valid {
		p.Slug = &slug.String
	}
	p.StartTime = nullableTime(startTime)
	p.EndTime = nullableTime(endTime)
	p.CreatedBy = createdBy.String
	return p, nil
}

const pollColumns = "id, title, description, slug, poll_type, is_active, archived, start_time, end_time, created_by"

// ListPolls handles GET /admin/polls
func (h *AdminHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query("SELECT " + pollColumns + " FROM polls ORDER BY title")
	if err != nil {
		slog.Error("failed to query polls", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	polls := []models.Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			slog.Error("failed to scan poll", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		polls = append(polls, p)
	}

	middleware.JSONResponse(w, http.StatusOK, polls)
}

// GetPoll handles GET /admin/polls/{id} - any lifecycle state
func (h *AdminHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	p, err := scanPoll(h.db.QueryRow("SELECT "+pollColumns+" FROM polls WHERE id = $1", pollID))
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, p)
}

// Activate handles POST /admin/polls/{id}/activate
// Sets the start time to now; the optional end time in the body is the
// deadline attendee countdowns race against.
func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	var req models.ActivatePollRequest
	if r.ContentLength > 0 {
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	var archived bool
	err := h.db.QueryRow(`SELECT archived FROM polls WHERE id = $1`, pollID).Scan(&archived)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if archived {
		middleware.ErrorResponse(w, http.StatusConflict, "Cannot activate an archived poll")
		return
	}

	var endTime sql.NullString
	if req.EndTime != nil {
		endTime = sql.NullString{String: db.FormatTime(*req.EndTime), Valid: true}
	}

	if endTime.Valid {
		_, err = h.db.Exec(`
			UPDATE polls SET is_active = TRUE, start_time = $1, end_time = $2 WHERE id = $3
		`, db.FormatTime(time.Now()), endTime, pollID)
	} else {
		_, err = h.db.Exec(`
			UPDATE polls SET is_active = TRUE, start_time = $1 WHERE id = $2
		`, db.FormatTime(time.Now()), pollID)
	}
	if err != nil {
		slog.Error("failed to activate poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to activate poll")
		return
	}

	slog.Info("poll activated", "poll_id", pollID)
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"detail": "Poll activated"})
}

// Deactivate handles POST /admin/polls/{id}/deactivate
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setLifecycle(w, r, `
		UPDATE polls SET is_active = FALSE, end_time = $1 WHERE id = $2
	`, "Poll deactivated", true)
}

// Archive handles POST /admin/polls/{id}/archive
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setLifecycle(w, r, `
		UPDATE polls SET is_active = FALSE, archived = TRUE WHERE id = $1
	`, "Poll archived", false)
}

func (h *AdminHandler) setLifecycle(w http.ResponseWriter, r *http.Request, query, detail string, stampTime bool) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	args := []interface{}{pollID}
	if stampTime {
		args = []interface{}{db.FormatTime(time.Now()), pollID}
	}

	res, err := h.db.Exec(query, args...)
	if err != nil {
		slog.Error("failed to update poll lifecycle", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update poll")
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	slog.Info("poll lifecycle updated", "poll_id", pollID, "detail", detail)
	middleware.JSONResponse(w, http.StatusOK, map[string]string{"detail": detail})
}

// Results handles GET /admin/polls/{id}/results
// Per-choice vote counts, question by question.
func (h *AdminHandler) Results(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	var title string
	err := h.db.QueryRow(`SELECT title FROM polls WHERE id = $1`, pollID).Scan(&title)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	rows, err := h.db.Query(`
		SELECT q.id, q.text, c.id, c.text, c.is_correct, COUNT(v.id)
		FROM questions q
		JOIN choices c ON c.question_id = q.id
		LEFT JOIN votes v ON v.choice_id = c.id
		WHERE q.poll_id = $1
		GROUP BY q.id, q.text, q.position, c.id, c.text, c.is_correct, c.position
		ORDER BY q.position, c.position
	`, pollID)
	if err != nil {
		slog.Error("failed to query results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	results := []models.QuestionResult{}
	for rows.Next() {
		var qID, qText string
		var cr models.ChoiceResult
		if err := rows.Scan(&qID, &qText, &cr.ChoiceID, &cr.ChoiceText, &cr.IsCorrect, &cr.Votes); err != nil {
			slog.Error("failed to scan result row", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}

		n := len(results)
		if n == 0 || results[n-1].QuestionID != qID {
			results = append(results, models.QuestionResult{QuestionID: qID, QuestionText: qText})
			n++
		}
		results[n-1].Choices = append(results[n-1].Choices, cr)
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		PollID:  pollID,
		Title:   title,
		Results: results,
	})
}
