// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/crowd-poll/auth"
	"github.com/danielhkuo/crowd-poll/cliparse"
	"github.com/danielhkuo/crowd-poll/db"
	"github.com/danielhkuo/crowd-poll/middleware"
	"github.com/danielhkuo/crowd-poll/models"
)

type VotingHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewVotingHandler(sqlDB *sql.DB, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{db: sqlDB, cfg: cfg}
}

// isUniqueViolation matches constraint errors from both wired drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // modernc sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") // lib/pq
}

// Submit handles POST /poll/{id}/submit
//
// The whole answer set is recorded in one transaction or not at all.
// Redelivery of the same payload (same submission_key) is rejected with
// the already_submitted code so a retrying queue can retire the entry.
func (h *VotingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	var req models.SubmitRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorCode(w, http.StatusBadRequest, models.CodeInvalidRequest, "Invalid JSON")
		return
	}

	if req.Participant.Name == "" {
		middleware.ErrorCode(w, http.StatusBadRequest, models.CodeInvalidRequest, "participant name is required")
		return
	}
	if len(req.Votes) == 0 {
		middleware.ErrorCode(w, http.StatusBadRequest, models.CodeEmptyVotes, "votes cannot be empty")
		return
	}

	// Load poll lifecycle state
	var isActive, archived bool
	var startTime, endTime sql.NullString
	err := h.db.QueryRow(`
		SELECT is_active, archived, start_time, end_time FROM polls WHERE id = $1
	`, pollID).Scan(&isActive, &archived, &startTime, &endTime)

	if err == sql.ErrNoRows {
		middleware.ErrorCode(w, http.StatusNotFound, models.CodePollNotFound, "Poll not found")
		return
	}
	if err != nil {
		slog.Error("failed to query poll", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	now := time.Now()
	open := isActive && !archived
	if t := nullableTime(startTime); open && t != nil && now.Before(*t) {
		open = false
	}
	if t := nullableTime(endTime); open && t != nil && !now.Before(*t) {
		open = false
	}
	if !open {
		middleware.ErrorCode(w, http.StatusConflict, models.CodePollClosed, "Poll is not open for submissions")
		return
	}

	// Load the valid (question, choice) pairs for this poll
	rows, err := h.db.Query(`
		SELECT q.id, c.id
		FROM questions q
		JOIN choices c ON c.question_id = q.id
		WHERE q.poll_id = $1
	`, pollID)
	if err != nil {
		slog.Error("failed to query choices", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	validChoices := make(map[string]map[string]bool)
	for rows.Next() {
		var qID, cID string
		if err := rows.Scan(&qID, &cID); err != nil {
			slog.Error("failed to scan choice", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if validChoices[qID] == nil {
			validChoices[qID] = make(map[string]bool)
		}
		validChoices[qID][cID] = true
	}

	answered := make(map[string]bool)
	for _, v := range req.Votes {
		if !validChoices[v.QuestionID][v.ChoiceID] {
			middleware.ErrorCode(w, http.StatusBadRequest, models.CodeInvalidVote,
				"choice "+v.ChoiceID+" is not valid for question "+v.QuestionID)
			return
		}
		if answered[v.QuestionID] {
			middleware.ErrorCode(w, http.StatusBadRequest, models.CodeInvalidVote,
				"multiple answers for question "+v.QuestionID)
			return
		}
		answered[v.QuestionID] = true
	}

	participantID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate participant ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit votes")
		return
	}

	var submissionKey sql.NullString
	if req.Participant.SubmissionKey != "" {
		submissionKey = sql.NullString{String: req.Participant.SubmissionKey, Valid: true}
	}

	// Participant creation and all vote inserts are one atomic unit
	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO participants (id, poll_id, full_name, company, email, submission_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, participantID, pollID, req.Participant.Name, req.Participant.Company,
		req.Participant.Email, submissionKey, db.FormatTime(now))

	if err != nil {
		if isUniqueViolation(err) {
			middleware.ErrorCode(w, http.StatusConflict, models.CodeAlreadySubmitted,
				"This submission was already recorded")
			return
		}
		slog.Error("failed to insert participant", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit votes")
		return
	}

	for _, v := range req.Votes {
		voteID, err := auth.GenerateID(16)
		if err != nil {
			slog.Error("failed to generate vote ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit votes")
			return
		}

		_, err = tx.Exec(`
			INSERT INTO votes (id, participant_id, question_id, choice_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, voteID, participantID, v.QuestionID, v.ChoiceID, db.FormatTime(now))

		if err != nil {
			if isUniqueViolation(err) {
				middleware.ErrorCode(w, http.StatusConflict, models.CodeAlreadySubmitted,
					"An answer for this question was already recorded")
				return
			}
			slog.Error("failed to insert vote", "error", err, "poll_id", pollID)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit votes")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit submission", "error", err, "poll_id", pollID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to submit votes")
		return
	}

	slog.Info("votes submitted", "poll_id", pollID, "participant_id", participantID, "votes", len(req.Votes))

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitResponse{
		ParticipantID: participantID,
		Detail:        "Votes submitted successfully",
	})
}
