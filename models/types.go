// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Poll type constants
const (
	TypeTrivia = "trivia"
	TypeSurvey = "survey"
	TypePoll   = "poll"
)

// PollTypes is the fixed fallback order used when resolving a bare slug.
var PollTypes = []string{TypeTrivia, TypeSurvey, TypePoll}

// ValidPollType reports whether t is one of the known poll types.
func ValidPollType(t string) bool {
	for _, pt := range PollTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// Machine-readable error codes returned alongside the HTTP status
const (
	CodePollNotFound     = "poll_not_found"
	CodePollClosed       = "poll_closed"
	CodeEmptyVotes       = "empty_votes"
	CodeInvalidVote      = "invalid_vote"
	CodeAlreadySubmitted = "already_submitted"
	CodeInvalidRequest   = "invalid_request"
)

// Request types

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChoiceCreate struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct,omitempty"`
}

type QuestionCreate struct {
	Text    string         `json:"text"`
	Choices []ChoiceCreate `json:"choices"`
}

type CreatePollRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Slug        string           `json:"slug,omitempty"`
	PollType    string           `json:"poll_type"`
	EndTime     *time.Time       `json:"end_time,omitempty"`
	Questions   []QuestionCreate `json:"questions"`
}

type ActivatePollRequest struct {
	EndTime *time.Time `json:"end_time,omitempty"`
}

type ParticipantCreate struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	// SubmissionKey is a client-generated opaque key used to detect
	// redelivery of the same answer set.
	SubmissionKey string `json:"submission_key,omitempty"`
}

type VoteCreate struct {
	QuestionID string `json:"question_id"`
	ChoiceID   string `json:"choice_id"`
}

type SubmitRequest struct {
	Participant ParticipantCreate `json:"participant"`
	Votes       []VoteCreate      `json:"votes"`
}

// Response types

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type SubmitResponse struct {
	ParticipantID string `json:"participant_id"`
	Detail        string `json:"detail"`
}

type PollSummary struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	PollType string     `json:"poll_type"`
	Slug     *string    `json:"slug,omitempty"`
	EndTime  *time.Time `json:"end_time,omitempty"`
}

// PollStatus is returned by the status lookups so a client can tell an
// ended session apart from one that never existed.
type PollStatus struct {
	Exists   bool   `json:"exists"`
	IsActive bool   `json:"is_active"`
	Archived bool   `json:"archived"`
	Title    string `json:"title,omitempty"`
	PollType string `json:"poll_type,omitempty"`
}

type ChoiceRead struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuestionRead struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Choices []ChoiceRead `json:"choices"`
}

type PollDetail struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	PollType    string         `json:"poll_type"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Questions   []QuestionRead `json:"questions"`
}

type ChoiceResult struct {
	ChoiceID   string `json:"choice_id"`
	ChoiceText string `json:"choice_text"`
	IsCorrect  bool   `json:"is_correct"`
	Votes      int    `json:"votes"`
}

type QuestionResult struct {
	QuestionID   string         `json:"question_id"`
	QuestionText string         `json:"question_text"`
	Choices      []ChoiceResult `json:"choices"`
}

type ResultsResponse struct {
	PollID  string           `json:"poll_id"`
	Title   string           `json:"title"`
	Results []QuestionResult `json:"results"`
}

// Domain types

type Poll struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Slug        *string    `json:"slug,omitempty"`
	PollType    string     `json:"poll_type"`
	IsActive    bool       `json:"is_active"`
	Archived    bool       `json:"archived"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	CreatedBy   string     `json:"-"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
