// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/crowd-poll/client/api"
	"github.com/danielhkuo/crowd-poll/client/queue"
	"github.com/danielhkuo/crowd-poll/models"
)

// State is the controller's position in the participation lifecycle.
type State int

const (
	StateIdle State = iota
	StateJoining
	StateAnswering
	StateSubmitting
	StateConfirmed
	StateQueued
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateAnswering:
		return "answering"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateQueued:
		return "queued"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

var (
	// ErrNoSession means no join method resolved an active poll.
	ErrNoSession = errors.New("no active session found")
	// ErrSessionClosed means the target exists but stopped accepting
	// submissions.
	ErrSessionClosed = errors.New("session is closed")
	// ErrNameRequired is the local validation failure for a missing
	// participant name.
	ErrNameRequired = errors.New("participant name is required")
)

// ValidationError reports the first unanswered question blocking a
// manual submit. It never reaches the network.
type ValidationError struct {
	QuestionID   string
	QuestionText string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %q is unanswered", e.QuestionText)
}

// API is the server surface the controller consumes.
type API interface {
	ActivePolls(ctx context.Context, pollType string) ([]models.PollSummary, error)
	PollByTitle(ctx context.Context, title, pollType string) (*models.PollSummary, error)
	PollBySlug(ctx context.Context, slug, pollType string) (*models.PollSummary, error)
	StatusBySlug(ctx context.Context, slug string) (*models.PollStatus, error)
	StatusByTitle(ctx context.Context, title string) (*models.PollStatus, error)
	PollDetail(ctx context.Context, pollID string) (*models.PollDetail, error)
	Submit(ctx context.Context, pollID string, req models.SubmitRequest) error
}

// Enqueuer is the durable queue surface the controller hands failed
// submissions to.
type Enqueuer interface {
	Enqueue(ctx context.Context, pollID string, payload models.SubmitRequest) (queue.Entry, error)
}

// Controller drives one attendee session: join, answer, countdown,
// submit. One instance per session; all mutable session state lives
// here, never in package globals.
type Controller struct {
	api   API
	queue Enqueuer
	store ResumeStore

	mu              sync.Mutex
	state           State
	notice          string
	poll            *models.PollDetail
	participant     models.ParticipantCreate
	answers         map[string]string
	remaining       int
	countdownActive bool
	inFlight        bool
	submissionKey   string
}

// New creates an idle Controller.
func New(a API, q Enqueuer, store ResumeStore) *Controller {
	return &Controller{
		api:   a,
		queue: q,
		store: store,
		state: StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notice returns the latest user-facing message.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// Poll returns the joined poll detail, nil before Answering.
func (c *Controller) Poll() *models.PollDetail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poll
}

// JoinActive joins the first active poll of the given type.
func (c *Controller) JoinActive(ctx context.Context, pollType string, p models.ParticipantCreate) error {
	if p.Name == "" {
		return ErrNameRequired
	}
	c.setState(StateJoining)

	polls, err := c.api.ActivePolls(ctx, pollType)
	if err != nil {
		c.fail("could not reach the server; try again")
		return err
	}
	if len(polls) == 0 {
		c.fail("no active session found")
		return ErrNoSession
	}

	return c.enter(ctx, polls[0].ID, p)
}

// JoinByTitle resolves a poll by display title.
func (c *Controller) JoinByTitle(ctx context.Context, title, pollType string, p models.ParticipantCreate) error {
	if p.Name == "" {
		return ErrNameRequired
	}
	c.setState(StateJoining)

	summary, err := c.api.PollByTitle(ctx, title, pollType)
	if errors.Is(err, api.ErrNotFound) {
		return c.explainMiss(ctx, func(ctx context.Context) (*models.PollStatus, error) {
			return c.api.StatusByTitle(ctx, title)
		})
	}
	if err != nil {
		c.fail("could not reach the server; try again")
		return err
	}

	return c.enter(ctx, summary.ID, p)
}

// JoinBySlug resolves a bare join code, trying each poll type in the
// fixed fallback order before concluding nothing matches.
func (c *Controller) JoinBySlug(ctx context.Context, slug string, p models.ParticipantCreate) error {
	if p.Name == "" {
		return ErrNameRequired
	}
	c.setState(StateJoining)

	for _, pollType := range models.PollTypes {
		summary, err := c.api.PollBySlug(ctx, slug, pollType)
		if err == nil {
			return c.enter(ctx, summary.ID, p)
		}
		if errors.Is(err, api.ErrNotFound) {
			continue
		}
		c.fail("could not reach the server; try again")
		return err
	}

	return c.explainMiss(ctx, func(ctx context.Context) (*models.PollStatus, error) {
		return c.api.StatusBySlug(ctx, slug)
	})
}

// explainMiss distinguishes "closed" from "never existed" for the
// re-prompt message.
func (c *Controller) explainMiss(ctx context.Context, status func(context.Context) (*models.PollStatus, error)) error {
	st, err := status(ctx)
	if err == nil && st.Exists {
		c.fail("this session has ended and is no longer accepting answers")
		return ErrSessionClosed
	}
	c.fail("no active session found")
	return ErrNoSession
}

// Resume re-enters Answering from a persisted marker, if one exists.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	marker, ok, err := c.store.Load()
	if err != nil || !ok {
		return false, err
	}

	c.setState(StateJoining)
	if err := c.enter(ctx, marker.PollID, marker.Participant); err != nil {
		return false, err
	}
	return true, nil
}

// enter fetches the poll detail, persists the resume marker, and moves
// to Answering with the countdown armed.
func (c *Controller) enter(ctx context.Context, pollID string, p models.ParticipantCreate) error {
	detail, err := c.api.PollDetail(ctx, pollID)
	if errors.Is(err, api.ErrNotFound) {
		c.fail("this session has ended and is no longer accepting answers")
		return ErrSessionClosed
	}
	if err != nil {
		c.fail("could not reach the server; try again")
		return err
	}

	if err := c.store.Save(Marker{PollID: pollID, Participant: p}); err != nil {
		slog.Warn("failed to persist resume marker", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.poll = detail
	c.participant = p
	c.answers = make(map[string]string)
	c.state = StateAnswering
	c.notice = ""

	// The countdown is derived once here, not re-derived from the wall
	// clock on every tick.
	if detail.EndTime != nil {
		secs := int(time.Until(*detail.EndTime).Round(time.Second) / time.Second)
		if secs < 0 {
			secs = 0
		}
		c.remaining = secs
		c.countdownActive = true
	}

	slog.Info("joined session", "poll_id", pollID, "questions", len(detail.Questions))
	return nil
}

// Answer records a selection. Rejected sessions keep accepting answers
// so the attendee can fix and retry.
func (c *Controller) Answer(questionID, choiceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAnswering && c.state != StateRejected {
		return fmt.Errorf("cannot answer in state %s", c.state)
	}

	for _, q := range c.poll.Questions {
		if q.ID != questionID {
			continue
		}
		for _, ch := range q.Choices {
			if ch.ID == choiceID {
				c.answers[questionID] = choiceID
				return nil
			}
		}
		return fmt.Errorf("choice %s does not belong to question %s", choiceID, questionID)
	}
	return fmt.Errorf("unknown question %s", questionID)
}

// Remaining returns the countdown in whole seconds (0 when no deadline).
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// HasDeadline reports whether a countdown is or was running.
func (c *Controller) HasDeadline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poll != nil && c.poll.EndTime != nil
}

// CountdownLabel renders the countdown as MM:SS.
func (c *Controller) CountdownLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("%02d:%02d", c.remaining/60, c.remaining%60)
}

// Tick advances the countdown by one second. When it reaches zero the
// timer is cancelled first and a single automatic submit fires with
// whatever answers are selected; unanswered questions are omitted.
// Returns true when this tick triggered the auto-submit.
func (c *Controller) Tick(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if !c.countdownActive || (c.state != StateAnswering && c.state != StateRejected) {
		c.mu.Unlock()
		return false, nil
	}

	c.remaining--
	if c.remaining > 0 {
		c.mu.Unlock()
		return false, nil
	}
	c.remaining = 0
	// Cancel before submitting so no second auto-submit can fire.
	c.countdownActive = false
	c.mu.Unlock()

	return true, c.submit(ctx, false)
}

// Submit is the user-initiated submit. It refuses partial answer sets,
// reporting the first unanswered question instead.
func (c *Controller) Submit(ctx context.Context) error {
	return c.submit(ctx, true)
}

func (c *Controller) submit(ctx context.Context, manual bool) error {
	c.mu.Lock()

	if c.inFlight || c.state == StateSubmitting {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateAnswering && c.state != StateRejected {
		c.mu.Unlock()
		return fmt.Errorf("cannot submit in state %s", c.state)
	}

	if manual {
		for _, q := range c.poll.Questions {
			if _, ok := c.answers[q.ID]; !ok {
				c.mu.Unlock()
				return &ValidationError{QuestionID: q.ID, QuestionText: q.Text}
			}
		}
	}

	// The countdown must be dead before any submit path proceeds.
	c.countdownActive = false
	c.inFlight = true
	c.state = StateSubmitting

	// One submission key per session so a retry after queuing cannot
	// double-count.
	if c.submissionKey == "" {
		c.submissionKey = uuid.NewString()
	}

	participant := c.participant
	participant.SubmissionKey = c.submissionKey

	votes := make([]models.VoteCreate, 0, len(c.answers))
	for _, q := range c.poll.Questions {
		if choiceID, ok := c.answers[q.ID]; ok {
			votes = append(votes, models.VoteCreate{QuestionID: q.ID, ChoiceID: choiceID})
		}
	}

	pollID := c.poll.ID
	payload := models.SubmitRequest{Participant: participant, Votes: votes}
	c.mu.Unlock()

	err := c.api.Submit(ctx, pollID, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	switch {
	case err == nil, api.IsAlreadySubmitted(err):
		c.state = StateConfirmed
		c.notice = "thanks! your answers were recorded"
		c.clearMarker()
		slog.Info("submission confirmed", "poll_id", pollID)
		return nil

	case api.IsConnectivity(err):
		if _, qerr := c.queue.Enqueue(ctx, pollID, payload); qerr != nil {
			// Storage failure on top of a network failure: stay
			// answerable rather than losing the attempt silently.
			c.state = StateAnswering
			c.notice = "could not save your answers; please retry"
			return qerr
		}
		c.state = StateQueued
		c.notice = "you're offline; your answers are queued and will send automatically"
		c.clearMarker()
		slog.Info("submission queued", "poll_id", pollID)
		return nil

	default:
		c.state = StateRejected
		var rej *api.RejectionError
		if errors.As(err, &rej) && rej.Message != "" {
			c.notice = rej.Message
		} else {
			c.notice = "the server rejected this submission"
		}
		slog.Warn("submission rejected", "poll_id", pollID, "error", err)
		return err
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// fail returns the controller to Idle with a user-facing explanation.
func (c *Controller) fail(notice string) {
	c.mu.Lock()
	c.state = StateIdle
	c.notice = notice
	c.mu.Unlock()
}

// clearMarker is called with c.mu held.
func (c *Controller) clearMarker() {
	if err := c.store.Clear(); err != nil {
		slog.Warn("failed to clear resume marker", "error", err)
	}
}
