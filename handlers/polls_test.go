// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/crowd-poll/models"
	"github.com/danielhkuo/crowd-poll/testutil"
)

func TestActivePolls(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewPollHandler(db, cfg)

	triviaID, _ := testutil.CreateTestPoll(t, db, cfg, models.TypeTrivia, true)
	surveyID, _ := testutil.CreateTestPoll(t, db, cfg, models.TypeSurvey, true)
	testutil.CreateTestPoll(t, db, cfg, models.TypePoll, false) // inactive, never listed

	archivedID, _ := testutil.CreateTestPoll(t, db, cfg, models.TypeTrivia, true)
	testutil.ArchiveTestPoll(t, db, archivedID)

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedIDs    []string
	}{
		{
			name:           "all active polls",
			query:          "",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{triviaID, surveyID},
		},
		{
			name:           "filtered by type",
			query:          "?type=trivia",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{triviaID},
		},
		{
			name:           "no matches for type",
			query:          "?type=poll",
			expectedStatus: http.StatusOK,
			expectedIDs:    []string{},
		},
		{
			name:           "unknown type",
			query:          "?type=quiz",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/poll/active"+tt.query, nil, nil)
			w := httptest.NewRecorder()

			handler.Active(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var summaries []models.PollSummary
			testutil.AssertJSON(t, w, &summaries)

			if len(summaries) != len(tt.expectedIDs) {
				t.Fatalf("Expected %d polls, got %d", len(tt.expectedIDs), len(summaries))
			}
			got := make(map[string]bool)
			for _, s := range summaries {
				got[s.ID] = true
			}
			for _, id := range tt.expectedIDs {
				if !got[id] {
					t.Errorf("Expected poll %s in listing", id)
				}
			}
		})
	}
}

func TestPollLookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewPollHandler(db, cfg)

	pollID, slug := testutil.CreateTestPoll(t, db, cfg, models.TypeTrivia, true)

	closedID, closedSlug := testutil.CreateTestPoll(t, db, cfg, models.TypeTrivia, false)
	_ = closedID

	t.Run("by slug", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/poll/by-slug?slug="+slug, nil, nil)
		w := httptest.NewRecorder()

		handler.BySlug(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)
		var s models.PollSummary
		testutil.AssertJSON(t, w, &s)
		if s.ID != pollID {
			t.Errorf("Expected poll %s, got %s", pollID, s.ID)
		}
	})

	t.Run("by title is case-insensitive", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/poll/by-title?title=TEST+POLL", nil, nil)
		w := httptest.NewRecorder()

		handler.ByTitle(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)
	})

	t.Run("type filter excludes mismatched poll", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/poll/by-slug?slug="+slug+"&type=survey", nil, nil)
		w := httptest.NewRecorder()

		handler.BySlug(w, req)

		testutil.AssertStatus(t, w, http.StatusNotFound)
		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Code != models.CodePollNotFound {
			t.Errorf("Expected code %s, got %s", models.CodePollNotFound, resp.Code)
		}
	})

	t.Run("inactive poll is not found", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/poll/by-slug?slug="+closedSlug, nil, nil)
		w := httptest.NewRecorder()

		handler.BySlug(w, req)

		testutil.AssertStatus(t, w, http.StatusNotFound)
	})

	t.Run("missing slug", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/poll/by-slug", nil, nil)
		w := httptest.NewRecorder()

		handler.BySlug(w, req)

		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}

func TestPollStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewPollHandler(db, cfg)

	_, activeSlug := testutil.CreateTestPoll(t, db, cfg, models.TypeTrivia, true)

	endedID, endedSlug := testutil.CreateTestPoll(t, db, cfg, models.TypeSurvey, false)
	_ = endedID

	tests := []struct {
		name         string
		slug         string
		wantExists   bool
		wantIsActive bool
	}{
		{"active poll", activeSlug, true, true},
		{"ended poll still reports existence", endedSlug, true, false},
		{"unknown slug", "no-such-slug", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("GET", "/poll/status/by-slug?slug="+tt.slug, nil, nil)
			w := httptest.NewRecorder()

			handler.StatusBySlug(w, req)

			// Status lookups always answer 200; the body carries the verdict.
			testutil.AssertStatus(t, w, http.StatusOK)

			var st models.PollStatus
			testutil.AssertJSON(t, w, &st)
			if st.Exists != tt.wantExists {
				t.Errorf("Expected exists=%v, got %v", tt.wantExists, st.Exists)
			}
			if st.IsActive != tt.wantIsActive {
				t.Errorf("Expected is_active=%v, got %v", tt.wantIsActive, st.IsActive)
			}
		})
	}
}

func TestPollDetail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewPollHandler(db, cfg)

	pollID, _ := testutil.CreateTestPoll(t, db, cfg, models.TypeTrivia, true)
	end := time.Now().Add(5 * time.Minute)
	testutil.SetPollEndTime(t, db, pollID, &end)

	q1, q1Choices := testutil.AddTestQuestion(t, db, pollID, 0, "What is Go?", "A language", "A board game", "Both")
	q2, _ := testutil.AddTestQuestion(t, db, pollID, 1, "Best mascot?", "Gopher", "Ferris")

	t.Run("full question tree", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/poll/"+pollID, nil, nil)
		req.SetPathValue("id", pollID)
		w := httptest.NewRecorder()

		handler.Detail(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)

		var detail models.PollDetail
		testutil.AssertJSON(t, w, &detail)

		if len(detail.Questions) != 2 {
			t.Fatalf("Expected 2 questions, got %d", len(detail.Questions))
		}
		if detail.Questions[0].ID != q1 || detail.Questions[1].ID != q2 {
			t.Error("Questions not in position order")
		}
		if len(detail.Questions[0].Choices) != 3 {
			t.Errorf("Expected 3 choices, got %d", len(detail.Questions[0].Choices))
		}
		if detail.Questions[0].Choices[0].ID != q1Choices[0] {
			t.Error("Choices not in position order")
		}
		if detail.EndTime == nil {
			t.Error("Expected end_time to be set")
		}
	})

	t.Run("correct answers are not exposed", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/poll/"+pollID, nil, nil)
		req.SetPathValue("id", pollID)
		w := httptest.NewRecorder()

		handler.Detail(w, req)

		testutil.AssertStatus(t, w, http.StatusOK)
		if strings.Contains(w.Body.String(), "is_correct") {
			t.Error("Detail response leaked is_correct")
		}
	})

	t.Run("inactive poll yields 404", func(t *testing.T) {
		inactiveID, _ := testutil.CreateTestPoll(t, db, cfg, models.TypeTrivia, false)

		req := testutil.MakeRequest("GET", "/poll/"+inactiveID, nil, nil)
		req.SetPathValue("id", inactiveID)
		w := httptest.NewRecorder()

		handler.Detail(w, req)

		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}
