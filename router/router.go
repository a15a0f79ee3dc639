// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/crowd-poll/cliparse"
	"github.com/danielhkuo/crowd-poll/handlers"
	"github.com/danielhkuo/crowd-poll/middleware"
	"github.com/danielhkuo/crowd-poll/webassets"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(db, cfg)
	votingHandler := handlers.NewVotingHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db, cfg)

	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdmin(cfg.JWTSecret, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Public poll lookups. Static segments before the dynamic {id} route.
	mux.HandleFunc("GET /poll/active", middleware.WithLogging(pollHandler.Active))
	mux.HandleFunc("GET /poll/by-title", middleware.WithLogging(pollHandler.ByTitle))
	mux.HandleFunc("GET /poll/by-slug", middleware.WithLogging(pollHandler.BySlug))
	mux.HandleFunc("GET /poll/status/by-title", middleware.WithLogging(pollHandler.StatusByTitle))
	mux.HandleFunc("GET /poll/status/by-slug", middleware.WithLogging(pollHandler.StatusBySlug))
	mux.HandleFunc("GET /poll/{id}", middleware.WithLogging(pollHandler.Detail))

	// Vote submission (public)
	mux.HandleFunc("POST /poll/{id}/submit", middleware.WithLogging(votingHandler.Submit))

	// Admin surface
	mux.HandleFunc("POST /admin/login", middleware.WithLogging(adminHandler.Login))
	mux.HandleFunc("POST /admin/polls", admin(adminHandler.CreatePoll))
	mux.HandleFunc("GET /admin/polls", admin(adminHandler.ListPolls))
	mux.HandleFunc("GET /admin/polls/{id}", admin(adminHandler.GetPoll))
	mux.HandleFunc("POST /admin/polls/{id}/activate", admin(adminHandler.Activate))
	mux.HandleFunc("POST /admin/polls/{id}/deactivate", admin(adminHandler.Deactivate))
	mux.HandleFunc("POST /admin/polls/{id}/archive", admin(adminHandler.Archive))
	mux.HandleFunc("GET /admin/polls/{id}/results", admin(adminHandler.Results))

	// App shells and static assets (what the attendee cache installs)
	mux.Handle("GET /static/", http.FileServerFS(webassets.FS))
	mux.HandleFunc("GET /present", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(webassets.PresenterShell())
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(webassets.AttendeeShell())
	})

	return mux
}
