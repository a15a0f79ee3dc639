// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Command attendee is the terminal participation client. It keeps a
// local profile directory with a response cache, a durable submission
// queue, and a resume marker, so answers survive restarts and network
// loss.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/crowd-poll/client/api"
	"github.com/danielhkuo/crowd-poll/client/cache"
	"github.com/danielhkuo/crowd-poll/client/queue"
	"github.com/danielhkuo/crowd-poll/client/session"
	"github.com/danielhkuo/crowd-poll/client/syncer"
	"github.com/danielhkuo/crowd-poll/models"
	"github.com/danielhkuo/crowd-poll/webassets"
)

type config struct {
	ServerURL    string `env:"SERVER_URL" envDefault:"http://localhost:3318"`
	ProfileDir   string `env:"PROFILE_DIR"`
	CacheVersion string `env:"CACHE_VERSION" envDefault:"v1"`
}

type joinFlags struct {
	slug     string
	title    string
	pollType string
	name     string
	company  string
	email    string
	flush    bool
}

func parseArgs(args []string) (joinFlags, error) {
	var f joinFlags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-slug", "--slug":
			i++
			if i >= len(args) {
				return f, errors.New("missing value for -slug")
			}
			f.slug = args[i]
		case "-title", "--title":
			i++
			if i >= len(args) {
				return f, errors.New("missing value for -title")
			}
			f.title = args[i]
		case "-type", "--type":
			i++
			if i >= len(args) {
				return f, errors.New("missing value for -type")
			}
			if !models.ValidPollType(args[i]) {
				return f, fmt.Errorf("invalid poll type %q", args[i])
			}
			f.pollType = args[i]
		case "-name", "--name":
			i++
			if i >= len(args) {
				return f, errors.New("missing value for -name")
			}
			f.name = args[i]
		case "-company", "--company":
			i++
			if i >= len(args) {
				return f, errors.New("missing value for -company")
			}
			f.company = args[i]
		case "-email", "--email":
			i++
			if i >= len(args) {
				return f, errors.New("missing value for -email")
			}
			f.email = args[i]
		case "-flush", "--flush":
			f.flush = true
		default:
			return f, fmt.Errorf("unknown flag %q", args[i])
		}
	}
	return f, nil
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("Error parsing environment", "error", err)
		os.Exit(1)
	}
	if cfg.ProfileDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		cfg.ProfileDir = filepath.Join(base, "crowd-poll")
	}

	flags, err := parseArgs(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.ProfileDir, 0o700); err != nil {
		slog.Error("profile directory creation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, err := queue.Open(filepath.Join(cfg.ProfileDir, "queue.db"))
	if err != nil {
		slog.Error("queue open failed", "error", err)
		os.Exit(1)
	}
	defer q.Close()

	store, err := cache.Open(filepath.Join(cfg.ProfileDir, "cache.db"), cache.Options{
		Version:  cfg.CacheVersion,
		BaseURL:  cfg.ServerURL,
		Manifest: webassets.ShellManifest,
	})
	if err != nil {
		slog.Error("cache open failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// A failed install leaves the previous version active, which is
	// exactly what an offline start needs.
	if err := store.Install(ctx); err != nil {
		slog.Warn("shell install skipped", "error", err)
	} else if err := store.Activate(ctx); err != nil {
		slog.Warn("cache activation failed", "error", err)
	}

	client := api.New(cfg.ServerURL, store)

	if flags.flush {
		n, err := q.Flush(ctx, client.Submit)
		if err != nil {
			slog.Error("queue flush failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("flushed %d queued submission(s)\n", n)
		return
	}

	sync := syncer.New(client.Health, q, client.Submit, syncer.Options{})
	q.SetWake(sync.Wake)
	sync.Start(ctx)

	go func() {
		for range store.Subscribe() {
			sync.Wake()
		}
	}()
	go func() {
		for msg := range sync.Notices() {
			fmt.Println("* " + msg)
		}
	}()

	ctrl := session.New(client, q, session.NewFileStore(filepath.Join(cfg.ProfileDir, "session.json")))

	if err := run(ctx, ctrl, flags); err != nil && ctx.Err() == nil {
		slog.Error("session ended with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, ctrl *session.Controller, flags joinFlags) error {
	in := bufio.NewScanner(os.Stdin)

	resumed, err := ctrl.Resume(ctx)
	if err != nil && !errors.Is(err, session.ErrSessionClosed) {
		slog.Warn("resume failed", "error", err)
	}
	if resumed {
		fmt.Println("resuming your previous session")
	} else {
		if err := join(ctx, ctrl, flags, in); err != nil {
			return err
		}
	}

	return answerLoop(ctx, ctrl, in)
}

func join(ctx context.Context, ctrl *session.Controller, flags joinFlags, in *bufio.Scanner) error {
	participant := models.ParticipantCreate{
		Name:    flags.name,
		Company: flags.company,
		Email:   flags.email,
	}
	for participant.Name == "" {
		fmt.Print("your name: ")
		if !in.Scan() {
			return errors.New("no name provided")
		}
		participant.Name = strings.TrimSpace(in.Text())
	}

	for {
		var err error
		switch {
		case flags.slug != "":
			err = ctrl.JoinBySlug(ctx, flags.slug, participant)
		case flags.title != "":
			err = ctrl.JoinByTitle(ctx, flags.title, flags.pollType, participant)
		default:
			err = ctrl.JoinActive(ctx, flags.pollType, participant)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrSessionClosed) {
			fmt.Println(ctrl.Notice())
			fmt.Print("enter a join code (blank to quit): ")
			if !in.Scan() {
				return err
			}
			code := strings.TrimSpace(in.Text())
			if code == "" {
				return err
			}
			flags.slug, flags.title = code, ""
			continue
		}
		return err
	}
}

func answerLoop(ctx context.Context, ctrl *session.Controller, in *bufio.Scanner) error {
	poll := ctrl.Poll()
	fmt.Printf("\n%s\n", poll.Title)
	if poll.Description != "" {
		fmt.Println(poll.Description)
	}
	printQuestions(poll)

	done := make(chan struct{})
	if ctrl.HasDeadline() {
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-done:
					return
				case <-ticker.C:
					fired, err := ctrl.Tick(ctx)
					if fired {
						fmt.Println("\ntime's up; submitting your answers")
						if err != nil {
							fmt.Println(ctrl.Notice())
						}
						return
					}
				}
			}
		}()
	}
	defer close(done)

	for {
		if state := ctrl.State(); state == session.StateConfirmed || state == session.StateQueued {
			fmt.Println(ctrl.Notice())
			return nil
		}

		if ctrl.HasDeadline() {
			fmt.Printf("[%s] ", ctrl.CountdownLabel())
		}
		fmt.Print("answer as '<question#> <choice#>', or 'submit' / 'quit': ")
		if !in.Scan() {
			return ctx.Err()
		}
		line := strings.TrimSpace(in.Text())

		switch {
		case line == "":
			continue
		case line == "quit":
			return nil
		case line == "submit":
			err := ctrl.Submit(ctx)
			var v *session.ValidationError
			if errors.As(err, &v) {
				fmt.Println("please answer: " + v.QuestionText)
				continue
			}
			if err != nil {
				fmt.Println(ctrl.Notice())
				continue
			}
			fmt.Println(ctrl.Notice())
			return nil
		default:
			if err := selectAnswer(ctrl, line); err != nil {
				fmt.Println(err)
			}
		}
	}
}

func printQuestions(poll *models.PollDetail) {
	for qi, q := range poll.Questions {
		fmt.Printf("\n%d. %s\n", qi+1, q.Text)
		for ci, ch := range q.Choices {
			fmt.Printf("   %d) %s\n", ci+1, ch.Text)
		}
	}
}

func selectAnswer(ctrl *session.Controller, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return errors.New("expected '<question#> <choice#>'")
	}
	qn, err := strconv.Atoi(fields[0])
	if err != nil {
		return errors.New("expected a question number")
	}
	cn, err := strconv.Atoi(fields[1])
	if err != nil {
		return errors.New("expected a choice number")
	}

	poll := ctrl.Poll()
	if qn < 1 || qn > len(poll.Questions) {
		return fmt.Errorf("no question %d", qn)
	}
	q := poll.Questions[qn-1]
	if cn < 1 || cn > len(q.Choices) {
		return fmt.Errorf("question %d has no choice %d", qn, cn)
	}
	return ctrl.Answer(q.ID, q.Choices[cn-1].ID)
}
