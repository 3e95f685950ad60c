package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"teamtask/internal/admin"
	"teamtask/internal/collection"
	"teamtask/internal/config"
	"teamtask/internal/invite"
	"teamtask/internal/metrics"
	"teamtask/internal/notify"
	"teamtask/internal/remote"
	"teamtask/internal/session"
	"teamtask/internal/state"
)

// app wires the client components together for a single command invocation.
type app struct {
	cfg      *config.Config
	state    *state.Store
	sessions *session.Manager
	lists    *collection.Store
	invites  *invite.Workflow
	admin    *admin.Directory
}

// newApp loads config, opens local state, and restores any persisted session.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	} else {
		switch cfg.Log.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cipher, err := state.NewCipher(cfg.State.SealKey)
	if err != nil {
		return nil, fmt.Errorf("state.seal_key: %w", err)
	}

	if dir := filepath.Dir(cfg.State.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	store, err := state.Open(cfg.State.Path, cipher)
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}

	m := metrics.New()
	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	sessions := session.NewManager(cfg.API.BaseURL, httpClient, store, m)
	sessions.Restore()

	notifier := notify.Log{}
	lists := collection.NewStore(sessions, store, notifier, m)
	invites := invite.NewWorkflow(sessions, lists, notifier)
	directory := admin.NewDirectory(sessions, notifier)

	return &app{
		cfg:      cfg,
		state:    store,
		sessions: sessions,
		lists:    lists,
		invites:  invites,
		admin:    directory,
	}, nil
}

func (a *app) close() {
	if err := a.state.Close(); err != nil {
		slog.Warn("closing state", "error", err)
	}
}

// requireSession fails fast for commands that need an authenticated user.
func (a *app) requireSession() (*session.Session, error) {
	sess := a.sessions.Current()
	if sess == nil {
		return nil, fmt.Errorf("not logged in (run `teamtask login` first)")
	}
	return sess, nil
}

// checkAuth converts a rejected token into a forced sign-out. The in-memory
// and persisted session are both dropped so the next command starts
// unauthenticated instead of rendering cached data under a dead session.
func (a *app) checkAuth(err error) error {
	if remote.IsAuth(err) {
		a.sessions.Invalidate()
		return fmt.Errorf("your session is no longer valid, run `teamtask login` to sign in again")
	}
	return err
}

// confirm prompts on stdin unless --yes was given.
func confirm(prompt string) bool {
	if assumeYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
