package session

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"teamtask/internal/apitest"
	"teamtask/internal/model"
	"teamtask/internal/state"
)

func openState(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoginFetchesProfileAndPersists(t *testing.T) {
	srv := apitest.New(t)
	teamID := 9
	seeded := srv.SeedUser(t, "Ada", "ada@example.com", "pw", model.RoleAdmin, &teamID)

	storage := openState(t)
	mgr := NewManager(srv.URL(), nil, storage, nil)

	sess, err := mgr.Login(context.Background(), "ada@example.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.Token == "" {
		t.Error("expected a token")
	}
	if sess.User.ID != seeded.ID || sess.User.Role != model.RoleAdmin {
		t.Errorf("unexpected profile: %+v", sess.User)
	}

	// A fresh manager over the same storage restores the identical session.
	mgr2 := NewManager(srv.URL(), nil, storage, nil)
	restored := mgr2.Restore()
	if restored == nil {
		t.Fatal("expected session to restore")
	}
	if restored.Token != sess.Token || restored.User.ID != sess.User.ID ||
		restored.User.Email != sess.User.Email || restored.User.Role != sess.User.Role {
		t.Errorf("restored session differs: %+v vs %+v", restored, sess)
	}
	if restored.User.TeamID == nil || *restored.User.TeamID != teamID {
		t.Errorf("restored team_id mismatch: %v", restored.User.TeamID)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@example.com", "pw", model.RoleUser, nil)

	mgr := NewManager(srv.URL(), nil, nil, nil)
	_, err := mgr.Login(context.Background(), "ada@example.com", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T", err)
	}
	// The remote's detail text must reach the user.
	if ae.Reason != "Incorrect email or password" {
		t.Errorf("expected remote detail, got %q", ae.Reason)
	}
	if mgr.Current() != nil {
		t.Error("no session should exist after a failed login")
	}
}

func TestLoginEmptyFieldsNoNetwork(t *testing.T) {
	srv := apitest.New(t)
	mgr := NewManager(srv.URL(), nil, nil, nil)

	if _, err := mgr.Login(context.Background(), "", "pw"); !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := mgr.Login(context.Background(), "a@b", ""); !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if srv.RequestCount() != 0 {
		t.Errorf("expected zero network calls, got %d", srv.RequestCount())
	}
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	srv := apitest.New(t)
	mgr := NewManager(srv.URL(), nil, nil, nil)

	err := mgr.Register(context.Background(), RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if mgr.Current() != nil {
		t.Error("registration must not create a session")
	}

	// The account works for a subsequent login, with role forced to user.
	sess, err := mgr.Login(context.Background(), "bo@example.com", "pw")
	if err != nil {
		t.Fatalf("post-register login failed: %v", err)
	}
	if sess.User.Role != model.RoleUser {
		t.Errorf("expected role user, got %q", sess.User.Role)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := apitest.New(t)
	mgr := NewManager(srv.URL(), nil, nil, nil)

	cases := []RegisterInput{
		{Email: "a@b", Password: "pw"},
		{Name: "x", Password: "pw"},
		{Name: "x", Email: "a@b"},
	}
	for _, in := range cases {
		if err := mgr.Register(context.Background(), in); !model.IsValidation(err) {
			t.Errorf("expected validation error for %+v, got %v", in, err)
		}
	}
	if srv.RequestCount() != 0 {
		t.Errorf("expected zero network calls, got %d", srv.RequestCount())
	}
}

func TestRestoreAbsentState(t *testing.T) {
	storage := openState(t)
	mgr := NewManager("http://unused", nil, storage, nil)
	if mgr.Restore() != nil {
		t.Error("expected nil session from empty storage")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@example.com", "pw", model.RoleUser, nil)

	storage := openState(t)
	mgr := NewManager(srv.URL(), nil, storage, nil)
	if _, err := mgr.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatal(err)
	}

	before := mgr.Epoch()
	mgr.Logout()

	if mgr.Current() != nil {
		t.Error("session should be gone from memory")
	}
	if _, ok := mgr.Token(); ok {
		t.Error("no token should be reported after logout")
	}
	if mgr.Epoch() == before {
		t.Error("logout must advance the epoch")
	}
	if mgr.Restore() != nil {
		t.Error("persisted session should be gone too")
	}
}

func TestRefreshProfilePicksUpTeamChange(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@example.com", "pw", model.RoleUser, nil)
	inv := srv.SeedInvite(t, 5, "kitchen", "Bo", "ada@example.com")

	storage := openState(t)
	mgr := NewManager(srv.URL(), nil, storage, nil)
	sess, err := mgr.Login(context.Background(), "ada@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if sess.User.HasTeam() {
		t.Fatal("precondition: user starts without a team")
	}

	// Accept the invite server-side, then refresh.
	if err := mgr.Gateway().Post(context.Background(), "/teams/invites/"+itoa(inv.ID)+"/accept", nil, nil); err != nil {
		t.Fatal(err)
	}

	before := mgr.Epoch()
	user, err := mgr.RefreshProfile(context.Background())
	if err != nil {
		t.Fatalf("RefreshProfile failed: %v", err)
	}
	if user.TeamID == nil || *user.TeamID != 5 {
		t.Errorf("expected team 5 after refresh, got %v", user.TeamID)
	}
	if mgr.Epoch() == before {
		t.Error("refresh must advance the epoch")
	}

	// Persisted snapshot was updated too.
	mgr2 := NewManager(srv.URL(), nil, storage, nil)
	restored := mgr2.Restore()
	if restored == nil || restored.User.TeamID == nil || *restored.User.TeamID != 5 {
		t.Errorf("persisted snapshot not refreshed: %+v", restored)
	}
}

func TestRefreshProfileWithoutSession(t *testing.T) {
	mgr := NewManager("http://unused", nil, nil, nil)
	if _, err := mgr.RefreshProfile(context.Background()); err == nil {
		t.Error("expected error without a session")
	}
}

func TestExpiredTokenSurfacesAuthError(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@example.com", "pw", model.RoleUser, nil)

	mgr := NewManager(srv.URL(), nil, nil, nil)
	if _, err := mgr.Login(context.Background(), "ada@example.com", "pw"); err != nil {
		t.Fatal(err)
	}

	srv.RevokeSessions()

	_, err := mgr.RefreshProfile(context.Background())
	if err == nil {
		t.Fatal("expected error on revoked token")
	}

	// The caller reacts by invalidating; the client must then hold no token.
	mgr.Invalidate()
	if _, ok := mgr.Token(); ok {
		t.Error("token still reported after invalidation")
	}
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
