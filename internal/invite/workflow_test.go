package invite

import (
	"context"
	"testing"

	"teamtask/internal/apitest"
	"teamtask/internal/collection"
	"teamtask/internal/model"
	"teamtask/internal/remote"
	"teamtask/internal/session"
)

func login(t *testing.T, srv *apitest.Server, email, password string) *session.Manager {
	t.Helper()
	mgr := session.NewManager(srv.URL(), nil, nil, nil)
	if _, err := mgr.Login(context.Background(), email, password); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return mgr
}

func TestFetchPendingScopedToUser(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, nil)
	srv.SeedInvite(t, 3, "kitchen", "Bo", "ada@x")
	srv.SeedInvite(t, 3, "kitchen", "Bo", "someone-else@x")

	mgr := login(t, srv, "ada@x", "pw")
	w := NewWorkflow(mgr, nil, nil)

	invites, err := w.FetchPending(context.Background())
	if err != nil {
		t.Fatalf("FetchPending failed: %v", err)
	}
	if len(invites) != 1 || invites[0].InviteeEmail != "ada@x" {
		t.Errorf("expected only the user's invite, got %+v", invites)
	}
}

func TestSendWithoutTeamIsLocalRejection(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, nil)

	mgr := login(t, srv, "ada@x", "pw")
	w := NewWorkflow(mgr, nil, nil)

	before := srv.RequestCount()
	err := w.Send(context.Background(), "friend@x")
	if !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if srv.RequestCount() != before {
		t.Error("team-less send must produce zero network calls")
	}
}

func TestSendFromTeamMember(t *testing.T) {
	srv := apitest.New(t)
	teamID := 3
	srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, &teamID)

	mgr := login(t, srv, "ada@x", "pw")
	w := NewWorkflow(mgr, nil, nil)

	if err := w.Send(context.Background(), "friend@x"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// The invitee sees it as pending.
	srv.SeedUser(t, "Friend", "friend@x", "pw", model.RoleUser, nil)
	mgr2 := login(t, srv, "friend@x", "pw")
	w2 := NewWorkflow(mgr2, nil, nil)
	invites, err := w2.FetchPending(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(invites) != 1 {
		t.Fatalf("expected 1 pending invite, got %d", len(invites))
	}
}

func TestAcceptUpdatesTeamAndRescopes(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, nil)
	inv := srv.SeedInvite(t, 7, "kitchen", "Bo", "ada@x")

	teamID := 7
	srv.SeedList(t, "Team board", &teamID, nil)

	mgr := login(t, srv, "ada@x", "pw")
	store := collection.NewStore(mgr, nil, nil, nil)
	if err := store.LoadLists(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.Lists()) != 0 {
		t.Fatal("precondition: team board not visible before acceptance")
	}

	w := NewWorkflow(mgr, store, nil)
	if _, err := w.FetchPending(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := w.Accept(context.Background(), inv.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	if len(w.Pending()) != 0 {
		t.Error("accepted invite should leave the pending set")
	}

	sess := mgr.Current()
	if sess == nil || sess.User.TeamID == nil || *sess.User.TeamID != 7 {
		t.Errorf("session team_id not updated: %+v", sess)
	}

	// The collection was re-scoped: the team's list is now visible.
	lists := store.Lists()
	if len(lists) != 1 || lists[0].Title != "Team board" {
		t.Errorf("expected team board after rescope, got %+v", lists)
	}
}

func TestDeclineLeavesTeamUnchanged(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, nil)
	inv := srv.SeedInvite(t, 7, "kitchen", "Bo", "ada@x")

	mgr := login(t, srv, "ada@x", "pw")
	w := NewWorkflow(mgr, nil, nil)
	if _, err := w.FetchPending(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := w.Decline(context.Background(), inv.ID); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	if len(w.Pending()) != 0 {
		t.Error("declined invite should leave the pending set")
	}
	if sess := mgr.Current(); sess.User.TeamID != nil {
		t.Errorf("decline must not change team membership: %+v", sess.User)
	}
}

func TestResolveAlreadyResolvedInvite(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, nil)
	inv := srv.SeedInvite(t, 7, "kitchen", "Bo", "ada@x")

	mgr := login(t, srv, "ada@x", "pw")
	w := NewWorkflow(mgr, nil, nil)

	if err := w.Decline(context.Background(), inv.ID); err != nil {
		t.Fatal(err)
	}

	// Racing a second resolution surfaces the remote rejection.
	err := w.Accept(context.Background(), inv.ID)
	if err == nil {
		t.Fatal("expected rejection for an already-resolved invite")
	}
	if got := remote.Detail(err, ""); got != "Invite already resolved" {
		t.Errorf("expected the remote's rejection detail, got %q", got)
	}
}

func TestResolveUnknownInvite(t *testing.T) {
	srv := apitest.New(t)
	srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, nil)

	mgr := login(t, srv, "ada@x", "pw")
	w := NewWorkflow(mgr, nil, nil)

	err := w.Accept(context.Background(), 999)
	if !remote.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
