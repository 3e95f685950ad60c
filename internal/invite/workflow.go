// Package invite handles the team-invitation lifecycle. Accepting an invite
// changes the user's team membership, so acceptance is only complete once
// the session profile has been refreshed and the collection re-scoped.
package invite

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"teamtask/internal/model"
	"teamtask/internal/notify"
	"teamtask/internal/remote"
	"teamtask/internal/session"
)

// Rescoper re-derives the visible lists after team membership changes.
// The collection store satisfies it.
type Rescoper interface {
	Rescope(ctx context.Context) error
}

// Workflow fetches and resolves the current user's team invitations.
type Workflow struct {
	sessions *session.Manager
	client   *remote.Client
	rescoper Rescoper
	notifier notify.Notifier

	mu      sync.Mutex
	pending []model.Invite
}

// NewWorkflow creates an invitation workflow. rescoper may be nil when no
// collection view needs refreshing (e.g. a bare CLI command).
func NewWorkflow(sessions *session.Manager, rescoper Rescoper, n notify.Notifier) *Workflow {
	return &Workflow{
		sessions: sessions,
		client:   sessions.Gateway(),
		rescoper: rescoper,
		notifier: n,
	}
}

// Pending returns the cached pending invites.
func (w *Workflow) Pending() []model.Invite {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.Invite, len(w.pending))
	copy(out, w.pending)
	return out
}

// FetchPending loads the invites addressed to the current user that are
// still unresolved. The service scopes the result by the bearer token.
func (w *Workflow) FetchPending(ctx context.Context) ([]model.Invite, error) {
	var invites []model.Invite
	if err := w.client.Get(ctx, "/teams/invites/pending", &invites); err != nil {
		notify.Error(w.notifier, "failed to load invitations", err)
		return nil, err
	}

	w.mu.Lock()
	w.pending = invites
	w.mu.Unlock()
	return invites, nil
}

// Send invites another user to the sender's team. Senders without a team
// are rejected locally; the request never reaches the network.
func (w *Workflow) Send(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.Required("email")
	}

	sess := w.sessions.Current()
	if sess == nil || !sess.User.HasTeam() {
		return &model.ValidationError{Field: "team", Reason: "you must belong to a team to send invitations"}
	}

	body := map[string]any{
		"email":   email,
		"team_id": *sess.User.TeamID,
	}
	if err := w.client.Post(ctx, "/teams/invite/", body, nil); err != nil {
		notify.Error(w.notifier, "failed to send invitation", err)
		return err
	}

	notify.Info(w.notifier, "invitation sent to "+email)
	return nil
}

// Accept resolves an invite in the user's favor. On success the invite
// leaves the pending set, the profile is refreshed so the session carries
// the new team, and the collection is re-scoped. A refresh failure is the
// operation's failure: the membership changed remotely but the client
// could not observe it.
func (w *Workflow) Accept(ctx context.Context, inviteID int) error {
	if err := w.client.Post(ctx, "/teams/invites/"+strconv.Itoa(inviteID)+"/accept", nil, nil); err != nil {
		notify.Error(w.notifier, "failed to accept invitation", err)
		return err
	}

	w.dropPending(inviteID)

	if _, err := w.sessions.RefreshProfile(ctx); err != nil {
		notify.Error(w.notifier, "invitation accepted but profile refresh failed", err)
		return err
	}
	if w.rescoper != nil {
		if err := w.rescoper.Rescope(ctx); err != nil {
			return err
		}
	}

	notify.Info(w.notifier, "invitation accepted")
	return nil
}

// Decline resolves an invite against it. No other state changes.
func (w *Workflow) Decline(ctx context.Context, inviteID int) error {
	if err := w.client.Post(ctx, "/teams/invites/"+strconv.Itoa(inviteID)+"/decline", nil, nil); err != nil {
		notify.Error(w.notifier, "failed to decline invitation", err)
		return err
	}

	w.dropPending(inviteID)
	notify.Info(w.notifier, "invitation declined")
	return nil
}

func (w *Workflow) dropPending(inviteID int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	filtered := w.pending[:0]
	for _, inv := range w.pending {
		if inv.ID != inviteID {
			filtered = append(filtered, inv)
		}
	}
	w.pending = filtered
}
