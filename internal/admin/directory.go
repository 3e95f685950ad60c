// Package admin is the admin-only user directory. Every operation is role
// gated client-side: without the admin role nothing here touches the
// network. That gate is a UX convenience; the service enforces the role
// again on its side.
package admin

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"teamtask/internal/model"
	"teamtask/internal/notify"
	"teamtask/internal/remote"
	"teamtask/internal/session"
)

// ErrNotAuthorized is returned when the session lacks the admin role. The
// caller renders an explicit not-authorized state, never an empty table.
var ErrNotAuthorized = errors.New("admin privileges required")

// ErrUnknownUser is returned for operations on a user id not in the cache.
var ErrUnknownUser = errors.New("unknown user")

// UserInput is the create/update form. TeamID is the raw text field; it is
// parsed to an integer or null before the request is built.
type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	TeamID   string
}

// Directory manages the full user directory.
type Directory struct {
	sessions *session.Manager
	client   *remote.Client
	notifier notify.Notifier

	mu            sync.Mutex
	users         []model.User
	pendingDelete *int
}

// NewDirectory creates an admin directory bound to the given session.
func NewDirectory(sessions *session.Manager, n notify.Notifier) *Directory {
	return &Directory{
		sessions: sessions,
		client:   sessions.Gateway(),
		notifier: n,
	}
}

// Users returns the cached directory.
func (d *Directory) Users() []model.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.User, len(d.users))
	copy(out, d.users)
	return out
}

// PendingDelete returns the user id awaiting delete confirmation, if any.
func (d *Directory) PendingDelete() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pendingDelete == nil {
		return 0, false
	}
	return *d.pendingDelete, true
}

// guard refuses any operation unless the session holds the admin role.
func (d *Directory) guard() error {
	sess := d.sessions.Current()
	if sess == nil || !sess.User.IsAdmin() {
		return ErrNotAuthorized
	}
	return nil
}

// ListUsers fetches the full user directory.
func (d *Directory) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}

	var users []model.User
	if err := d.client.Get(ctx, "/users/admin", &users); err != nil {
		notify.Error(d.notifier, "failed to load users", err)
		return nil, err
	}

	d.mu.Lock()
	d.users = users
	d.mu.Unlock()
	return users, nil
}

// CreateUser creates an account. Name, email, and password are required.
func (d *Directory) CreateUser(ctx context.Context, in UserInput) (*model.User, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}

	body, err := buildUserBody(in, true)
	if err != nil {
		return nil, err
	}

	var created model.User
	if err := d.client.Post(ctx, "/users/", body, &created); err != nil {
		notify.Error(d.notifier, "failed to create user", err)
		return nil, err
	}

	d.mu.Lock()
	d.users = append(d.users, created)
	d.mu.Unlock()
	return &created, nil
}

// UpdateUser updates an account. A blank password means "unchanged"; the
// field is omitted from the payload entirely.
func (d *Directory) UpdateUser(ctx context.Context, id int, in UserInput) (*model.User, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}

	body, err := buildUserBody(in, false)
	if err != nil {
		return nil, err
	}

	var updated model.User
	if err := d.client.Put(ctx, "/users/"+strconv.Itoa(id), body, &updated); err != nil {
		notify.Error(d.notifier, "failed to update user", err)
		return nil, err
	}

	d.mu.Lock()
	for i, u := range d.users {
		if u.ID == id {
			d.users[i] = updated
			break
		}
	}
	d.mu.Unlock()
	return &updated, nil
}

// BeginDeleteUser arms the delete confirmation.
func (d *Directory) BeginDeleteUser(id int) error {
	if err := d.guard(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	found := false
	for _, u := range d.users {
		if u.ID == id {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownUser
	}
	pending := id
	d.pendingDelete = &pending
	return nil
}

// ConfirmDeleteUser issues the delete armed by BeginDeleteUser. The network
// call happens here and only here.
func (d *Directory) ConfirmDeleteUser(ctx context.Context) error {
	if err := d.guard(); err != nil {
		return err
	}

	d.mu.Lock()
	pending := d.pendingDelete
	d.pendingDelete = nil
	d.mu.Unlock()

	if pending == nil {
		return errors.New("no delete pending")
	}

	if err := d.client.Delete(ctx, "/users/"+strconv.Itoa(*pending)); err != nil {
		notify.Error(d.notifier, "failed to delete user", err)
		return err
	}

	d.mu.Lock()
	filtered := d.users[:0]
	for _, u := range d.users {
		if u.ID != *pending {
			filtered = append(filtered, u)
		}
	}
	d.users = filtered
	d.mu.Unlock()
	return nil
}

// CancelDeleteUser disarms the delete confirmation.
func (d *Directory) CancelDeleteUser() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingDelete = nil
}

// buildUserBody validates the form and assembles the request payload.
func buildUserBody(in UserInput, passwordRequired bool) (map[string]any, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, model.Required("name")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, model.Required("email")
	}
	if passwordRequired && in.Password == "" {
		return nil, model.Required("password")
	}

	role := in.Role
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, &model.ValidationError{Field: "role", Reason: "must be user or admin"}
	}

	teamID, err := ParseTeamID(in.TeamID)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":    in.Name,
		"email":   in.Email,
		"role":    role,
		"team_id": teamID,
	}
	if in.Password != "" {
		body["password"] = in.Password
	}
	return body, nil
}

// ParseTeamID converts the team text field to an id or null. Empty input is
// null; anything non-numeric is a validation error.
func ParseTeamID(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &model.ValidationError{Field: "team_id", Reason: "must be a number"}
	}
	return &id, nil
}
