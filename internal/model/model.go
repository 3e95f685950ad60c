// Package model defines the wire types exchanged with the TeamTask service
// and the validation applied to them at the client boundary.
package model

import (
	"fmt"
	"time"
)

// Roles a user can hold. The service forces "user" on self-registration;
// "admin" is only ever assigned through the admin directory.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Invite statuses. An invite is pending until the invitee resolves it;
// accepted and declined are terminal.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)

// User is the profile snapshot returned by the service. TeamID is nil for
// users who belong to no team.
type User struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	TeamID *int   `json:"team_id"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasTeam reports whether the user currently belongs to a team.
func (u *User) HasTeam() bool {
	return u.TeamID != nil
}

// Validate checks that a decoded User carries the fields the client relies
// on. Called at the remote boundary; failures are treated as a malformed
// response, not as application state.
func (u *User) Validate() error {
	if u.ID == 0 {
		return fmt.Errorf("user: missing id")
	}
	if u.Email == "" {
		return fmt.Errorf("user %d: missing email", u.ID)
	}
	if u.Role != RoleUser && u.Role != RoleAdmin {
		return fmt.Errorf("user %d: unknown role %q", u.ID, u.Role)
	}
	return nil
}

// TodoList is a shared or personal list of tasks. TeamID and OwnerID are
// both optional; lists created before accounts existed carry neither.
type TodoList struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	TeamID  *int   `json:"team_id"`
	OwnerID *int   `json:"owner_id"`
}

// Validate checks a decoded TodoList.
func (l *TodoList) Validate() error {
	if l.ID == 0 {
		return fmt.Errorf("list: missing id")
	}
	if l.Title == "" {
		return fmt.Errorf("list %d: missing title", l.ID)
	}
	return nil
}

// Task is a single to-do item. Every task belongs to exactly one list.
type Task struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Done        bool   `json:"done"`
	ListID      int    `json:"list_id"`
}

// Validate checks a decoded Task.
func (t *Task) Validate() error {
	if t.ID == 0 {
		return fmt.Errorf("task: missing id")
	}
	if t.Title == "" {
		return fmt.Errorf("task %d: missing title", t.ID)
	}
	if t.ListID == 0 {
		return fmt.Errorf("task %d: missing list_id", t.ID)
	}
	return nil
}

// Invite is a proposal for a user to join a team. It resolves exactly once.
type Invite struct {
	ID           int       `json:"id"`
	TeamID       int       `json:"team_id"`
	TeamName     string    `json:"team_name"`
	InviterName  string    `json:"inviter_name"`
	InviteeEmail string    `json:"invitee_email"`
	CreatedAt    time.Time `json:"created_at"`
	Status       string    `json:"status"`
}

// Pending reports whether the invite is still unresolved.
func (i *Invite) Pending() bool {
	return i.Status == InviteStatusPending
}

// Validate checks a decoded Invite.
func (i *Invite) Validate() error {
	if i.ID == 0 {
		return fmt.Errorf("invite: missing id")
	}
	if i.TeamID == 0 {
		return fmt.Errorf("invite %d: missing team_id", i.ID)
	}
	switch i.Status {
	case InviteStatusPending, InviteStatusAccepted, InviteStatusDeclined:
	default:
		return fmt.Errorf("invite %d: unknown status %q", i.ID, i.Status)
	}
	return nil
}
