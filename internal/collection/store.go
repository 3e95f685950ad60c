// Package collection owns the client-side cache of lists and tasks for the
// active selection, including the edit-in-place and delete-confirmation
// sub-state machines. Local state changes only after the service confirms
// a mutation; nothing here is optimistic.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"teamtask/internal/metrics"
	"teamtask/internal/model"
	"teamtask/internal/notify"
	"teamtask/internal/remote"
	"teamtask/internal/session"
)

// ErrStaleSession marks a response discarded because the session changed
// while the request was in flight.
var ErrStaleSession = errors.New("session changed while request was in flight")

// ErrNoSession marks an operation attempted without an active session.
var ErrNoSession = errors.New("no active session")

// ErrUnknownList marks a selection of a list id that is not in the cache.
var ErrUnknownList = errors.New("unknown list")

// ErrUnknownTask marks an operation on a task id that is not in the cache.
var ErrUnknownTask = errors.New("unknown task")

// TaskEdit is the transient state of an edit-in-place.
type TaskEdit struct {
	TaskID      int
	Title       string
	Description string
}

// SelectionStore persists the active list selection across invocations.
// *state.Store satisfies it; nil disables persistence.
type SelectionStore interface {
	SaveSelectedList(int) error
	LoadSelectedList() (int, bool)
	ClearSelectedList() error
}

// Store caches the lists and tasks visible to the session.
type Store struct {
	sessions  *session.Manager
	client    *remote.Client
	selection SelectionStore
	notifier  notify.Notifier
	metrics   *metrics.Metrics

	mu            sync.Mutex
	lists         []model.TodoList
	selected      *int
	tasks         []model.Task
	editing       *TaskEdit
	pendingDelete *int
}

// NewStore creates a collection store bound to the given session.
func NewStore(sessions *session.Manager, selection SelectionStore, n notify.Notifier, m *metrics.Metrics) *Store {
	return &Store{
		sessions:  sessions,
		client:    sessions.Gateway(),
		selection: selection,
		notifier:  n,
		metrics:   m,
	}
}

// Lists returns the cached lists in arrival order.
func (s *Store) Lists() []model.TodoList {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TodoList, len(s.lists))
	copy(out, s.lists)
	return out
}

// Tasks returns the cached tasks of the current selection.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// SelectedList returns the currently selected list, if any.
func (s *Store) SelectedList() (model.TodoList, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return model.TodoList{}, false
	}
	for _, l := range s.lists {
		if l.ID == *s.selected {
			return l, true
		}
	}
	return model.TodoList{}, false
}

// Editing returns a copy of the in-progress edit, if one exists.
func (s *Store) Editing() (TaskEdit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing == nil {
		return TaskEdit{}, false
	}
	return *s.editing, true
}

// PendingDelete returns the task id awaiting delete confirmation, if any.
func (s *Store) PendingDelete() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingDelete == nil {
		return 0, false
	}
	return *s.pendingDelete, true
}

// currentUser returns the session's user, or ErrNoSession.
func (s *Store) currentUser() (model.User, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return model.User{}, ErrNoSession
	}
	return sess.User, nil
}

// stale checks whether the session moved since epoch was captured. A stale
// response is counted, logged, and discarded by the caller.
func (s *Store) stale(epoch uint64) bool {
	if s.sessions.Epoch() == epoch {
		return false
	}
	s.metrics.IncStaleDiscard("collection")
	return true
}

// LoadLists fetches the lists visible to the session, applies the
// visibility rule, and auto-selects a list: the persisted selection when it
// is still visible, otherwise the first list.
func (s *Store) LoadLists(ctx context.Context) error {
	user, err := s.currentUser()
	if err != nil {
		return err
	}
	epoch := s.sessions.Epoch()

	var fetched []model.TodoList
	if err := s.client.Get(ctx, "/lists/", &fetched); err != nil {
		notify.Error(s.notifier, "failed to load lists", err)
		return err
	}
	if s.stale(epoch) {
		return ErrStaleSession
	}

	visible := visibleTo(user, fetched)

	s.mu.Lock()
	s.lists = visible
	s.selected = pickSelection(visible, s.selected, s.selection)
	selected := s.selected
	s.mu.Unlock()

	if selected == nil {
		s.mu.Lock()
		s.tasks = nil
		s.mu.Unlock()
		return nil
	}
	s.persistSelection(*selected)
	return s.reloadTasks(ctx, epoch)
}

// Rescope re-derives the visible lists from the refreshed session. Called
// after an invite acceptance changes team membership.
func (s *Store) Rescope(ctx context.Context) error {
	return s.LoadLists(ctx)
}

// SelectList switches the selection to a cached list and reloads its tasks.
func (s *Store) SelectList(ctx context.Context, listID int) error {
	s.mu.Lock()
	known := false
	for _, l := range s.lists {
		if l.ID == listID {
			known = true
			break
		}
	}
	if !known {
		s.mu.Unlock()
		return fmt.Errorf("selecting list %d: %w", listID, ErrUnknownList)
	}
	id := listID
	s.selected = &id
	s.mu.Unlock()

	s.persistSelection(listID)
	return s.reloadTasks(ctx, s.sessions.Epoch())
}

// reloadTasks fetches the full task collection and filters it client-side
// by the current selection. The service returns a complete set on every
// call; this is the stated contract, isolated here so a server-side
// filtered query can replace it without touching callers.
func (s *Store) reloadTasks(ctx context.Context, epoch uint64) error {
	var fetched []model.Task
	if err := s.client.Get(ctx, "/tasks/", &fetched); err != nil {
		notify.Error(s.notifier, "failed to load tasks", err)
		return err
	}
	if s.stale(epoch) {
		return ErrStaleSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		s.tasks = nil
		return nil
	}
	filtered := make([]model.Task, 0, len(fetched))
	for _, t := range fetched {
		if t.ListID == *s.selected {
			filtered = append(filtered, t)
		}
	}
	s.tasks = filtered
	return nil
}

// AddList creates a list owned by the session user, scoped to their team
// when they have one.
func (s *Store) AddList(ctx context.Context, title string) (*model.TodoList, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.Required("title")
	}
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	epoch := s.sessions.Epoch()

	ownerID := user.ID
	body := map[string]any{
		"title":    title,
		"team_id":  user.TeamID,
		"owner_id": &ownerID,
	}

	var created model.TodoList
	if err := s.client.Post(ctx, "/lists/", body, &created); err != nil {
		notify.Error(s.notifier, "failed to add list", err)
		return nil, err
	}
	if s.stale(epoch) {
		return nil, ErrStaleSession
	}

	s.mu.Lock()
	s.lists = append(s.lists, created)
	s.mu.Unlock()
	return &created, nil
}

// AddTask creates a task on the selected list.
func (s *Store) AddTask(ctx context.Context, title, description string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.Required("title")
	}

	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil, &model.ValidationError{Field: "list", Reason: "no list selected"}
	}
	listID := *s.selected
	s.mu.Unlock()

	epoch := s.sessions.Epoch()
	body := map[string]any{
		"title":       title,
		"description": description,
		"done":        false,
		"list_id":     listID,
	}

	var created model.Task
	if err := s.client.Post(ctx, "/tasks/", body, &created); err != nil {
		notify.Error(s.notifier, "failed to add task", err)
		return nil, err
	}
	if s.stale(epoch) {
		return nil, ErrStaleSession
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, created)
	s.mu.Unlock()
	return &created, nil
}

// ToggleTaskDone flips a task's done flag and submits the full task. The
// local entry is replaced with the server's returned representation, not
// the locally flipped value.
func (s *Store) ToggleTaskDone(ctx context.Context, taskID int) error {
	s.mu.Lock()
	task, ok := s.taskLocked(taskID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("toggling task %d: %w", taskID, ErrUnknownTask)
	}

	epoch := s.sessions.Epoch()
	task.Done = !task.Done

	var updated model.Task
	if err := s.client.Put(ctx, "/tasks/"+strconv.Itoa(taskID), task, &updated); err != nil {
		notify.Error(s.notifier, "failed to update task", err)
		return err
	}
	if s.stale(epoch) {
		return ErrStaleSession
	}

	s.mu.Lock()
	s.replaceTaskLocked(updated)
	s.mu.Unlock()
	return nil
}

// BeginEditTask opens the edit form pre-filled from the cached task.
func (s *Store) BeginEditTask(taskID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.taskLocked(taskID)
	if !ok {
		return fmt.Errorf("editing task %d: %w", taskID, ErrUnknownTask)
	}
	s.editing = &TaskEdit{TaskID: task.ID, Title: task.Title, Description: task.Description}
	return nil
}

// SetEditTitle updates the in-progress edit's title.
func (s *Store) SetEditTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.Title = title
	}
}

// SetEditDescription updates the in-progress edit's description.
func (s *Store) SetEditDescription(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editing != nil {
		s.editing.Description = description
	}
}

// ConfirmEditTask submits the edit. On any failure the form closes and the
// error is reported; the flow never stays in the editing state.
func (s *Store) ConfirmEditTask(ctx context.Context) error {
	s.mu.Lock()
	edit := s.editing
	s.editing = nil
	var base model.Task
	ok := false
	if edit != nil {
		base, ok = s.taskLocked(edit.TaskID)
	}
	s.mu.Unlock()

	if edit == nil {
		return errors.New("no edit in progress")
	}
	if !ok {
		return fmt.Errorf("editing task %d: %w", edit.TaskID, ErrUnknownTask)
	}
	if strings.TrimSpace(edit.Title) == "" {
		return model.Required("title")
	}

	epoch := s.sessions.Epoch()
	base.Title = edit.Title
	base.Description = edit.Description

	var updated model.Task
	if err := s.client.Put(ctx, "/tasks/"+strconv.Itoa(edit.TaskID), base, &updated); err != nil {
		notify.Error(s.notifier, "failed to save task", err)
		return err
	}
	if s.stale(epoch) {
		return ErrStaleSession
	}

	s.mu.Lock()
	s.replaceTaskLocked(updated)
	s.mu.Unlock()
	return nil
}

// CancelEditTask abandons the edit.
func (s *Store) CancelEditTask() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = nil
}

// BeginDeleteTask arms the delete confirmation for a cached task.
func (s *Store) BeginDeleteTask(taskID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.taskLocked(taskID); !ok {
		return fmt.Errorf("deleting task %d: %w", taskID, ErrUnknownTask)
	}
	id := taskID
	s.pendingDelete = &id
	return nil
}

// ConfirmDeleteTask issues the delete. The task leaves the local cache only
// after the server acknowledges; either way the confirmation is disarmed.
func (s *Store) ConfirmDeleteTask(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pendingDelete
	s.pendingDelete = nil
	s.mu.Unlock()

	if pending == nil {
		return errors.New("no delete pending")
	}

	epoch := s.sessions.Epoch()
	if err := s.client.Delete(ctx, "/tasks/"+strconv.Itoa(*pending)); err != nil {
		notify.Error(s.notifier, "failed to delete task", err)
		return err
	}
	if s.stale(epoch) {
		return ErrStaleSession
	}

	s.mu.Lock()
	filtered := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ID != *pending {
			filtered = append(filtered, t)
		}
	}
	s.tasks = filtered
	s.mu.Unlock()
	return nil
}

// CancelDeleteTask disarms the delete confirmation.
func (s *Store) CancelDeleteTask() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete = nil
}

func (s *Store) taskLocked(taskID int) (model.Task, bool) {
	for _, t := range s.tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return model.Task{}, false
}

func (s *Store) replaceTaskLocked(updated model.Task) {
	for i, t := range s.tasks {
		if t.ID == updated.ID {
			s.tasks[i] = updated
			return
		}
	}
}

func (s *Store) persistSelection(listID int) {
	if s.selection == nil {
		return
	}
	if err := s.selection.SaveSelectedList(listID); err != nil {
		notify.Error(s.notifier, "failed to persist list selection", err)
	}
}

// visibleTo is the client-side visibility rule. A fetched list is visible
// when it belongs to the user's team, when the user owns it, or when it has
// neither team nor owner (legacy lists stay visible to everyone).
func visibleTo(user model.User, lists []model.TodoList) []model.TodoList {
	out := make([]model.TodoList, 0, len(lists))
	for _, l := range lists {
		switch {
		case l.TeamID != nil && user.TeamID != nil && *l.TeamID == *user.TeamID:
			out = append(out, l)
		case l.OwnerID != nil && *l.OwnerID == user.ID:
			out = append(out, l)
		case l.TeamID == nil && l.OwnerID == nil:
			out = append(out, l)
		}
	}
	return out
}

// pickSelection keeps the current selection when still visible, falls back
// to a persisted selection, then to the first visible list.
func pickSelection(visible []model.TodoList, current *int, persisted SelectionStore) *int {
	contains := func(id int) bool {
		for _, l := range visible {
			if l.ID == id {
				return true
			}
		}
		return false
	}

	if current != nil && contains(*current) {
		return current
	}
	if persisted != nil {
		if id, ok := persisted.LoadSelectedList(); ok && contains(id) {
			return &id
		}
	}
	if len(visible) > 0 {
		id := visible[0].ID
		return &id
	}
	return nil
}
