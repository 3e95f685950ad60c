// Package apitest provides an in-process TeamTask service for tests: the
// full endpoint surface the client depends on, backed by in-memory data,
// with real bearer-token authentication and role enforcement. Tests drive
// the client against it over a real HTTP round trip without a network.
package apitest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"teamtask/internal/model"
)

// userRecord is a stored user plus credential hash.
type userRecord struct {
	model.User
	PasswordHash []byte
}

// Server is a fake TeamTask service.
type Server struct {
	mu       sync.Mutex
	users    map[int]*userRecord
	lists    map[int]model.TodoList
	tasks    map[int]model.Task
	invites  map[int]*model.Invite
	sessions map[string]int // token -> user id
	nextID   int

	requests atomic.Int64
	httpSrv  *httptest.Server
}

// New starts a fake service and registers its shutdown with t.
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		users:    make(map[int]*userRecord),
		lists:    make(map[int]model.TodoList),
		tasks:    make(map[int]model.Task),
		invites:  make(map[int]*model.Invite),
		sessions: make(map[string]int),
	}
	s.httpSrv = httptest.NewServer(s.router())
	t.Cleanup(s.httpSrv.Close)
	return s
}

// URL returns the base URL of the fake service.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// RequestCount returns how many HTTP requests the service has seen. Tests
// use it to prove an operation was rejected before any network call.
func (s *Server) RequestCount() int64 {
	return s.requests.Load()
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.requests.Add(1)
			next.ServeHTTP(w, req)
		})
	})

	r.Post("/users/login", s.login)
	r.Post("/users/register", s.register)
	r.Get("/users/me", s.me)

	r.Get("/lists/", s.listLists)
	r.Post("/lists/", s.createList)

	r.Get("/tasks/", s.listTasks)
	r.Post("/tasks/", s.createTask)
	r.Put("/tasks/{id}", s.updateTask)
	r.Delete("/tasks/{id}", s.deleteTask)

	r.Get("/teams/invites/pending", s.pendingInvites)
	r.Post("/teams/invite/", s.sendInvite)
	r.Post("/teams/invites/{id}/accept", s.acceptInvite)
	r.Post("/teams/invites/{id}/decline", s.declineInvite)

	r.Get("/users/admin", s.adminListUsers)
	r.Post("/users/", s.adminCreateUser)
	r.Put("/users/{id}", s.adminUpdateUser)
	r.Delete("/users/{id}", s.adminDeleteUser)

	return r
}

// --- seeding -------------------------------------------------------------

// SeedUser creates a user with a bcrypt-hashed password and returns it.
func (s *Server) SeedUser(t *testing.T, name, email, password, role string, teamID *int) model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := model.User{ID: s.nextID, Name: name, Email: email, Role: role, TeamID: teamID}
	s.users[u.ID] = &userRecord{User: u, PasswordHash: hash}
	return u
}

// SeedList creates a list.
func (s *Server) SeedList(t *testing.T, title string, teamID, ownerID *int) model.TodoList {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	l := model.TodoList{ID: s.nextID, Title: title, TeamID: teamID, OwnerID: ownerID}
	s.lists[l.ID] = l
	return l
}

// SeedTask creates a task on an existing list.
func (s *Server) SeedTask(t *testing.T, listID int, title, description string, done bool) model.Task {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[listID]; !ok {
		t.Fatalf("seeding task on unknown list %d", listID)
	}
	s.nextID++
	task := model.Task{ID: s.nextID, Title: title, Description: description, Done: done, ListID: listID}
	s.tasks[task.ID] = task
	return task
}

// SeedInvite creates a pending invite addressed to inviteeEmail.
func (s *Server) SeedInvite(t *testing.T, teamID int, teamName, inviterName, inviteeEmail string) model.Invite {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	inv := model.Invite{
		ID:           s.nextID,
		TeamID:       teamID,
		TeamName:     teamName,
		InviterName:  inviterName,
		InviteeEmail: inviteeEmail,
		CreatedAt:    time.Now().UTC(),
		Status:       model.InviteStatusPending,
	}
	s.invites[inv.ID] = &inv
	return inv
}

// User returns the stored user by id for assertions.
func (s *Server) User(id int) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return model.User{}, false
	}
	return rec.User, true
}

// TaskCount returns the number of stored tasks.
func (s *Server) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// RevokeSessions invalidates every issued token, simulating expiry.
func (s *Server) RevokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]int)
}

// --- helpers -------------------------------------------------------------

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// caller resolves the bearer token to a user, writing a 401 when the token
// is missing or unknown. The returned copy is safe to read without holding
// s.mu; handlers that mutate a record re-resolve it by id under the lock.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 8 || h[:7] != "Bearer " {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return model.User{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[h[7:]]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return model.User{}, false
	}
	rec, ok := s.users[id]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return model.User{}, false
	}
	return rec.User, true
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// sortByID keeps responses in stable id order; map iteration would otherwise
// shuffle collections between calls.
func sortByID[T any](items []T, id func(T) int) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}
