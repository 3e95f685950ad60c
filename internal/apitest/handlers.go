package apitest

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"teamtask/internal/model"
)

// --- users ---------------------------------------------------------------

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed form body")
		return
	}
	email := r.PostForm.Get("username")
	password := r.PostForm.Get("password")

	s.mu.Lock()
	var (
		id    int
		hash  []byte
		found bool
	)
	for _, u := range s.users {
		if u.Email == email {
			id, hash, found = u.ID, u.PasswordHash, true
			break
		}
	}
	s.mu.Unlock()

	if !found || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	token := newToken()
	s.mu.Lock()
	s.sessions[token] = id
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		TeamID   *int   `json:"team_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name, email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == req.Email {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "hashing failed")
		return
	}

	s.nextID++
	// Role is forced server-side regardless of what the client sends.
	u := model.User{ID: s.nextID, Name: req.Name, Email: req.Email, Role: model.RoleUser, TeamID: req.TeamID}
	s.users[u.ID] = &userRecord{User: u, PasswordHash: hash}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// --- lists ---------------------------------------------------------------

func (s *Server) listLists(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TodoList, 0, len(s.lists))
	for _, l := range s.lists {
		out = append(out, l)
	}
	sortByID(out, func(l model.TodoList) int { return l.ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createList(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	var req struct {
		Title   string `json:"title"`
		TeamID  *int   `json:"team_id"`
		OwnerID *int   `json:"owner_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Title == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "title is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	l := model.TodoList{ID: s.nextID, Title: req.Title, TeamID: req.TeamID, OwnerID: req.OwnerID}
	s.lists[l.ID] = l
	writeJSON(w, http.StatusOK, l)
}

// --- tasks ---------------------------------------------------------------

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sortByID(out, func(t model.Task) int { return t.ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Done        bool   `json:"done"`
		ListID      int    `json:"list_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Title == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "title is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[req.ListID]; !ok {
		writeDetail(w, http.StatusNotFound, "List not found")
		return
	}
	s.nextID++
	t := model.Task{ID: s.nextID, Title: req.Title, Description: req.Description, Done: req.Done, ListID: req.ListID}
	s.tasks[t.ID] = t
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid task id")
		return
	}
	var req model.Task
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	req.ID = id
	s.tasks[id] = req
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid task id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	delete(s.tasks, id)
	w.WriteHeader(http.StatusNoContent)
}

// --- invites -------------------------------------------------------------

func (s *Server) pendingInvites(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Invite, 0)
	for _, inv := range s.invites {
		if inv.InviteeEmail == user.Email && inv.Status == model.InviteStatusPending {
			out = append(out, *inv)
		}
	}
	sortByID(out, func(i model.Invite) int { return i.ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sendInvite(w http.ResponseWriter, r *http.Request) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Email  string `json:"email"`
		TeamID int    `json:"team_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if user.TeamID == nil || *user.TeamID != req.TeamID {
		writeDetail(w, http.StatusForbidden, "You can only invite users to your own team")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	inv := model.Invite{
		ID:           s.nextID,
		TeamID:       req.TeamID,
		TeamName:     "team",
		InviterName:  user.Name,
		InviteeEmail: req.Email,
		Status:       model.InviteStatusPending,
	}
	s.invites[inv.ID] = &inv
	writeJSON(w, http.StatusOK, map[string]string{"message": "Invitation sent"})
}

func (s *Server) acceptInvite(w http.ResponseWriter, r *http.Request) {
	s.resolveInvite(w, r, model.InviteStatusAccepted)
}

func (s *Server) declineInvite(w http.ResponseWriter, r *http.Request) {
	s.resolveInvite(w, r, model.InviteStatusDeclined)
}

func (s *Server) resolveInvite(w http.ResponseWriter, r *http.Request, status string) {
	user, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid invite id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inv, found := s.invites[id]
	if !found || inv.InviteeEmail != user.Email {
		writeDetail(w, http.StatusNotFound, "Invite not found")
		return
	}
	if inv.Status != model.InviteStatusPending {
		writeDetail(w, http.StatusBadRequest, "Invite already resolved")
		return
	}

	inv.Status = status
	if status == model.InviteStatusAccepted {
		teamID := inv.TeamID
		if member, ok := s.users[user.ID]; ok {
			member.TeamID = &teamID
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Invite " + status})
}

// --- admin directory -----------------------------------------------------

// admin resolves the caller and enforces the admin role.
func (s *Server) admin(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	user, ok := s.caller(w, r)
	if !ok {
		return model.User{}, false
	}
	if !user.IsAdmin() {
		writeDetail(w, http.StatusForbidden, "Admin privileges required")
		return model.User{}, false
	}
	return user, true
}

func (s *Server) adminListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.admin(w, r); !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.User)
	}
	sortByID(out, func(u model.User) int { return u.ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) adminCreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.admin(w, r); !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
		TeamID   *int   `json:"team_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Password == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "password is required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "hashing failed")
		return
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := model.User{ID: s.nextID, Name: req.Name, Email: req.Email, Role: role, TeamID: req.TeamID}
	s.users[u.ID] = &userRecord{User: u, PasswordHash: hash}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.admin(w, r); !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password,omitempty"`
		Role     string `json:"role"`
		TeamID   *int   `json:"team_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, found := s.users[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}

	rec.Name = req.Name
	rec.Email = req.Email
	rec.Role = req.Role
	rec.TeamID = req.TeamID
	// Absent or blank password means "unchanged".
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "hashing failed")
			return
		}
		rec.PasswordHash = hash
	}
	writeJSON(w, http.StatusOK, rec.User)
}

func (s *Server) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.admin(w, r); !ok {
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.users[id]; !found {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.users, id)
	w.WriteHeader(http.StatusNoContent)
}
