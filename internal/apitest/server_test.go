package apitest

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"teamtask/internal/model"
)

func bearerToken(t *testing.T, srv *Server, email, password string) string {
	t.Helper()
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	resp, err := http.Post(srv.URL()+"/users/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body.AccessToken
}

func authed(method, token, url string) (*http.Response, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return http.DefaultClient.Do(req)
}

// Profile reads racing an invite resolution must not tear: the accept
// handler rewrites the caller's team membership while /users/me is served.
func TestConcurrentProfileReadsDuringInviteAccept(t *testing.T) {
	srv := New(t)
	ada := srv.SeedUser(t, "Ada", "ada@x", "pw", model.RoleUser, nil)
	inv := srv.SeedInvite(t, 5, "kitchen", "Bo", "ada@x")
	token := bearerToken(t, srv, "ada@x", "pw")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				resp, err := authed(http.MethodGet, token, srv.URL()+"/users/me")
				if err != nil {
					t.Error(err)
					return
				}
				var u model.User
				if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
					t.Error(err)
				}
				resp.Body.Close()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := authed(http.MethodPost, token, srv.URL()+"/teams/invites/"+strconv.Itoa(inv.ID)+"/accept")
		if err != nil {
			t.Error(err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("accept status %d", resp.StatusCode)
		}
	}()
	wg.Wait()

	u, ok := srv.User(ada.ID)
	if !ok || u.TeamID == nil || *u.TeamID != 5 {
		t.Errorf("expected team 5 after accept, got %+v", u)
	}
}
