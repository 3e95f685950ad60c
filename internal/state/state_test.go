package state

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"teamtask/internal/model"
)

func openStore(t *testing.T, cipher *Cipher) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path, cipher)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := openStore(t, nil)

	teamID := 4
	user := model.User{ID: 1, Name: "Ada", Email: "ada@example.com", Role: model.RoleUser, TeamID: &teamID}
	if err := s.SaveSession("tok-123", user); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	token, got, ok := s.LoadSession()
	if !ok {
		t.Fatal("expected session to restore")
	}
	if token != "tok-123" {
		t.Errorf("expected token tok-123, got %q", token)
	}
	if got.ID != user.ID || got.Email != user.Email || got.Role != user.Role {
		t.Errorf("restored user mismatch: %+v", got)
	}
	if got.TeamID == nil || *got.TeamID != teamID {
		t.Errorf("expected team_id %d, got %v", teamID, got.TeamID)
	}
}

func TestLoadSessionAbsent(t *testing.T) {
	s := openStore(t, nil)
	if _, _, ok := s.LoadSession(); ok {
		t.Error("fresh store should have no session")
	}
}

func TestClearSessionRemovesBothKeys(t *testing.T) {
	s := openStore(t, nil)
	user := model.User{ID: 2, Email: "bo@x", Role: model.RoleUser}
	if err := s.SaveSession("tok", user); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearSession(); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}
	if _, _, ok := s.LoadSession(); ok {
		t.Error("session should not restore after clear")
	}
}

func TestLoadSessionCorruptSnapshot(t *testing.T) {
	s := openStore(t, nil)
	user := model.User{ID: 2, Email: "bo@x", Role: model.RoleUser}
	if err := s.SaveSession("tok", user); err != nil {
		t.Fatal(err)
	}

	// Scribble over the snapshot the way a half-written file would.
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put(userKey, []byte("{not json"))
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, ok := s.LoadSession(); ok {
		t.Error("corrupt snapshot must not restore")
	}
}

func TestLoadSessionTokenWithoutUser(t *testing.T) {
	s := openStore(t, nil)
	user := model.User{ID: 2, Email: "bo@x", Role: model.RoleUser}
	if err := s.SaveSession("tok", user); err != nil {
		t.Fatal(err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete(userKey)
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := s.LoadSession(); ok {
		t.Error("token without snapshot must not restore")
	}
}

func TestSealedTokenRoundTrip(t *testing.T) {
	key := hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	cipher, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path, cipher)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	user := model.User{ID: 3, Email: "c@x", Role: model.RoleAdmin}
	if err := s.SaveSession("secret-token", user); err != nil {
		t.Fatal(err)
	}

	// The raw stored bytes must not contain the plaintext token.
	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		raw = append(raw, tx.Bucket(sessionBucket).Get(tokenKey)...)
		return nil
	})
	if bytes.Contains(raw, []byte("secret-token")) {
		t.Error("sealed token stored in plaintext")
	}

	token, _, ok := s.LoadSession()
	if !ok || token != "secret-token" {
		t.Errorf("sealed round trip failed: ok=%v token=%q", ok, token)
	}
}

func TestSealedTokenWrongKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	keyA := hex.EncodeToString(bytes.Repeat([]byte{0x01}, 32))
	cipherA, _ := NewCipher(keyA)
	s, err := Open(path, cipherA)
	if err != nil {
		t.Fatal(err)
	}
	user := model.User{ID: 3, Email: "c@x", Role: model.RoleUser}
	if err := s.SaveSession("tok", user); err != nil {
		t.Fatal(err)
	}
	s.Close()

	keyB := hex.EncodeToString(bytes.Repeat([]byte{0x02}, 32))
	cipherB, _ := NewCipher(keyB)
	s, err = Open(path, cipherB)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// Wrong key behaves like absent state, not a crash.
	if _, _, ok := s.LoadSession(); ok {
		t.Error("session sealed under a different key must not restore")
	}
}

func TestNewCipherValidation(t *testing.T) {
	if c, err := NewCipher(""); err != nil || c != nil {
		t.Errorf("empty key should disable sealing, got c=%v err=%v", c, err)
	}
	if _, err := NewCipher("zz"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := NewCipher(hex.EncodeToString([]byte("short"))); err == nil {
		t.Error("expected error for short key")
	}
}

func TestSelectedListRoundTrip(t *testing.T) {
	s := openStore(t, nil)

	if _, ok := s.LoadSelectedList(); ok {
		t.Error("fresh store should have no selection")
	}
	if err := s.SaveSelectedList(12); err != nil {
		t.Fatal(err)
	}
	id, ok := s.LoadSelectedList()
	if !ok || id != 12 {
		t.Errorf("expected selection 12, got %d ok=%v", id, ok)
	}
	if err := s.ClearSelectedList(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.LoadSelectedList(); ok {
		t.Error("selection should be gone after clear")
	}
}

func TestOpenBadPath(t *testing.T) {
	if _, err := Open(filepath.Join(string(os.PathSeparator), "no-such-dir-xyz", "state.db"), nil); err == nil {
		t.Error("expected error opening state in a nonexistent directory")
	}
}
