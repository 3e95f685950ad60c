// Package state persists client-side state between invocations: the session
// token, the last-known user snapshot, and the active list selection. The
// backing store is a bbolt key-value file, the closest analog to the
// original client's localStorage.
package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"teamtask/internal/model"
)

var (
	sessionBucket = []byte("session")
	uiBucket      = []byte("ui")

	tokenKey        = []byte("token")
	userKey         = []byte("user")
	selectedListKey = []byte("selected_list")
)

// Store is the persisted client state file.
type Store struct {
	db     *bolt.DB
	cipher *Cipher
}

// Open opens (creating if necessary) the state file at path. A nil cipher
// stores the token unsealed.
func Open(path string, cipher *Cipher) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening state file: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{sessionBucket, uiBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state buckets: %w", err)
	}

	return &Store{db: db, cipher: cipher}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession persists the token and user snapshot. The two are written in
// one transaction but stored under independent keys.
func (s *Store) SaveSession(token string, user model.User) error {
	sealed, err := s.cipher.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("sealing token: %w", err)
	}

	snapshot, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling user snapshot: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if err := b.Put(tokenKey, sealed); err != nil {
			return err
		}
		return b.Put(userKey, snapshot)
	})
	if err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// LoadSession restores the persisted session. Both the token and the user
// snapshot must be present and readable; anything else (absent keys, a
// corrupt snapshot, an unopenable sealed token) yields ok=false rather than
// an error, so startup never fails on bad state.
func (s *Store) LoadSession() (token string, user model.User, ok bool) {
	var sealed, snapshot []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if v := b.Get(tokenKey); v != nil {
			sealed = append(sealed, v...)
		}
		if v := b.Get(userKey); v != nil {
			snapshot = append(snapshot, v...)
		}
		return nil
	})
	if err != nil || sealed == nil || snapshot == nil {
		return "", model.User{}, false
	}

	plain, err := s.cipher.Open(sealed)
	if err != nil {
		slog.Debug("discarding unreadable persisted token", "error", err)
		return "", model.User{}, false
	}

	if err := json.Unmarshal(snapshot, &user); err != nil {
		slog.Debug("discarding corrupt user snapshot", "error", err)
		return "", model.User{}, false
	}
	if err := user.Validate(); err != nil {
		slog.Debug("discarding invalid user snapshot", "error", err)
		return "", model.User{}, false
	}

	return string(plain), user, true
}

// ClearSession removes the token and user snapshot together.
func (s *Store) ClearSession() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionBucket)
		if err := b.Delete(tokenKey); err != nil {
			return err
		}
		return b.Delete(userKey)
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// SaveSelectedList persists the active list selection.
func (s *Store) SaveSelectedList(id int) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(uiBucket).Put(selectedListKey, itob(id))
	})
	if err != nil {
		return fmt.Errorf("persisting selection: %w", err)
	}
	return nil
}

// LoadSelectedList returns the persisted selection, if any.
func (s *Store) LoadSelectedList() (int, bool) {
	var raw []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(uiBucket).Get(selectedListKey); v != nil {
			raw = append(raw, v...)
		}
		return nil
	})
	if len(raw) != 8 {
		return 0, false
	}
	return btoi(raw), true
}

// ClearSelectedList drops the persisted selection.
func (s *Store) ClearSelectedList() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(uiBucket).Delete(selectedListKey)
	})
	if err != nil {
		return fmt.Errorf("clearing selection: %w", err)
	}
	return nil
}

func itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}
