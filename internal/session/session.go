// Package session persists the active login session: who is signed in, which
// branch they belong to, and the Google OAuth token for the interactive
// calendar backend. The calendar core only reads session data through this
// package and never writes identity itself.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/nortadzhiev-rustam/edu-sis-paragon-sub009/internal/model"
)

// Session is the persisted identity for the active login.
type Session struct {
	UserID   string         `json:"user_id"`
	AuthCode string         `json:"auth_code"`
	UserType model.UserRole `json:"user_type"`
	BranchID string         `json:"branch_id"`
}

// UserContext converts the session into the context object the calendar
// core threads through its calls.
func (s *Session) UserContext() model.UserContext {
	return model.UserContext{
		UserID:   s.UserID,
		Role:     s.UserType,
		AuthCode: s.AuthCode,
		BranchID: s.BranchID,
	}
}

// Store is a file-backed session store.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a session store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the session to disk with owner-only permissions.
func (s *Store) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads the stored session. Returns nil, nil if no session exists.
func (s *Store) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Clear removes the stored session, typically on logout. Clearing a store
// that has no session is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
