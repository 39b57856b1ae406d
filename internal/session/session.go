// Package session holds the single active encryption key for the duration
// of a sealbox session. Exactly one key is active at a time; setting a new
// one replaces the old. Operations must capture the key reference once at
// call start rather than re-reading the session mid-operation.
package session

import (
	"sync"

	"github.com/illarion/sealbox/internal/crypto"
)

// Session is an explicit holder for the current key, replacing any notion
// of a process-global key slot.
type Session struct {
	mu  sync.RWMutex
	key *crypto.Key
}

// New creates an empty session with no active key
func New() *Session {
	return &Session{}
}

// SetKey installs a key as the active one, replacing any previous key.
// The previous key is not destroyed; in-flight operations that captured it
// keep working, and it becomes unreachable once they finish.
func (s *Session) SetKey(key *crypto.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
}

// Key returns the currently active key, or nil if none has been set.
// Callers hold the returned reference for the whole operation.
func (s *Session) Key() *crypto.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// HasKey reports whether a key is active
func (s *Session) HasKey() bool {
	return s.Key() != nil
}

// Clear drops the active key reference
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = nil
}
