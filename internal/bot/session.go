package bot

import (
	"sync"
	"time"

	"polyagent/internal/dialogue"
)

// SessionStore holds one dialogue session per chat. Sessions never leave
// process memory; the cron sweep drops chats that went quiet.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]dialogue.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[int64]dialogue.Session{}}
}

// Get returns the chat's session, or a fresh inactive one.
func (s *SessionStore) Get(chatID int64) dialogue.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[chatID]
}

// Put stores the session and stamps its last activity.
func (s *SessionStore) Put(chatID int64, sess dialogue.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.LastSeen = time.Now()
	s.sessions[chatID] = sess
}

// Sweep removes sessions idle for longer than ttl and reports how many went.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for chatID, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, chatID)
			removed++
		}
	}
	return removed
}
