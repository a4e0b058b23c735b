package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sophiahq/sophia-gateway/internal/metrics"
)

// Session represents a conversation session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	History   []Message `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// clone copies the session, including the history slice, so callers never
// share storage with the live entry.
func (s *Session) clone() *Session {
	c := *s
	c.History = append([]Message(nil), s.History...)
	return &c
}

// Message represents a message in the session
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store keeps sessions in memory with a per-session history cap and an
// overall session cap. When the cap is hit, the least recently updated
// session is evicted, so anonymous one-shot requests cannot grow the
// store without bound.
type Store struct {
	sessions     map[string]*Session
	historyLimit int
	maxSessions  int
	mu           sync.RWMutex
}

// NewStore creates a session store
func NewStore(historyLimit, maxSessions int) *Store {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &Store{
		sessions:     make(map[string]*Session),
		historyLimit: historyLimit,
		maxSessions:  maxSessions,
	}
}

// Create starts a new session for a user
func (s *Store) Create(userID string) *Session {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.evictOldest()
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()
	return sess.clone()
}

// evictOldest drops the least recently updated session. Caller holds the
// write lock.
func (s *Store) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.UpdatedAt.Before(oldest) {
			oldestID = id
			oldest = sess.UpdatedAt
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		metrics.ActiveSessions.Dec()
	}
}

// Get returns a copy of the session with id
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return sess.clone(), nil
}

// GetOrCreate returns the session with id, creating one when id is empty or
// unknown
func (s *Store) GetOrCreate(id, userID string) *Session {
	if id != "" {
		if sess, err := s.Get(id); err == nil {
			return sess
		}
	}
	return s.Create(userID)
}

// AddMessage appends a message, trimming oldest entries past the cap
func (s *Store) AddMessage(id, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	sess.History = append(sess.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(sess.History) > s.historyLimit {
		sess.History = sess.History[len(sess.History)-s.historyLimit:]
	}
	sess.UpdatedAt = time.Now()
	return nil
}

// List returns copies of all sessions, newest first
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Delete removes a session
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		metrics.ActiveSessions.Dec()
	}
}
