package services

import (
	"sync"
	"time"

	"sales-dashboard/internal/models"
)

const (
	SourceSample = "sample"
	SourceUpload = "upload"
)

// Session is one browser's working dataset.
type Session struct {
	ID     string       `json:"id"`
	Table  models.Table `json:"-"`
	Source string       `json:"source"`
	// Name is the preset for sample data or the uploaded file name.
	Name           string `json:"name"`
	Notice         string `json:"notice,omitempty"`
	MalformedCells int    `json:"malformed_cells,omitempty"`
}

type sessionEntry struct {
	session  Session
	lastSeen time.Time
}

// SessionStore keeps sessions in memory. Sessions idle for longer than the
// TTL are dropped on a later access.
type SessionStore struct {
	mu        sync.Mutex
	sessions  map[string]*sessionEntry
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	entry, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	if now.Sub(entry.lastSeen) > s.ttl {
		delete(s.sessions, id)
		return Session{}, false
	}
	entry.lastSeen = now
	return entry.session, true
}

func (s *SessionStore) Put(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	s.sessions[session.ID] = &sessionEntry{session: session, lastSeen: now}
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweepLocked runs at most once per TTL/4.
func (s *SessionStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.ttl/4 {
		return
	}
	s.lastSweep = now
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
