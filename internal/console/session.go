package console

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/dbbrowser/internal/browser"
)

// Session is the per-user console state: the active database and table,
// the row filter, page size, the page last shown and the SQL script buffer.
// A session is only modified through Console methods, which hold its lock
// for the whole operation.
type Session struct {
	ID string

	mu       sync.Mutex
	database string
	table    string
	filter   string
	pageSize int
	page     *browser.Page
	script   string
	lastSeen time.Time
}

// State is a copy of a session's fields, safe to read without locking.
type State struct {
	Database string
	Table    string
	Filter   string
	PageSize int
	Page     *browser.Page
	Script   string
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Database: s.database,
		Table:    s.table,
		Filter:   s.filter,
		PageSize: s.pageSize,
		Page:     s.page,
		Script:   s.script,
	}
}

func (s *Session) selectDatabase(name string) {
	s.database = name
	s.closeTable()
}

func (s *Session) closeTable() {
	s.table = ""
	s.filter = ""
	s.page = nil
}

// SessionManager tracks sessions by id and expires idle ones.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl      time.Duration
	pageSize int
	now      func() time.Time
}

// NewSessionManager creates a manager whose sessions start with pageSize
// and expire after ttl without use. A zero ttl disables expiry.
func NewSessionManager(ttl time.Duration, pageSize int) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		pageSize: pageSize,
		now:      time.Now,
	}
}

// Create starts a new session with a random id.
func (m *SessionManager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		ID:       uuid.NewString(),
		pageSize: m.pageSize,
		lastSeen: m.now(),
	}
	m.sessions[s.ID] = s
	return s
}

// Get returns the live session with id and marks it as used.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(s, now) {
		delete(m.sessions, id)
		return nil, false
	}
	s.lastSeen = now
	return s, true
}

// GetOrCreate returns the session with id, or a new one when id is unknown
// or expired. The second result reports whether a session was created.
func (m *SessionManager) GetOrCreate(id string) (*Session, bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}
	return m.Create(), true
}

// Sweep removes expired sessions and returns how many were removed.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) expired(s *Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.lastSeen) > m.ttl
}
