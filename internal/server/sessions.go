package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/claude/motionscore/internal/feedback"
	"github.com/claude/motionscore/internal/session"
	"github.com/google/uuid"
)

// liveSession pairs one aggregator with its feedback channel. Both are
// exclusively owned by one remote client, but nothing stops that client
// from issuing overlapping requests: mu serializes all aggregator access.
// lastSeen is guarded by the Manager's mutex instead.
type liveSession struct {
	mu       sync.Mutex
	agg      *session.Aggregator
	fb       *feedback.Channel
	lastSeen time.Time
}

// Manager tracks active live sessions by ID. Sessions that go quiet are
// reaped so their feedback workers do not leak.
type Manager struct {
	factory  *session.Factory
	debounce time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession
}

// NewManager creates an empty session manager.
func NewManager(factory *session.Factory, debounce time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		factory:  factory,
		debounce: debounce,
		log:      log,
		sessions: make(map[uuid.UUID]*liveSession),
	}
}

// Create starts a new live session and returns its ID.
func (m *Manager) Create() uuid.UUID {
	id := uuid.New()
	ls := &liveSession{
		agg:      m.factory.NewSession(),
		fb:       feedback.New(&logAnnouncer{log: m.log, session: id}, m.debounce, m.log),
		lastSeen: time.Now(),
	}
	m.mu.Lock()
	m.sessions[id] = ls
	m.mu.Unlock()
	return id
}

// get returns the session and refreshes its idle timer.
func (m *Manager) get(id uuid.UUID) (*liveSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.sessions[id]
	if ok {
		ls.lastSeen = time.Now()
	}
	return ls, ok
}

// Delete tears down a session, stopping its feedback worker.
func (m *Manager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	ls, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		ls.fb.Close()
	}
	return ok
}

// Reap closes sessions idle for longer than maxIdle and returns how many
// were removed. Run periodically by the server binary.
func (m *Manager) Reap(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var stale []*liveSession
	for id, ls := range m.sessions {
		if ls.lastSeen.Before(cutoff) {
			stale = append(stale, ls)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, ls := range stale {
		ls.fb.Close()
	}
	if len(stale) > 0 && m.log != nil {
		m.log.Info("reaped idle sessions", "count", len(stale))
	}
	return len(stale)
}

// CloseAll tears down every session. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*liveSession, 0, len(m.sessions))
	for id, ls := range m.sessions {
		all = append(all, ls)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, ls := range all {
		ls.fb.Close()
	}
}

// Len returns the number of active sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// logAnnouncer delivers feedback to the structured log. Deployments with a
// speech or push channel swap in their own Announcer.
type logAnnouncer struct {
	log     *slog.Logger
	session uuid.UUID
}

func (a *logAnnouncer) Announce(msg string) error {
	if a.log != nil {
		a.log.Info("feedback", "session", a.session.String(), "message", msg)
	}
	return nil
}
