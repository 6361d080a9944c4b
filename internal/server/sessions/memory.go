package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/voicedrop/internal/common"
)

// sessionIDBytes is the entropy of a session id before hex encoding.
const sessionIDBytes = 32

// MemoryStore keeps sessions in process memory. Each write slides the
// expiry to now+ttl.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	newID    func() (string, error)
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
		newID:    func() (string, error) { return common.MakeRandHexString(sessionIDBytes) },
	}
}

func (m *MemoryStore) Create(ctx context.Context) (*Session, error) {
	id, err := m.newID()
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := Session{ID: id, CreatedAt: now, ExpiresAt: now.Add(m.ttl)}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	return &s, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || !s.ExpiresAt.After(m.now()) {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (m *MemoryStore) SetEmail(ctx context.Context, id, email string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.sessions[id]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, common.ErrorNotFound
	}

	s.Email = email
	s.ExpiresAt = now.Add(m.ttl)
	m.sessions[id] = s

	return &s, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Cleanup sweeps expired sessions every interval until ctx is done.
func (m *MemoryStore) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
