package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound indicates the session id or phone has no live session. Callers
// treat this as "start a fresh session", never as a hard failure.
var ErrNotFound = errors.New("session: not found")

// Store persists sessions. All implementations must be safe for concurrent
// use; serialization of read-modify-write cycles per key is the Manager's job.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	GetByPhone(ctx context.Context, phone string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions whose last activity is older than ttl
	// and returns how many were removed.
	DeleteExpired(ctx context.Context, ttl time.Duration) (int, error)
}

// MemoryStore is an in-process store used in development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Session
	byPhone map[string]string // phone digits -> session id
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Session),
		byPhone: make(map[string]string),
	}
}

func (m *MemoryStore) Create(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := cloneSession(s)
	m.byID[cp.ID] = cp
	if cp.Phone != "" {
		m.byPhone[cp.Phone] = cp.ID
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) GetByPhone(ctx context.Context, phone string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byPhone[NormalizePhone(phone)]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) Update(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[s.ID]; !ok {
		return ErrNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	m.byID[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return nil
	}
	delete(m.byID, id)
	if s.Phone != "" && m.byPhone[s.Phone] == id {
		delete(m.byPhone, s.Phone)
	}
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, s := range m.byID {
		if s.Expired(now, ttl) {
			delete(m.byID, id)
			if s.Phone != "" && m.byPhone[s.Phone] == id {
				delete(m.byPhone, s.Phone)
			}
			removed++
		}
	}
	return removed, nil
}

func cloneSession(s *Session) *Session {
	cp := *s
	cp.Context = make(map[string]string, len(s.Context))
	for k, v := range s.Context {
		cp.Context[k] = v
	}
	cp.History = append([]Turn(nil), s.History...)
	return &cp
}
