package session

import (
	"context"
	"sync"
	"time"

	"github.com/citycare/clinic-assistant/pkg/logging"
)

// Manager serializes read-modify-write cycles against a single session key.
// Duplicate webhook deliveries for the same caller can arrive concurrently;
// a per-key mutex keeps them ordered without contending across sessions.
// The lock must be held only around store reads/writes, never across the
// blocking extraction call.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager wraps a store with per-key locking.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// Store exposes the underlying store for read-only paths.
func (m *Manager) Store() Store {
	return m.store
}

// Lock acquires the mutex for a session key and returns its release func.
func (m *Manager) Lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// LoadOrCreate returns the live session for a caller, creating a fresh one in
// the greeting state when the id is stale or the phone is unknown.
func (m *Manager) LoadOrCreate(ctx context.Context, id, phone string) (*Session, bool, error) {
	if id != "" {
		s, err := m.store.Get(ctx, id)
		if err == nil {
			return s, false, nil
		}
		if err != ErrNotFound {
			return nil, false, err
		}
	}

	s, err := m.store.GetByPhone(ctx, phone)
	if err == nil {
		return s, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}

	fresh := New(phone)
	if err := m.store.Create(ctx, fresh); err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// Sweeper periodically removes sessions idle past the inactivity threshold.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	logger   *logging.Logger
	done     chan struct{}
	stopped  sync.Once
}

// NewSweeper creates an expiry sweeper. It does not start until Run is called.
func NewSweeper(store Store, ttl, interval time.Duration, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run sweeps on a timer until Stop is called or the context is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			removed, err := w.store.DeleteExpired(ctx, w.ttl)
			if err != nil {
				w.logger.Error("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				w.logger.Info("swept expired sessions", "removed", removed)
			}
		}
	}
}

// Stop terminates the sweep loop.
func (w *Sweeper) Stop() {
	w.stopped.Do(func() { close(w.done) })
}
