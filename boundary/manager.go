// Package boundary implements the HTTP adapter (C8) that exposes a
// session.Engine's operations over a fixed REST + SSE route table, the
// only part of the module a browser client or orchestrating caller ever
// talks to directly.
package boundary

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/taskbridge/agentloop/core"
	"github.com/taskbridge/agentloop/session"
)

// Manager owns the live set of session engines and the shared store/
// coordinator/logger every new one is constructed with.
type Manager struct {
	mu          sync.RWMutex
	engines     map[string]*session.Engine
	store       session.Store
	coordinator session.Coordinator
	logger      core.Logger
	config      session.Config
}

// NewManager builds a Manager. coordinator may be shared across every
// session engine it creates, since Coordinator implementations hold no
// per-session state of their own.
func NewManager(store session.Store, coordinator session.Coordinator, logger core.Logger, cfg session.Config) *Manager {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Manager{
		engines:     make(map[string]*session.Engine),
		store:       store,
		coordinator: coordinator,
		logger:      logger,
		config:      cfg,
	}
}

// Create starts a new session engine and returns its ID.
func (m *Manager) Create() string {
	id := uuid.NewString()
	e := session.New(id, m.config, m.store, m.coordinator, m.logger)

	m.mu.Lock()
	m.engines[id] = e
	m.mu.Unlock()

	return id
}

// ErrSessionNotFound is returned when a route names a session ID the
// Manager has no live engine for.
type ErrSessionNotFound struct {
	ID string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session %q not found", e.ID)
}

// Get returns the live engine for id, loading it from the store and
// reattaching it to the in-memory set if the process doesn't hold it
// (e.g. after a restart).
func (m *Manager) Get(ctx context.Context, id string) (*session.Engine, error) {
	m.mu.RLock()
	e, ok := m.engines[id]
	m.mu.RUnlock()
	if ok {
		return e, nil
	}

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", id, err)
	}
	if snap == nil {
		return nil, &ErrSessionNotFound{ID: id}
	}

	e = session.FromSnapshot(snap, m.store, m.coordinator, m.logger)

	m.mu.Lock()
	m.engines[id] = e
	m.mu.Unlock()

	return e, nil
}

// Remove drops a session from the live set without deleting its persisted
// state; used once a session has reached a terminal state and its client
// has consumed the final replay export.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.engines, id)
	m.mu.Unlock()
}
