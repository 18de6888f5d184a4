// Package session keeps the live assignment controllers of the process and mirrors their
// selection to the snapshot store so a session survives a restart.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/categorizer/internal/assignment"
	"storefront/categorizer/internal/state"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("assignment session not found")

type Manager struct {
	deps  assignment.Deps
	opts  assignment.Options
	store state.SessionStore
	ttl   time.Duration
	clock clock.Clock

	mu       sync.Mutex
	sessions map[string]*assignment.Controller
}

// NewManager reaps sessions idle for longer than ttl.
func NewManager(deps assignment.Deps, opts assignment.Options, store state.SessionStore, ttl time.Duration) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Manager{
		deps:     deps,
		opts:     opts,
		store:    store,
		ttl:      ttl,
		clock:    opts.Clock,
		sessions: make(map[string]*assignment.Controller),
	}
}

func (m *Manager) Open(ctx context.Context, tenantID, itemID string) (*assignment.Controller, error) {
	ctrl := assignment.New(uuid.NewString(), tenantID, itemID, m.deps, m.opts)

	if err := m.store.Save(ctx, ctrl.Snapshot()); err != nil {
		ctrl.Cancel()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[ctrl.SessionID()] = ctrl
	m.mu.Unlock()

	log.Infof("🆕 Opened session %s for item %s of tenant %s", ctrl.SessionID(), itemID, tenantID)
	return ctrl, nil
}

// Get returns the live controller of id, restoring it from its snapshot when this process
// does not hold it.
func (m *Manager) Get(ctx context.Context, id string) (*assignment.Controller, error) {
	m.mu.Lock()
	ctrl, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return ctrl, nil
	}

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	restored := assignment.Restore(snap, m.deps, m.opts)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		restored.Cancel()
		return existing, nil
	}
	m.sessions[id] = restored
	m.mu.Unlock()

	log.Infof("♻️ Restored session %s from snapshot", id)
	return restored, nil
}

// Persist saves the snapshot of ctrl, or forgets the session once it is closed.
func (m *Manager) Persist(ctx context.Context, ctrl *assignment.Controller) error {
	if ctrl.Closed() {
		return m.forget(ctx, ctrl.SessionID())
	}
	return m.store.Save(ctx, ctrl.Snapshot())
}

// Close cancels the session without touching the backend.
func (m *Manager) Close(ctx context.Context, id string) error {
	ctrl, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	ctrl.Cancel()
	return m.forget(ctx, id)
}

func (m *Manager) forget(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to forget session %s: %w", id, err)
	}
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap cancels live sessions idle for longer than the ttl and returns how many it dropped.
// Their snapshots expire in the store on their own.
func (m *Manager) Reap() int {
	now := m.clock.Now()

	m.mu.Lock()
	var idle []*assignment.Controller
	for id, ctrl := range m.sessions {
		if now.Sub(ctrl.UpdatedAt()) > m.ttl {
			idle = append(idle, ctrl)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, ctrl := range idle {
		ctrl.Cancel()
		log.Infof("🧹 Reaped idle session %s", ctrl.SessionID())
	}
	return len(idle)
}

// Run reaps idle sessions every interval until ctx is done, then cancels the rest.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := m.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case <-ticker.C:
			m.Reap()
		}
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*assignment.Controller)
	m.mu.Unlock()

	for _, ctrl := range sessions {
		ctrl.Cancel()
	}
	log.Infof("🛑 Session manager stopped, %d live sessions released", len(sessions))
}
