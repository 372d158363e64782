package usecase

import (
	"context"
	"sync"

	"dailyrush-backend/internal/task/repository"
)

// Migrator runs the one-time local-to-remote carry-over for a subject.
type Migrator interface {
	Migrate(ctx context.Context, subjectID string)
}

// sessionEntry lazily initializes one namespace's reconciler. The
// once-guarded init runs outside the manager's map lock, so a slow
// remote call during one namespace's first load never stalls lookups
// for other namespaces. ready closes when init settles; reconciler and
// err are only read after it.
type sessionEntry struct {
	once       sync.Once
	ready      chan struct{}
	reconciler *Reconciler
	err        error
}

func newSessionEntry() *sessionEntry {
	return &sessionEntry{ready: make(chan struct{})}
}

// loaded reports the entry's reconciler without waiting on an in-flight
// init.
func (e *sessionEntry) loaded() (*Reconciler, bool) {
	select {
	case <-e.ready:
		return e.reconciler, e.reconciler != nil
	default:
		return nil, false
	}
}

// Manager hands out one reconciler per namespace and tears them down on
// sign-out. Authenticated namespaces get the remote store and a
// migration pass before first load; guest namespaces stay cache-only.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry

	cache    *repository.CacheRepository
	remote   repository.RemoteStore
	migrator Migrator
}

func NewManager(cache *repository.CacheRepository, remote repository.RemoteStore, migrator Migrator) *Manager {
	return &Manager{
		sessions: make(map[string]*sessionEntry),
		cache:    cache,
		remote:   remote,
		migrator: migrator,
	}
}

// Session returns the namespace's reconciler, creating and loading it
// on first use. Migration runs before the first load so the initial
// remote read already sees carried-over data. A failed load is
// forgotten, so the next call retries.
func (m *Manager) Session(ctx context.Context, namespace string, authenticated bool) (*Reconciler, error) {
	m.mu.Lock()
	entry, ok := m.sessions[namespace]
	if !ok {
		entry = newSessionEntry()
		m.sessions[namespace] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		defer close(entry.ready)

		var remote repository.RemoteStore
		if authenticated && m.remote != nil {
			remote = m.remote
			if m.migrator != nil {
				m.migrator.Migrate(ctx, namespace)
			}
		}

		session := NewReconciler(namespace, m.cache, remote)
		if err := session.Load(ctx); err != nil {
			entry.err = err
			return
		}
		entry.reconciler = session
	})
	<-entry.ready

	if entry.err != nil {
		m.mu.Lock()
		if m.sessions[namespace] == entry {
			delete(m.sessions, namespace)
		}
		m.mu.Unlock()
		return nil, entry.err
	}
	return entry.reconciler, nil
}

// End closes and forgets the namespace's reconciler, if any. Waits for
// an in-flight first load to settle before closing it.
func (m *Manager) End(namespace string) {
	m.mu.Lock()
	entry, ok := m.sessions[namespace]
	if ok {
		delete(m.sessions, namespace)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	<-entry.ready
	if entry.reconciler != nil {
		entry.reconciler.Close()
	}
}

// Active returns the currently loaded reconcilers keyed by namespace,
// skipping namespaces whose first load is still in flight. Used by the
// reminder scheduler to scan for due tasks.
func (m *Manager) Active() map[string]*Reconciler {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Reconciler, len(m.sessions))
	for ns, entry := range m.sessions {
		if session, ok := entry.loaded(); ok {
			out[ns] = session
		}
	}
	return out
}

// CloseAll tears down every session, for shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()

	for _, entry := range sessions {
		<-entry.ready
		if entry.reconciler != nil {
			entry.reconciler.Close()
		}
	}
}
