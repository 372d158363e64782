package usecase

import (
	"context"
	"errors"
	"log"
	"sync"

	authdomain "dailyrush-backend/internal/auth/domain"
	"dailyrush-backend/pkg/cache"
)

// ErrIdentityNotReady rejects mutations attempted while identity
// resolution is still in flight, so nothing operates on a stale namespace.
var ErrIdentityNotReady = errors.New("identity not ready")

// State is the identity resolution lifecycle.
type State int

const (
	StateUnresolved State = iota
	StateResolving
	StateResolved
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unresolved"
	}
}

// IdentityStore is the cached-identity slice of the local cache store.
type IdentityStore interface {
	LoadIdentity() (*authdomain.Identity, bool)
	SaveIdentity(identity *authdomain.Identity) bool
	RemoveIdentity()
}

// SessionChecker consults the provider session layer: given a credential
// it either yields the current identity or reports there is none.
type SessionChecker interface {
	CurrentIdentity(ctx context.Context, credential string) (*authdomain.Identity, error)
}

// Resolver decides which identity, and therefore which storage
// namespace, the session operates on. It starts Unresolved; Resolve
// consults the provider session first and the cached identity second,
// ending Resolved or Anonymous.
type Resolver struct {
	mu       sync.Mutex
	state    State
	identity *authdomain.Identity

	sessions SessionChecker
	cache    IdentityStore
}

func NewResolver(sessions SessionChecker, identityCache IdentityStore) *Resolver {
	return &Resolver{
		state:    StateUnresolved,
		sessions: sessions,
		cache:    identityCache,
	}
}

// Resolve runs the startup resolution and returns the resulting state.
func (r *Resolver) Resolve(ctx context.Context, credential string) State {
	r.mu.Lock()
	r.state = StateResolving
	r.mu.Unlock()

	if credential != "" && r.sessions != nil {
		identity, err := r.sessions.CurrentIdentity(ctx, credential)
		if err == nil && identity != nil {
			r.install(identity)
			return StateResolved
		}
		if err != nil {
			log.Printf("[Resolver] provider session check failed, trying cached identity: %v", err)
		}
	}

	// No live session: trust a well-formed cached identity.
	if identity, ok := r.cache.LoadIdentity(); ok {
		r.install(identity)
		return StateResolved
	}

	r.mu.Lock()
	r.state = StateAnonymous
	r.identity = nil
	r.mu.Unlock()
	return StateAnonymous
}

// SignIn installs a freshly verified identity and reports whether this
// switches away from a different previously resolved subject. Callers
// must unload the previous subject's state on a switch before loading
// the new one.
func (r *Resolver) SignIn(identity *authdomain.Identity) (switched bool, previous string) {
	r.mu.Lock()
	if r.identity != nil {
		previous = r.identity.SubjectID
	}
	switched = previous != "" && previous != identity.SubjectID
	r.state = StateResolved
	r.identity = identity.Clone()
	r.mu.Unlock()

	r.cache.SaveIdentity(identity)
	return switched, previous
}

// SignOut clears the identity; the namespace reverts to guest.
func (r *Resolver) SignOut() {
	r.mu.Lock()
	r.state = StateAnonymous
	r.identity = nil
	r.mu.Unlock()

	r.cache.RemoveIdentity()
}

// Namespace returns the storage namespace for the current state, or
// ErrIdentityNotReady while resolution is still in flight.
func (r *Resolver) Namespace() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateResolved:
		return r.identity.SubjectID, nil
	case StateAnonymous:
		return cache.GuestNamespace, nil
	default:
		return "", ErrIdentityNotReady
	}
}

// RemoteCapable is the single predicate gating remote store operations.
func (r *Resolver) RemoteCapable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateResolved
}

// Identity returns a copy of the resolved identity, if any.
func (r *Resolver) Identity() (*authdomain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateResolved || r.identity == nil {
		return nil, false
	}
	return r.identity.Clone(), true
}

// UpdateIdentity applies fn to the resolved identity under the lock and
// re-caches the result. No-op when not resolved.
func (r *Resolver) UpdateIdentity(fn func(*authdomain.Identity)) (*authdomain.Identity, bool) {
	r.mu.Lock()
	if r.state != StateResolved || r.identity == nil {
		r.mu.Unlock()
		return nil, false
	}
	fn(r.identity)
	updated := r.identity.Clone()
	r.mu.Unlock()

	r.cache.SaveIdentity(updated)
	return updated, true
}

// State returns the current lifecycle state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Resolver) install(identity *authdomain.Identity) {
	r.mu.Lock()
	r.state = StateResolved
	r.identity = identity.Clone()
	r.mu.Unlock()
}
