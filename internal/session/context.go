package session

import (
	"context"
	"log"

	authdomain "dailyrush-backend/internal/auth/domain"
	authusecase "dailyrush-backend/internal/auth/usecase"
	"dailyrush-backend/internal/task/repository"
	taskusecase "dailyrush-backend/internal/task/usecase"
)

// Context ties identity resolution to task state for one widget
// session. It is constructed once at startup and shared by the HTTP
// handlers: every task operation asks it for the current namespace's
// reconciler, and sign-in/out flow through it so namespace switches
// tear the old state down before the new one loads.
type Context struct {
	resolver *authusecase.Resolver
	manager  *taskusecase.Manager
	remote   repository.RemoteStore
}

func NewContext(resolver *authusecase.Resolver, manager *taskusecase.Manager, remote repository.RemoteStore) *Context {
	return &Context{
		resolver: resolver,
		manager:  manager,
		remote:   remote,
	}
}

// Reconciler returns the reconciler for the current namespace, loading
// it on first use. Fails with ErrIdentityNotReady while identity
// resolution is in flight.
func (s *Context) Reconciler(ctx context.Context) (*taskusecase.Reconciler, error) {
	namespace, err := s.resolver.Namespace()
	if err != nil {
		return nil, err
	}
	return s.manager.Session(ctx, namespace, s.resolver.RemoteCapable())
}

// SignIn installs a verified identity. If the namespace changes, the
// previous namespace's state is unloaded first and the new one is
// warmed immediately, which also runs migration on first sign-in.
func (s *Context) SignIn(ctx context.Context, identity *authdomain.Identity) {
	previous, prevErr := s.resolver.Namespace()
	s.resolver.SignIn(identity)

	if prevErr == nil && previous != identity.SubjectID {
		s.manager.End(previous)
	}
	if _, err := s.manager.Session(ctx, identity.SubjectID, true); err != nil {
		log.Printf("[Session] warming session for %s failed: %v", identity.SubjectID, err)
	}
}

// SignOut drops the identity and unloads its state; subsequent
// operations run under the guest namespace.
func (s *Context) SignOut() {
	if namespace, err := s.resolver.Namespace(); err == nil {
		s.manager.End(namespace)
	}
	s.resolver.SignOut()
}

// Identity returns the resolved identity, if any.
func (s *Context) Identity() (*authdomain.Identity, bool) {
	return s.resolver.Identity()
}

// UpdateProfile overrides the display name and avatar shown for the
// signed-in user. Nil fields are left unchanged. The override is cached
// locally and merged into the remote user document.
func (s *Context) UpdateProfile(ctx context.Context, customName, customPicture *string) (*authdomain.Identity, error) {
	updated, ok := s.resolver.UpdateIdentity(func(identity *authdomain.Identity) {
		if customName != nil {
			identity.CustomDisplayName = customName
		}
		if customPicture != nil {
			identity.CustomAvatarURL = customPicture
		}
	})
	if !ok {
		return nil, authusecase.ErrIdentityNotReady
	}

	s.mergeProfile(ctx, updated)
	return updated, nil
}

// ResetProfile clears the overrides so provider values show again.
func (s *Context) ResetProfile(ctx context.Context) (*authdomain.Identity, error) {
	updated, ok := s.resolver.UpdateIdentity(func(identity *authdomain.Identity) {
		identity.CustomDisplayName = nil
		identity.CustomAvatarURL = nil
	})
	if !ok {
		return nil, authusecase.ErrIdentityNotReady
	}

	s.mergeProfile(ctx, updated)
	return updated, nil
}

func (s *Context) mergeProfile(ctx context.Context, identity *authdomain.Identity) {
	if s.remote == nil || !s.resolver.RemoteCapable() {
		return
	}
	fields := map[string]interface{}{
		"email":             identity.Email,
		"displayName":       identity.DisplayName,
		"avatarUrl":         identity.AvatarURL,
		"customDisplayName": identity.CustomDisplayName,
		"customAvatarUrl":   identity.CustomAvatarURL,
	}
	if err := s.remote.WriteUser(ctx, identity.SubjectID, fields); err != nil {
		log.Printf("[Session] profile merge for %s failed: %v", identity.SubjectID, err)
	}
}
