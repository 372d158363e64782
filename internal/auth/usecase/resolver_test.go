package usecase

import (
	"context"
	"errors"
	"testing"

	authdomain "dailyrush-backend/internal/auth/domain"
	"dailyrush-backend/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	identity *authdomain.Identity
	err      error
}

func (s *stubSessions) CurrentIdentity(ctx context.Context, credential string) (*authdomain.Identity, error) {
	return s.identity, s.err
}

type memoryIdentityStore struct {
	identity *authdomain.Identity
}

func (m *memoryIdentityStore) LoadIdentity() (*authdomain.Identity, bool) {
	if m.identity == nil {
		return nil, false
	}
	return m.identity.Clone(), true
}

func (m *memoryIdentityStore) SaveIdentity(identity *authdomain.Identity) bool {
	m.identity = identity.Clone()
	return true
}

func (m *memoryIdentityStore) RemoveIdentity() {
	m.identity = nil
}

func testIdentity(sub string) *authdomain.Identity {
	return &authdomain.Identity{
		SubjectID:   sub,
		Email:       sub + "@example.com",
		DisplayName: "Test User",
	}
}

func TestNamespaceNotReadyBeforeResolve(t *testing.T) {
	r := NewResolver(&stubSessions{err: errors.New("no session")}, &memoryIdentityStore{})

	_, err := r.Namespace()
	assert.ErrorIs(t, err, ErrIdentityNotReady)
	assert.False(t, r.RemoteCapable())
}

func TestResolveViaProviderSession(t *testing.T) {
	r := NewResolver(&stubSessions{identity: testIdentity("u1")}, &memoryIdentityStore{})

	state := r.Resolve(context.Background(), "some-token")
	assert.Equal(t, StateResolved, state)

	namespace, err := r.Namespace()
	require.NoError(t, err)
	assert.Equal(t, "u1", namespace)
	assert.True(t, r.RemoteCapable())
}

func TestResolveTrustsCachedIdentity(t *testing.T) {
	store := &memoryIdentityStore{identity: testIdentity("u2")}
	r := NewResolver(&stubSessions{err: errors.New("expired")}, store)

	state := r.Resolve(context.Background(), "stale-token")
	assert.Equal(t, StateResolved, state)

	namespace, err := r.Namespace()
	require.NoError(t, err)
	assert.Equal(t, "u2", namespace)
}

func TestResolveFallsBackToAnonymous(t *testing.T) {
	r := NewResolver(&stubSessions{err: errors.New("no session")}, &memoryIdentityStore{})

	state := r.Resolve(context.Background(), "")
	assert.Equal(t, StateAnonymous, state)

	namespace, err := r.Namespace()
	require.NoError(t, err)
	assert.Equal(t, cache.GuestNamespace, namespace)
	assert.False(t, r.RemoteCapable())
}

func TestSignInCachesIdentity(t *testing.T) {
	store := &memoryIdentityStore{}
	r := NewResolver(&stubSessions{}, store)
	r.Resolve(context.Background(), "")

	switched, _ := r.SignIn(testIdentity("u1"))
	assert.False(t, switched)

	require.NotNil(t, store.identity)
	assert.Equal(t, "u1", store.identity.SubjectID)
	assert.True(t, r.RemoteCapable())
}

func TestSignInDetectsSubjectSwitch(t *testing.T) {
	r := NewResolver(&stubSessions{}, &memoryIdentityStore{})
	r.SignIn(testIdentity("u1"))

	switched, previous := r.SignIn(testIdentity("u2"))
	assert.True(t, switched)
	assert.Equal(t, "u1", previous)

	namespace, err := r.Namespace()
	require.NoError(t, err)
	assert.Equal(t, "u2", namespace)
}

func TestSignInSameSubjectIsNotASwitch(t *testing.T) {
	r := NewResolver(&stubSessions{}, &memoryIdentityStore{})
	r.SignIn(testIdentity("u1"))

	switched, _ := r.SignIn(testIdentity("u1"))
	assert.False(t, switched)
}

func TestSignOutRevertsToGuest(t *testing.T) {
	store := &memoryIdentityStore{}
	r := NewResolver(&stubSessions{}, store)
	r.SignIn(testIdentity("u1"))

	r.SignOut()

	namespace, err := r.Namespace()
	require.NoError(t, err)
	assert.Equal(t, cache.GuestNamespace, namespace)
	assert.False(t, r.RemoteCapable())
	assert.Nil(t, store.identity)
}

func TestUpdateIdentityPersistsOverrides(t *testing.T) {
	store := &memoryIdentityStore{}
	r := NewResolver(&stubSessions{}, store)
	r.SignIn(testIdentity("u1"))

	custom := "Night Owl"
	updated, ok := r.UpdateIdentity(func(identity *authdomain.Identity) {
		identity.CustomDisplayName = &custom
	})
	require.True(t, ok)
	assert.Equal(t, "Night Owl", updated.EffectiveDisplayName())
	require.NotNil(t, store.identity.CustomDisplayName)
	assert.Equal(t, "Night Owl", *store.identity.CustomDisplayName)
}

func TestUpdateIdentityRequiresResolvedState(t *testing.T) {
	r := NewResolver(&stubSessions{}, &memoryIdentityStore{})
	r.Resolve(context.Background(), "")

	_, ok := r.UpdateIdentity(func(identity *authdomain.Identity) {})
	assert.False(t, ok)
}

func TestIdentityReturnsCopy(t *testing.T) {
	r := NewResolver(&stubSessions{}, &memoryIdentityStore{})
	r.SignIn(testIdentity("u1"))

	identity, ok := r.Identity()
	require.True(t, ok)
	identity.DisplayName = "tampered"

	fresh, _ := r.Identity()
	assert.Equal(t, "Test User", fresh.DisplayName)
}
