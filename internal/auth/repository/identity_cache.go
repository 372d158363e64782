package repository

import (
	"encoding/json"
	"log"

	authdomain "dailyrush-backend/internal/auth/domain"
	"dailyrush-backend/pkg/cache"
)

// IdentityCache persists the signed-in identity in the local cache store
// under the widget's `user` key. An absent key means signed out.
type IdentityCache struct {
	store cache.Store
}

func NewIdentityCache(store cache.Store) *IdentityCache {
	return &IdentityCache{store: store}
}

// LoadIdentity returns the cached identity, or false when absent or
// malformed. Malformed records are discarded, never surfaced.
func (c *IdentityCache) LoadIdentity() (*authdomain.Identity, bool) {
	raw, ok := c.store.Get(cache.UserKey())
	if !ok {
		return nil, false
	}

	var identity authdomain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		log.Printf("[IdentityCache] discarding malformed cached identity: %v", err)
		c.store.Remove(cache.UserKey())
		return nil, false
	}
	if identity.SubjectID == "" {
		return nil, false
	}
	return &identity, true
}

func (c *IdentityCache) SaveIdentity(identity *authdomain.Identity) bool {
	raw, err := json.Marshal(identity)
	if err != nil {
		log.Printf("[IdentityCache] encoding identity: %v", err)
		return false
	}
	return c.store.Set(cache.UserKey(), raw)
}

func (c *IdentityCache) RemoveIdentity() {
	c.store.Remove(cache.UserKey())
}
