package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"fleetwear/internal/fleet"
)

// DefaultCacheTTL bounds how long a resolved token is trusted before the
// backend is asked again.
const DefaultCacheTTL = 30 * time.Second

// HashToken returns a stable digest of a bearer token, used wherever a
// token must key a map without being held in memory.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type cachedUser struct {
	user      fleet.User
	expiresAt time.Time
}

// sessionCache remembers which user a token resolved to.
type sessionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedUser
}

func newSessionCache(ttl time.Duration) *sessionCache {
	return &sessionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedUser),
	}
}

func (c *sessionCache) get(token string) (fleet.User, bool) {
	if c.ttl <= 0 {
		return fleet.User{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := HashToken(token)
	e, ok := c.entries[key]
	if !ok {
		return fleet.User{}, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return fleet.User{}, false
	}
	return e.user, true
}

func (c *sessionCache) put(token string, u fleet.User) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[HashToken(token)] = cachedUser{user: u, expiresAt: c.now().Add(c.ttl)}
}

// cleanup drops expired entries.
func (c *sessionCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
