// Package dedup remembers the last arrival text delivered to each user.
package dedup

import (
	"sync"
	"time"

	"github.com/bluele/gcache"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

const stripes = 64

// Cache suppresses repeated arrival readings per user.
// Check-and-set is atomic per user; unrelated users only contend when
// they hash to the same stripe.
type Cache struct {
	entries gcache.Cache
	locks   [stripes]sync.Mutex
}

// New creates a Cache holding up to size users. Entries older than ttl are
// treated as never seen; ttl <= 0 disables expiry.
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 10000
	}
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &Cache{entries: b.Build()}
}

func (c *Cache) lock(userID int64) *sync.Mutex {
	i := userID % stripes
	if i < 0 {
		i = -i
	}
	return &c.locks[i]
}

// ShouldDeliver reports whether rec differs from the last text delivered to
// userID, and if so records it as delivered.
func (c *Cache) ShouldDeliver(userID int64, rec domain.ArrivalRecord) bool {
	mu := c.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	if v, err := c.entries.Get(userID); err == nil {
		if last, ok := v.(string); ok && last == rec.Text {
			return false
		}
	}
	_ = c.entries.Set(userID, rec.Text)
	return true
}

// Clear forgets the last delivered text for userID.
func (c *Cache) Clear(userID int64) {
	mu := c.lock(userID)
	mu.Lock()
	defer mu.Unlock()
	c.entries.Remove(userID)
}

// Last returns the last delivered text for userID, if any.
func (c *Cache) Last(userID int64) (string, bool) {
	v, err := c.entries.Get(userID)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
