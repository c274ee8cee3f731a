package monitor

import (
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"
)

const defaultCacheSize = 4096

// Signature returns the content signature used for change suppression.
func Signature(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ChangeCache remembers the last analyzed signature per path so unchanged
// content is not re-analyzed. The cache is bounded; least recently touched
// paths fall out first and simply get re-analyzed on their next event.
type ChangeCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, string]
}

// NewChangeCache returns a cache holding up to size signatures.
func NewChangeCache(size int) *ChangeCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, _ := lru.New[string, string](size)
	return &ChangeCache{cache: cache}
}

// RecordAndCheck stores sig for path and reports whether the content changed
// since the last record. A never-seen path counts as changed.
func (c *ChangeCache) RecordAndCheck(path, sig string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.cache.Get(path)
	if ok && prev == sig {
		return false
	}
	c.cache.Add(path, sig)
	return true
}

// Evict drops the cached signature for a path.
func (c *ChangeCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(path)
}

// Len returns the number of cached signatures.
func (c *ChangeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
