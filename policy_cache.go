package cartridge

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedPolicyEngine memoizes a PolicyEngine's Evaluate results behind a
// bounded LRU, keyed on (policy, action, path). Unlike the ARC buffer
// pool, this cache has no need for ghost lists or adaptive recency — it
// is a plain "don't re-evaluate the same decision twice" memo, so a real
// off-the-shelf LRU (github.com/hashicorp/golang-lru/v2) is the right
// tool rather than hand-rolling one, per spec.md §5(c)'s "optional
// policy-evaluation cache, guarded independently".
type CachedPolicyEngine struct {
	inner PolicyEngine
	cache *lru.Cache[string, bool]
}

// NewCachedPolicyEngine wraps inner with an LRU memo of the given size.
func NewCachedPolicyEngine(inner PolicyEngine, size int) (*CachedPolicyEngine, error) {
	c, err := lru.New[string, bool](size)
	if err != nil {
		return nil, err
	}
	return &CachedPolicyEngine{inner: inner, cache: c}, nil
}

func policyCacheKey(policy, action, path string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", policy, action, path)
}

// Evaluate returns a cached decision when present; otherwise it asks the
// wrapped engine and caches the result. context is never part of the
// cache key, so callers relying on context-sensitive policies should not
// wrap them with this cache.
func (c *CachedPolicyEngine) Evaluate(policy, action, path string, context map[string]string) bool {
	key := policyCacheKey(policy, action, path)
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	v := c.inner.Evaluate(policy, action, path, context)
	c.cache.Add(key, v)
	return v
}

// Purge drops every cached decision, used when the policy document
// itself changes.
func (c *CachedPolicyEngine) Purge() {
	c.cache.Purge()
}
