package stratabase

import (
	"github.com/golang/glog"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache used by the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// LRUProgramCache is a size-bounded ProgramCache. It is safe for concurrent
// use.
type LRUProgramCache struct {
	cache *lru.Cache[string, any]
}

// NewLRUProgramCache returns a cache holding at most size programs. A size
// below one falls back to 128.
func NewLRUProgramCache(size int) *LRUProgramCache {
	if size < 1 {
		size = 128
	}
	cache, err := lru.New[string, any](size)
	if err != nil {
		glog.Errorf("[stratabase] program cache: %v\n", err)
		return nil
	}
	return &LRUProgramCache{cache: cache}
}

// Get implements ProgramCache.
func (c *LRUProgramCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Set implements ProgramCache.
func (c *LRUProgramCache) Set(key string, value any) {
	c.cache.Add(key, value)
}

// Len returns the number of cached programs.
func (c *LRUProgramCache) Len() int {
	return c.cache.Len()
}
