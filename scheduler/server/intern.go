package server

import (
	lru "github.com/hashicorp/golang-lru"
)

// userInterner caches interned user ids so the many counters keyed by
// user name (§3's per-user occupancy, §4.D's per-user limit check)
// don't each hold their own copy of the same short-lived string.
type userInterner struct {
	cache *lru.Cache
}

// newUserInterner builds an interner bounded to size distinct users;
// past that bound the least-recently-interned name is evicted rather
// than grown unbounded.
func newUserInterner(size int) *userInterner {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New(size)
	if err != nil {
		// size is always positive here, so lru.New cannot fail.
		panic(err)
	}
	return &userInterner{cache: cache}
}

// Intern returns the cached copy of s, adding it to the cache first if
// this is the first time s has been seen.
func (i *userInterner) Intern(s string) string {
	if existing, ok := i.cache.Get(s); ok {
		return existing.(string)
	}
	i.cache.Add(s, s)
	return s
}
