// Package cache implements the proxy's shared response store: a bounded,
// least-recently-used map from target URL to the body fetched for it.
//
// Entries carry the time they were fetched; [Classify] turns a lookup into a
// miss, a fresh hit or a stale hit for a given time-to-live.
package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

const (
	// DefaultMaxEntries is used when New is given a non-positive size.
	DefaultMaxEntries = 100

	// DefaultTTL is how long an entry is served without refetching.
	DefaultTTL = 60 * time.Second
)

// Entry is a cached response body. Entries are never modified in place.
type Entry struct {
	Body      string
	FetchedAt time.Time
}

// Age returns how old e is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store is an LRU map from URL to Entry, safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	lru *lru.Cache

	now       func() time.Time
	onEvicted func(url string)
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to timestamp upserts.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithOnEvicted registers fn to be called with the URL of every entry
// removed to make room. Replacing an entry is not an eviction. fn runs with
// the store locked and must not call back into it.
func WithOnEvicted(fn func(url string)) Option {
	return func(s *Store) {
		s.onEvicted = fn
	}
}

// New returns a Store holding at most maxEntries entries.
func New(maxEntries int, opts ...Option) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &Store{
		lru: lru.New(maxEntries),
		now: time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		if s.onEvicted != nil {
			s.onEvicted(key.(string))
		}
	}
	return s
}

// Lookup returns the entry for url. A hit, fresh or not, makes url the most
// recently used entry.
func (s *Store) Lookup(url string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lru.Get(url)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Upsert stores body for url, timestamped with the store clock, and returns
// the new entry. Adding a new url to a full store evicts the least recently
// used entry.
func (s *Store) Upsert(url, body string) Entry {
	e := Entry{Body: body, FetchedAt: s.now()}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Add(url, e)
	return e
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lru.Len()
}

// Now returns the current time according to the store clock.
func (s *Store) Now() time.Time {
	return s.now()
}
