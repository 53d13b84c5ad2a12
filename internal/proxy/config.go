package proxy

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// LockMode selects how cache access is serialized.
type LockMode int

const (
	// Coalesce holds the cache lock only around map access and collapses
	// concurrent fetches of the same URL into one.
	Coalesce LockMode = iota

	// Global holds one lock across lookup, origin fetch and upsert, so all
	// cache access is serialized, including slow fetches.
	Global
)

func (m LockMode) String() string {
	if m == Global {
		return "global"
	}
	return "coalesce"
}

// ParseLockMode parses the name of a LockMode.
func ParseLockMode(s string) (LockMode, error) {
	switch s {
	case "coalesce":
		return Coalesce, nil
	case "global":
		return Global, nil
	default:
		return 0, fmt.Errorf("unknown cache lock mode %q (want coalesce or global)", s)
	}
}

type Config struct {
	// Credentials is the expected "user:password". Empty rejects everyone.
	Credentials string

	// ForbiddenWords is the URL denylist.
	ForbiddenWords []string

	// CacheSize is the maximum number of cached URLs.
	CacheSize int

	// CacheTTL is how long a cached body is served without refetching.
	CacheTTL time.Duration

	CacheLock LockMode

	// Fetcher retrieves bodies from origins. Required.
	Fetcher Fetcher

	// ReadTimeout bounds the initial read of a request.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration

	// Clock overrides time.Now for cache timestamps.
	Clock func() time.Time

	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger

	// Registerer receives the proxy metrics. Metrics are discarded if nil.
	Registerer prometheus.Registerer
}
