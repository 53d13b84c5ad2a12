package cache

import "time"

// Outcome classifies a lookup.
type Outcome int

const (
	// Miss means there was no entry; the origin must be fetched.
	Miss Outcome = iota
	// FreshHit means the entry is younger than the TTL and is served as is.
	FreshHit
	// StaleHit means the entry has reached the TTL and must be refetched.
	StaleHit
)

func (o Outcome) String() string {
	switch o {
	case Miss:
		return "miss"
	case FreshHit:
		return "fresh"
	case StaleHit:
		return "stale"
	default:
		return "unknown"
	}
}

// NeedsFetch reports whether the origin has to be contacted.
func (o Outcome) NeedsFetch() bool {
	return o != FreshHit
}

// Classify returns the outcome of a lookup that returned (e, ok), judged at
// now against ttl. An entry is fresh while its age is strictly less than ttl.
func Classify(e Entry, ok bool, now time.Time, ttl time.Duration) Outcome {
	if !ok {
		return Miss
	}
	if e.Age(now) < ttl {
		return FreshHit
	}
	return StaleHit
}
