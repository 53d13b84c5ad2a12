package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLookupColdMiss(t *testing.T) {
	t.Parallel()

	s := New(10)
	for _, u := range []string{"https://example.com/", "https://example.com/a", ""} {
		if _, ok := s.Lookup(u); ok {
			t.Fatalf("unexpected hit for %q", u)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestUpsertAndLookup(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := New(10, WithClock(clock.Now))

	got := s.Upsert("https://example.com/a", "hello")
	want := Entry{Body: "hello", FetchedAt: clock.Now()}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Upsert mismatch (-want +got):\n%s", diff)
	}

	e, ok := s.Lookup("https://example.com/a")
	if !ok {
		t.Fatal("expected hit")
	}
	if diff := cmp.Diff(want, e); diff != "" {
		t.Fatalf("Lookup mismatch (-want +got):\n%s", diff)
	}

	// Keys are used verbatim.
	if _, ok := s.Lookup("https://EXAMPLE.com/a"); ok {
		t.Fatal("keys must be case sensitive")
	}
	if _, ok := s.Lookup("https://example.com/a/"); ok {
		t.Fatal("keys must not be normalized")
	}

	clock.Advance(time.Minute)
	s.Upsert("https://example.com/a", "bye")
	e, _ = s.Lookup("https://example.com/a")
	if e.Body != "bye" || !e.FetchedAt.Equal(clock.Now()) {
		t.Fatalf("replacement not visible: %+v", e)
	}
	if s.Len() != 1 {
		t.Fatalf("replacement must not add entries, got %d", s.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	var evicted []string
	s := New(3, WithOnEvicted(func(url string) { evicted = append(evicted, url) }))

	s.Upsert("a", "1")
	s.Upsert("b", "2")
	s.Upsert("c", "3")

	// A hit refreshes recency, so b becomes the oldest.
	if _, ok := s.Lookup("a"); !ok {
		t.Fatal("expected hit for a")
	}

	s.Upsert("d", "4")
	if diff := cmp.Diff([]string{"b"}, evicted); diff != "" {
		t.Fatalf("evicted mismatch (-want +got):\n%s", diff)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Len())
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := s.Lookup(k); !ok {
			t.Fatalf("expected %q to survive", k)
		}
	}

	// The lookups above leave a as the oldest entry. Replacing c refreshes
	// only c, so a goes next.
	s.Upsert("c", "33")
	s.Upsert("e", "5")
	if diff := cmp.Diff([]string{"b", "a"}, evicted); diff != "" {
		t.Fatalf("evicted mismatch (-want +got):\n%s", diff)
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	const n = 5
	s := New(n)
	for i := range 50 {
		s.Upsert(fmt.Sprintf("https://example.com/%d", i), "x")
		if s.Len() > n {
			t.Fatalf("store holds %d entries, max %d", s.Len(), n)
		}
	}
	for i := 45; i < 50; i++ {
		if _, ok := s.Lookup(fmt.Sprintf("https://example.com/%d", i)); !ok {
			t.Fatalf("expected newest entry %d to be present", i)
		}
	}
}

func TestDefaultSize(t *testing.T) {
	t.Parallel()

	s := New(0)
	for i := range DefaultMaxEntries + 1 {
		s.Upsert(fmt.Sprint(i), "")
	}
	if s.Len() != DefaultMaxEntries {
		t.Fatalf("expected %d entries, got %d", DefaultMaxEntries, s.Len())
	}
	if _, ok := s.Lookup("0"); ok {
		t.Fatal("expected first entry to be evicted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New(8)
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			for j := range 200 {
				k := fmt.Sprint((i + j) % 12)
				if _, ok := s.Lookup(k); !ok {
					s.Upsert(k, k)
				}
			}
		})
	}
	wg.Wait()

	if s.Len() > 8 {
		t.Fatalf("store holds %d entries", s.Len())
	}
}
