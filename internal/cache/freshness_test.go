package cache

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	fetched := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Entry{Body: "x", FetchedAt: fetched}

	tests := []struct {
		name string
		ok   bool
		age  time.Duration
		want Outcome
	}{
		{name: "miss", ok: false, want: Miss},
		{name: "just fetched", ok: true, age: 0, want: FreshHit},
		{name: "under ttl", ok: true, age: DefaultTTL - time.Nanosecond, want: FreshHit},
		{name: "at ttl", ok: true, age: DefaultTTL, want: StaleHit},
		{name: "over ttl", ok: true, age: time.Hour, want: StaleHit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Classify(e, tt.ok, fetched.Add(tt.age), DefaultTTL)
			if got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
			if got.NeedsFetch() != (tt.want != FreshHit) {
				t.Fatalf("NeedsFetch = %v for %v", got.NeedsFetch(), got)
			}
		})
	}
}
