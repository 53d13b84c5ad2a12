package proxy

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/die-net/warden/internal/origin"
	"github.com/die-net/warden/internal/testutil"
)

func TestProxyThroughOrigin(t *testing.T) {
	t.Parallel()

	o := testutil.StartOrigin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			time.Sleep(500 * time.Millisecond)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		}
		fmt.Fprintf(w, "origin %s %s", r.Host, r.URL.Path)
	}))

	fetcher := origin.New(origin.Config{
		Dialer:          o.Dialer(),
		Timeout:         100 * time.Millisecond,
		TLSClientConfig: o.TLSConfig(),
		Logger:          &nop,
	})
	t.Cleanup(fetcher.CloseIdleConnections)

	_, addr := startServer(t, testConfig(fetcher))

	tests := []struct {
		target   string
		wantBody string
		wantHits int64
	}{
		{"https://example.com/a", "origin example.com /a", 1},
		{"https://example.com/a", "origin example.com /a", 1},
		{"/https://example.com/a", "origin example.com /a", 1},
		{"https://example.com/missing", "origin example.com /missing", 2},
		{"https://example.com/slow", origin.TimedOutBody, 3},
		{"https://example.com/slow", origin.TimedOutBody, 3},
	}

	for _, tt := range tests {
		got := get(t, addr, tt.target)
		if got.status != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", tt.target, got.status)
		}
		if got.body != tt.wantBody {
			t.Fatalf("%s: expected %q got %q", tt.target, tt.wantBody, got.body)
		}
		if o.Hits() != tt.wantHits {
			t.Fatalf("%s: expected %d origin hits, got %d", tt.target, tt.wantHits, o.Hits())
		}
	}
}
