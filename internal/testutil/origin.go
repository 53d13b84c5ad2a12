package testutil

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// Origin is a TLS origin server that counts the requests it serves.
//
// Its certificate is valid for example.com and loopback addresses, and
// Dialer routes every address to it, so tests can fetch URLs such as
// https://example.com/a without touching the network.
type Origin struct {
	*httptest.Server
	hits atomic.Int64
}

// StartOrigin starts an Origin serving handler. It is closed when the test
// ends.
func StartOrigin(t *testing.T, handler http.Handler) *Origin {
	t.Helper()

	o := &Origin{}
	o.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(o.Close)
	return o
}

// Hits returns how many requests the origin has received.
func (o *Origin) Hits() int64 {
	return o.hits.Load()
}

// TLSConfig returns a client config trusting the origin's certificate.
func (o *Origin) TLSConfig() *tls.Config {
	pool := x509.NewCertPool()
	pool.AddCert(o.Certificate())
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
}

// Dialer returns a dialer that connects to the origin whatever address it
// is asked for.
func (o *Origin) Dialer() RedirectDialer {
	return RedirectDialer(o.Listener.Addr().String())
}

// RedirectDialer dials its own value regardless of the requested address.
type RedirectDialer string

func (d RedirectDialer) DialContext(ctx context.Context, network, _ string) (net.Conn, error) {
	var nd net.Dialer
	return nd.DialContext(ctx, network, string(d))
}
