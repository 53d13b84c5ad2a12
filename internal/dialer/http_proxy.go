package dialer

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPProxyDialer tunnels outbound TCP connections through an HTTP or HTTPS
// proxy with the CONNECT method.
type HTTPProxyDialer struct {
	cfg      Config
	proxyURL *url.URL
	auth     string
	direct   Dialer
}

// NewHTTPProxyDialer constructs a CONNECT dialer for proxyURL. A non-empty
// username is sent as Proxy-Authorization.
func NewHTTPProxyDialer(cfg Config, proxyURL *url.URL, username, password string) (*HTTPProxyDialer, error) {
	if proxyURL == nil || proxyURL.Hostname() == "" {
		return nil, errors.New("http proxy dialer: missing proxy host")
	}
	if proxyURL.Scheme != "http" && proxyURL.Scheme != "https" {
		return nil, fmt.Errorf("http proxy dialer: unsupported scheme: %q", proxyURL.Scheme)
	}

	f := &HTTPProxyDialer{
		cfg:      cfg,
		proxyURL: proxyURL,
		direct:   NewDirectDialer(cfg),
	}
	if username != "" {
		f.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	}
	return f, nil
}

// ProxyAddr returns the proxy host:port.
func (f *HTTPProxyDialer) ProxyAddr() string {
	return f.proxyURL.Host
}

// DialContext connects to the proxy and asks it to CONNECT to address. For
// an https proxy the proxy connection itself is TLS. NegotiationTimeout, if
// set, bounds everything after the TCP connect.
func (f *HTTPProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("http proxy dial %s %s: unsupported network", network, address)
	}

	c, err := f.direct.DialContext(ctx, network, f.proxyURL.Host)
	if err != nil {
		return nil, fmt.Errorf("http proxy: %w", err)
	}

	if f.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(f.cfg.NegotiationTimeout))
	}

	if f.proxyURL.Scheme == "https" {
		tc := tls.Client(c, &tls.Config{MinVersion: tls.VersionTLS12, ServerName: f.proxyURL.Hostname()})
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = tc.Close()
			return nil, fmt.Errorf("http proxy tls handshake: %w", err)
		}
		c = tc
	}

	if err := f.connect(c, address); err != nil {
		_ = c.Close()
		return nil, err
	}

	_ = c.SetDeadline(time.Time{})
	return c, nil
}

func (f *HTTPProxyDialer) connect(c net.Conn, address string) error {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if f.auth != "" {
		req.Header.Set("Proxy-Authorization", f.auth)
	}

	if err := req.Write(c); err != nil {
		return fmt.Errorf("http proxy connect write: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(c), req)
	if err != nil {
		return fmt.Errorf("http proxy connect read: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("http proxy connect failed: %s", resp.Status)
	}
	return nil
}
