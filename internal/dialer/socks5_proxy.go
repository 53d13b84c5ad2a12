package dialer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/die-net/warden/internal/socks5"
)

type SOCKS5ProxyDialer struct {
	cfg       Config
	proxyAddr string
	auth      socks5.Auth
	direct    Dialer
}

func NewSOCKS5ProxyDialer(cfg Config, proxyAddr, username, password string) *SOCKS5ProxyDialer {
	return &SOCKS5ProxyDialer{
		cfg:       cfg,
		proxyAddr: proxyAddr,
		auth:      socks5.Auth{Username: username, Password: password},
		direct:    NewDirectDialer(cfg),
	}
}

func (f *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, fmt.Errorf("socks5 proxy dial %s %s: unsupported network", network, address)
	}

	c, err := f.direct.DialContext(ctx, "tcp", f.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	// Unblock the handshake if ctx ends before it completes.
	stop := context.AfterFunc(ctx, func() {
		_ = c.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if f.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(f.cfg.NegotiationTimeout))
	}

	if err := socks5.Connect(c, f.auth, address); err != nil {
		_ = c.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("socks5 proxy dial %s: %w", address, ctx.Err())
		}
		return nil, fmt.Errorf("socks5 proxy dial %s: %w", address, err)
	}

	if !stop() {
		_ = c.Close()
		return nil, fmt.Errorf("socks5 proxy dial %s: %w", address, ctx.Err())
	}
	_ = c.SetDeadline(time.Time{})
	return c, nil
}
