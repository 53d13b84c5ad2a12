package proxy

import (
	"context"
	"fmt"
	"net"
)

// Listen binds a TCP listener on addr whose accepted connections use
// keepAlive.
func Listen(ctx context.Context, addr string, keepAlive net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{KeepAliveConfig: keepAlive}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	return ln, nil
}
