// Package origin fetches target URLs from their origin servers.
//
// A fetch never fails from the caller's point of view: transport errors,
// unreadable bodies and timeouts are reported as fixed sentinel bodies, which
// the proxy caches and serves like any other content.
package origin

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/die-net/warden/internal/dialer"
)

// Sentinel bodies returned in place of content.
const (
	ReadFailedBody  = "Failed to read response text"
	FetchFailedBody = "Failed to fetch from origin"
	TimedOutBody    = "Request timed out"
)

// DefaultTimeout bounds a whole fetch, headers and body.
const DefaultTimeout = 5 * time.Second

// Status says how a fetch ended.
type Status int

const (
	OK Status = iota
	ReadFailed
	FetchFailed
	TimedOut
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case ReadFailed:
		return "read_failed"
	case FetchFailed:
		return "fetch_failed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is the body to serve for a fetch and how it was obtained.
type Result struct {
	Body   string
	Status Status
}

type Config struct {
	// Dialer makes the outbound connections. Required.
	Dialer dialer.Dialer

	// Timeout bounds each fetch. DefaultTimeout if zero.
	Timeout time.Duration

	// TLSClientConfig overrides the TLS settings used towards origins.
	TLSClientConfig *tls.Config

	// MaxIdleConns limits idle origin connections kept for reuse.
	MaxIdleConns int

	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger
}

// Fetcher issues GET requests to origins with a shared http.Client.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// New returns a Fetcher for cfg.
func New(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Fetcher{
		client:  &http.Client{Transport: newTransport(cfg)},
		timeout: timeout,
		log:     logger.With().Str("component", "origin").Logger(),
	}
}

func newTransport(cfg Config) *http.Transport {
	tlsConfig := cfg.TLSClientConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ClientSessionCache: tls.NewLRUClientSessionCache(0),
		}
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 100
	}

	return &http.Transport{
		DialContext:         cfg.Dialer.DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        maxIdle,
		MaxIdleConnsPerHost: maxIdle,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     tlsConfig,
	}
}

// Fetch retrieves url. The returned body is the origin's response body, or a
// sentinel when the fetch could not be completed within the timeout.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.log.Debug().Err(err).Str("url", url).Msg("invalid origin request")
		return Result{Body: FetchFailedBody, Status: FetchFailed}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{Body: TimedOutBody, Status: TimedOut}
		}
		f.log.Debug().Err(err).Str("url", url).Msg("origin fetch failed")
		return Result{Body: FetchFailedBody, Status: FetchFailed}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return Result{Body: TimedOutBody, Status: TimedOut}
		}
		f.log.Debug().Err(err).Str("url", url).Msg("origin body read failed")
		return Result{Body: ReadFailedBody, Status: ReadFailed}
	}
	if !utf8.Valid(b) {
		f.log.Debug().Str("url", url).Int("bytes", len(b)).Msg("origin body is not text")
		return Result{Body: ReadFailedBody, Status: ReadFailed}
	}

	return Result{Body: string(b), Status: OK}
}

// CloseIdleConnections drops pooled origin connections.
func (f *Fetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
