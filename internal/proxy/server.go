package proxy

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/die-net/warden/internal/auth"
	"github.com/die-net/warden/internal/cache"
	"github.com/die-net/warden/internal/policy"
	"github.com/die-net/warden/internal/request"
)

// Server accepts client connections and serves one request on each.
type Server struct {
	ctx      context.Context
	fetchCtx context.Context
	cfg      Config
	log      zerolog.Logger
	auth     *auth.Authenticator
	filter   *policy.Filter
	store    *cache.Store
	resolver resolver
	metrics  *metrics
	bufs     *bufferPool

	wg sync.WaitGroup
}

// NewServer constructs a Server for cfg. Once ctx is done, Serve stops
// retrying failed accepts. Origin fetches keep ctx's values but not its
// cancellation, so fetches in flight at shutdown finish within their
// timeout and their handlers still answer.
func NewServer(ctx context.Context, cfg Config) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	m := newMetrics(cfg.Registerer)

	opts := []cache.Option{
		cache.WithOnEvicted(func(string) { m.evictions.Inc() }),
	}
	if cfg.Clock != nil {
		opts = append(opts, cache.WithClock(cfg.Clock))
	}
	store := cache.New(cfg.CacheSize, opts...)
	registerStoreGauge(cfg.Registerer, store)

	return &Server{
		ctx:      ctx,
		fetchCtx: context.WithoutCancel(ctx),
		cfg:      cfg,
		log:      logger,
		auth:     auth.New(cfg.Credentials),
		filter:   policy.New(cfg.ForbiddenWords),
		store:    store,
		resolver: newResolver(cfg.CacheLock, cacheFetcher{
			store:   store,
			fetcher: cfg.Fetcher,
			ttl:     cfg.CacheTTL,
			metrics: m,
		}),
		metrics: m,
		bufs:    newBufferPool(request.MaxSize),
	}
}

// Store returns the server's cache.
func (s *Server) Store() *cache.Store {
	return s.store
}

// Serve accepts connections on ln until it is closed, handling each on its
// own goroutine. It returns nil once ln is closed and every handler has
// finished.
func (s *Server) Serve(ln net.Listener) error {
	defer s.wg.Wait()

	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			s.metrics.acceptErrors.Inc()
			backoff = nextBackoff(backoff)
			s.log.Warn().Err(err).Dur("retry", backoff).Msg("accept failed")

			t := time.NewTimer(backoff)
			select {
			case <-t.C:
			case <-s.ctx.Done():
				t.Stop()
				return nil
			}
			continue
		}
		backoff = 0

		s.metrics.accepted.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(c)
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	const maxBackoff = time.Second
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
