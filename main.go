package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/warden/internal/cache"
	"github.com/die-net/warden/internal/debug"
	"github.com/die-net/warden/internal/dialer"
	"github.com/die-net/warden/internal/origin"
	"github.com/die-net/warden/internal/policy"
	"github.com/die-net/warden/internal/proxy"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	listen      string
	credentials string
	configPath  string
	upstream    string

	cacheSize int
	cacheTTL  time.Duration
	cacheLock string

	fetchTimeout       time.Duration
	dialTimeout        time.Duration
	negotiationTimeout time.Duration
	readTimeout        time.Duration
	writeTimeout       time.Duration

	workers      int
	tcpKeepAlive string
	debugListen  string
	logLevel     string
	logFormat    string
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("warden", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVar(&o.listen, "listen", "0.0.0.0:8080", "Proxy listen address")
	fs.StringVar(&o.credentials, "credentials", "", "Expected proxy credentials as user:password. Defaults to $PROXY_CREDENTIALS.")
	fs.StringVar(&o.configPath, "config", "", "YAML config file. Keys are flag names; flags set on the command line win.")
	fs.StringVar(&o.upstream, "upstream", defaultUpstream(), "Upstream for origin fetches: direct:// | http://[user:pass@]host:port | https://[user:pass@]host:port | socks5://[user:pass@]host:port")

	fs.IntVar(&o.cacheSize, "cache-size", cache.DefaultMaxEntries, "Maximum number of cached URLs")
	fs.DurationVar(&o.cacheTTL, "cache-ttl", cache.DefaultTTL, "How long a cached body is served before refetching")
	fs.StringVar(&o.cacheLock, "cache-lock", proxy.Coalesce.String(), "Cache locking: coalesce (per-URL fetch sharing) | global (one lock across fetches)")

	fs.DurationVar(&o.fetchTimeout, "fetch-timeout", origin.DefaultTimeout, "Timeout for a whole origin fetch, headers and body")
	fs.DurationVar(&o.dialTimeout, "dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
	fs.DurationVar(&o.negotiationTimeout, "negotiation-timeout", 10*time.Second, "Timeout for upstream proxy negotiation")
	fs.DurationVar(&o.readTimeout, "read-timeout", 10*time.Second, "Timeout for reading a client request")
	fs.DurationVar(&o.writeTimeout, "write-timeout", 10*time.Second, "Timeout for writing a client response")

	fs.IntVar(&o.workers, "workers", 4, "Number of OS threads executing Go code (GOMAXPROCS)")
	fs.StringVar(&o.tcpKeepAlive, "tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
	fs.StringVar(&o.debugListen, "debug-listen", "", "Debug HTTP listen address exposing /metrics and /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")
	fs.StringVar(&o.logFormat, "log-format", "console", "Log format: console|json")

	return fs
}

func run(args []string) error {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if o.configPath != "" {
		if err := applyConfigFile(fs, o.configPath); err != nil {
			return err
		}
	}
	if o.credentials == "" {
		o.credentials = os.Getenv("PROXY_CREDENTIALS")
	}

	logger, err := newLogger(os.Stderr, o.logLevel, o.logFormat)
	if err != nil {
		return err
	}
	log.Logger = logger

	ka, err := parseTCPKeepAlive(o.tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}
	lockMode, err := proxy.ParseLockMode(o.cacheLock)
	if err != nil {
		return fmt.Errorf("invalid --cache-lock: %w", err)
	}
	if o.workers <= 0 {
		return errors.New("invalid --workers: must be > 0")
	}
	runtime.GOMAXPROCS(o.workers)

	if o.credentials == "" {
		log.Warn().Msg("no credentials configured (--credentials or PROXY_CREDENTIALS); every request will be rejected")
	}

	d, err := dialer.New(dialer.Config{
		DialTimeout:        o.dialTimeout,
		NegotiationTimeout: o.negotiationTimeout,
		KeepAlive:          ka,
	}, o.upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	fetcher := origin.New(origin.Config{
		Dialer:  d,
		Timeout: o.fetchTimeout,
		Logger:  &log.Logger,
	})
	defer fetcher.CloseIdleConnections()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.debugListen != "" {
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", o.debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		h := debug.NewHandler(reg)
		g.Go(func() error {
			if err := debug.Serve(ctx, debugLn, h, log.Logger); err != nil {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
	}

	ln, err := proxy.Listen(ctx, o.listen, ka)
	if err != nil {
		return fmt.Errorf("proxy listen: %w", err)
	}

	srv := proxy.NewServer(ctx, proxy.Config{
		Credentials:    o.credentials,
		ForbiddenWords: policy.DefaultWords,
		CacheSize:      o.cacheSize,
		CacheTTL:       o.cacheTTL,
		CacheLock:      lockMode,
		Fetcher:        fetcher,
		ReadTimeout:    o.readTimeout,
		WriteTimeout:   o.writeTimeout,
		Logger:         &log.Logger,
		Registerer:     reg,
	})
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("proxy serve: %w", err)
		}
		return nil
	})
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("upstream", redactUpstream(o.upstream)).
		Str("cache_lock", lockMode.String()).
		Int("cache_size", o.cacheSize).
		Dur("cache_ttl", o.cacheTTL).
		Int("workers", o.workers).
		Msg("proxy listening")

	err = g.Wait()
	log.Info().Msg("shutting down")
	return err
}

func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid --log-level: %w", err)
	}

	switch format {
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid --log-format %q (want console or json)", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "":
		return net.KeepAliveConfig{}, errors.New("empty")
	case "on":
		return net.KeepAliveConfig{Enable: true}, nil
	case "off":
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveInt(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveInt(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     time.Duration(keepIdle) * time.Second,
		Interval: time.Duration(keepIntvl) * time.Second,
		Count:    keepCnt,
	}, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "direct://"
}

// redactUpstream hides any password in an upstream URL for logging.
func redactUpstream(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return "(invalid)"
	}
	return u.Redacted()
}
