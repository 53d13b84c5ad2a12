package proxy

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/warden/internal/policy"
	"github.com/die-net/warden/internal/request"
)

// handleConn serves the single request on c and closes it.
func (s *Server) handleConn(c net.Conn) {
	defer c.Close()

	logger := s.log.With().Str("remote", c.RemoteAddr().String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("connection handler panicked")
			s.metrics.request(resultDropped)
		}
	}()

	req, ok := s.readRequest(c, logger)
	if !ok {
		return
	}

	logger = logger.With().Str("url", req.URL).Logger()
	for _, h := range req.Header {
		logger.Trace().Str("header", h).Msg("received header")
	}

	if !s.auth.Authenticate(req.Header) {
		logger.Info().Msg("rejected: authentication required")
		s.reject(c, logger, http.StatusUnauthorized, UnauthorizedBody, resultUnauthorized)
		return
	}

	switch s.filter.Check(req.URL) {
	case policy.Forbidden:
		word, _ := s.filter.Match(req.URL)
		logger.Info().Str("word", word).Msg("rejected: blocked url")
		s.reject(c, logger, http.StatusForbidden, ForbiddenBody, resultForbidden)
		return
	case policy.InsecureScheme:
		logger.Info().Msg("rejected: insecure scheme")
		s.reject(c, logger, http.StatusBadRequest, InsecureSchemeBody, resultBadRequest)
		return
	}

	res := s.resolver.resolve(s.fetchCtx, req.URL)
	s.metrics.lookup(res.outcome)

	s.setWriteDeadline(c)
	if err := writeOK(c, res.body); err != nil {
		logger.Debug().Err(err).Msg("write response failed")
		s.metrics.request(resultWriteError)
		return
	}
	s.metrics.request(resultOK)

	source := "cache"
	if res.fetched {
		source = "origin"
	}
	logger.Info().
		Str("cache", res.outcome.String()).
		Str("source", source).
		Bool("shared", res.shared).
		Int("bytes", len(res.body)).
		Msg("response sent")
}

// readRequest performs the single bounded read of a request. It reports
// false when the connection should be closed without a response.
func (s *Server) readRequest(c net.Conn, logger zerolog.Logger) (*request.Request, bool) {
	if s.cfg.ReadTimeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}

	buf := s.bufs.Get()
	defer s.bufs.Put(buf)

	n, err := c.Read(*buf)
	if n == 0 && err != nil {
		if errors.Is(err, io.EOF) {
			s.metrics.request(resultEmpty)
			return nil, false
		}
		logger.Debug().Err(err).Msg("read request failed")
		s.metrics.request(resultReadError)
		return nil, false
	}

	req, err := request.Parse((*buf)[:n])
	switch {
	case err == nil:
		return req, true
	case errors.Is(err, request.ErrEmpty):
		s.metrics.request(resultEmpty)
	default:
		logger.Debug().Err(err).Int("bytes", n).Msg("dropping unparseable request")
		s.metrics.request(resultDropped)
	}
	return nil, false
}

func (s *Server) reject(c net.Conn, logger zerolog.Logger, code int, body, result string) {
	s.setWriteDeadline(c)
	if err := writeReject(c, code, body); err != nil {
		logger.Debug().Err(err).Int("status", code).Msg("write rejection failed")
		s.metrics.request(resultWriteError)
		return
	}
	s.metrics.request(result)
}

func (s *Server) setWriteDeadline(c net.Conn) {
	if s.cfg.WriteTimeout > 0 {
		_ = c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
}
