package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playexport/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackServer serves an [OAuthHandler] on the host of the redirect URI.
type CallbackServer struct {
	addr    string
	handler *OAuthHandler
	router  *BasicRouter
	logger  *log.Logger

	listener net.Listener
	srv      *http.Server
}

// NewCallbackServer prepares a server for redirectURI, which must be an http URL with an
// explicit host. handler should serve the path of the URI.
func NewCallbackServer(redirectURI string, handler *OAuthHandler, logger *log.Logger) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: redirect uri %q", shared.ErrInvalidConfig, redirectURI)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("%w: redirect uri must use http, got %q", shared.ErrInvalidConfig, u.Scheme)
	}
	if logger == nil {
		logger = log.Default()
	}

	router := NewBasicRouter()
	router.Use(Recoverer(logger), RequestLogger(logger))
	router.Handler(handler)

	return &CallbackServer{addr: u.Host, handler: handler, router: router, logger: logger.WithPrefix("callback")}, nil
}

// Start binds the listen address and begins serving in the background.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server failed", "error", err)
		}
	}()
	s.logger.Debug("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Wait blocks until the callback delivers a token or ctx ends, then shuts the server down.
func (s *CallbackServer) Wait(ctx context.Context) (*oauth2.Token, error) {
	if s.srv == nil {
		if err := s.Start(); err != nil {
			return nil, err
		}
	}
	defer s.shutdown()

	select {
	case result := <-s.handler.Result():
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Token, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no callback received", shared.ErrTimeout)
		}
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("callback server shutdown failed", "error", err)
	}
}
