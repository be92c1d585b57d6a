// Package server exposes the contacts service over HTTP for the mobile
// app, plus a gRPC health endpoint for orchestrators.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/contactbook/contactbook-api/auth"
	"github.com/contactbook/contactbook-api/config"
	"github.com/contactbook/contactbook-api/contacts"
	synchub "github.com/contactbook/contactbook-api/sync"
)

const version = "1.0.0"

// Server wires middleware, routes, and the optional sync hub.
type Server struct {
	cfg      config.ServerConfig
	verifier auth.Verifier
	svc      *contacts.Service
	hub      *synchub.Hub
	logger   *zap.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithHub enables the websocket sync endpoint.
func WithHub(h *synchub.Hub) ServerOption {
	return func(s *Server) {
		s.hub = h
	}
}

// WithServerLogger sets the logger. Defaults to a nop logger.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates the server.
func New(cfg config.ServerConfig, verifier auth.Verifier, svc *contacts.Service, opts ...ServerOption) *Server {
	s := &Server{
		cfg:      cfg,
		verifier: verifier,
		svc:      svc,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the full middleware/route stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	authed := bearerAuth(s.verifier, s.logger)
	mux.Handle("GET /api/contacts/google", authed(http.HandlerFunc(s.handleFetchContacts)))
	mux.Handle("GET /api/contacts/cached", authed(http.HandlerFunc(s.handleCachedContacts)))
	mux.Handle("DELETE /api/contacts/cache", authed(http.HandlerFunc(s.handleClearCache)))
	mux.Handle("POST /api/auth/google/link", authed(http.HandlerFunc(s.handleGoogleLink)))
	mux.Handle("POST /api/auth/google/callback", authed(http.HandlerFunc(s.handleGoogleCallback)))
	mux.Handle("GET /api/contacts/sync", authed(http.HandlerFunc(s.handleSync)))

	return chain(mux, requestID, accessLog(s.logger), cors(s.cfg.CORSOrigins))
}

// Run serves HTTP (and the gRPC health endpoint when configured) until
// ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var admin *adminServer
	if s.cfg.AdminAddr != "" {
		admin, err = newAdminServer(s.cfg.AdminAddr, s.logger)
		if err != nil {
			ln.Close()
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if admin != nil {
			admin.setServing(true)
		}
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if s.hub != nil {
		g.Go(func() error {
			s.hub.Run(ctx)
			return nil
		})
	}

	if admin != nil {
		g.Go(func() error {
			return admin.run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		if admin != nil {
			admin.setServing(false)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
