// Package adminapi exposes the operator-facing HTTP surface: CRUD over
// package references, a Prometheus text endpoint, and a health check. It
// is the minimal slice of out-of-process administration the core needs in
// order for internal/packages to be populate-able without hand-editing
// packages.json.
package adminapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/auth"
	"github.com/apollo3zehn/nexus-remote-agent/internal/extension"
	"github.com/apollo3zehn/nexus-remote-agent/internal/packages"
)

// MetricsExposer renders the current metric set as Prometheus text
// exposition format.
type MetricsExposer interface {
	Expose() string
}

// Server serves the admin HTTP API over a net.Listener it owns.
type Server struct {
	addr           string
	store          *packages.Store
	registry       *extension.Registry
	metrics        MetricsExposer
	authConfig     *auth.Config
	authMiddleware *auth.Middleware

	mu       sync.Mutex
	running  bool
	listener net.Listener
	server   *http.Server
}

// NewServer constructs a Server backed by store and registry. Auth
// defaults to AuthModeNone; call SetAuthConfig before Start to require an
// API key.
func NewServer(addr string, store *packages.Store, registry *extension.Registry) *Server {
	return &Server{
		addr:       addr,
		store:      store,
		registry:   registry,
		authConfig: auth.DefaultConfig(),
	}
}

// SetAuthConfig replaces the authentication configuration. Must be called
// before Start for the change to take effect.
func (s *Server) SetAuthConfig(config *auth.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authConfig = config
	s.authMiddleware = nil
}

// SetMetricsExposer wires the /metrics handler to a live metrics source.
func (s *Server) SetMetricsExposer(m MetricsExposer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

func (s *Server) initAuthMiddlewareLocked() {
	if s.authMiddleware != nil {
		return
	}
	if s.authConfig == nil {
		s.authConfig = auth.DefaultConfig()
	}

	var authenticator auth.Authenticator
	switch s.authConfig.Mode {
	case auth.AuthModeAPIKey:
		authenticator = auth.NewAPIKeyAuthenticator(s.authConfig)
	case auth.AuthModeJWT:
		authenticator = auth.NewJWTAuthenticator(s.authConfig)
	}
	s.authMiddleware = auth.NewMiddleware(s.authConfig, authenticator)
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("admin server already running")
	}

	s.initAuthMiddlewareLocked()

	if s.authConfig.Mode == auth.AuthModeNone && !isLoopbackBindAddr(s.addr) {
		return fmt.Errorf("refusing to bind admin API to non-loopback address without authentication")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/packagereferences", s.authMiddleware.Handler(http.HandlerFunc(s.handlePackageReferences)).ServeHTTP)
	mux.HandleFunc("/api/v1/packagereferences/", s.authMiddleware.Handler(http.HandlerFunc(s.handlePackageReference)).ServeHTTP)
	mux.HandleFunc("/api/v1/diagnostics", s.authMiddleware.Handler(http.HandlerFunc(s.handleDiagnostics)).ServeHTTP)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	srv := s.server
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("admin server error: %v\n", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.server
	s.server = nil
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound address, resolved after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func isLoopbackBindAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func pathSuffix(r *http.Request, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/")
}
