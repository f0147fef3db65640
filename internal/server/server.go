// Package server exposes presentations, presenter controls and voting over
// HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dyluth/roost/internal/auth"
	"github.com/dyluth/roost/internal/gateway"
	"github.com/dyluth/roost/pkg/board"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Config holds the HTTP-facing settings.
type Config struct {
	Addr           string
	PublicURL      string // Base of the join links handed out by /share
	AllowedOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces the clock used by presenter timers and voters.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithGatewayConfig overrides the WebSocket settings.
func WithGatewayConfig(cfg gateway.Config) Option {
	return func(s *Server) { s.gatewayConfig = cfg }
}

// Server is the roostd HTTP server.
type Server struct {
	store         *board.Client
	auth          *auth.Authenticator
	cfg           Config
	clock         clockwork.Clock
	gatewayConfig gateway.Config

	ctx        context.Context
	cancel     context.CancelFunc
	gateway    *gateway.Manager
	presenters *registry
	http       *http.Server
}

// New wires a server around a board client and token verifier.
func New(store *board.Client, authn *auth.Authenticator, cfg Config, opts ...Option) *Server {
	s := &Server{
		store:         store,
		auth:          authn,
		cfg:           cfg,
		clock:         clockwork.NewRealClock(),
		gatewayConfig: gateway.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.gateway = gateway.NewManager(store, s.gatewayConfig)
	s.presenters = newRegistry(s.ctx, store, s.clock)
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler returns the complete middleware chain and routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	owner := func(h http.HandlerFunc) http.Handler { return s.auth.Middleware(h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.Handle("GET /api/presentations", owner(s.handleListPresentations))
	mux.Handle("POST /api/presentations", owner(s.handleCreatePresentation))
	mux.Handle("GET /api/presentations/{id}", owner(s.handleGetPresentation))
	mux.Handle("PUT /api/presentations/{id}", owner(s.handleUpdatePresentation))
	mux.Handle("DELETE /api/presentations/{id}", owner(s.handleDeletePresentation))
	mux.Handle("GET /api/presentations/{id}/session", owner(s.handleGetSession))
	mux.Handle("POST /api/presentations/{id}/session/{action}", owner(s.handleSessionAction))
	mux.Handle("GET /api/presentations/{id}/results", owner(s.handleResults))
	mux.Handle("GET /api/presentations/{id}/leaderboard", owner(s.handleLeaderboard))
	mux.Handle("DELETE /api/presentations/{id}/votes", owner(s.handleResetVotes))
	mux.Handle("GET /api/presentations/{id}/share", owner(s.handleShare))
	mux.Handle("GET /ws/presentations/{id}", owner(s.handlePresenterSocket))

	mux.HandleFunc("GET /api/join/{code}", s.handleJoinSummary)
	mux.HandleFunc("GET /api/join/{code}/session", s.handleJoinSession)
	mux.HandleFunc("POST /api/join/{code}/votes", s.handleJoinVote)
	mux.HandleFunc("GET /ws/join/{code}", s.handleVoterSocket)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         86400,
	})

	var h http.Handler = mux
	h = corsHandler.Handler(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		if r.URL.Path == "/healthz" {
			return
		}
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(log.Logger)(h)
	return h
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server starting")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes sockets and stops every
// presenter timer. Stored sessions are kept so a restart can restore them.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.gateway.Close()
	s.presenters.closeAll()
	s.cancel()
	return err
}

// joinURL builds the voter link for a join code.
func (s *Server) joinURL(code string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/join/" + code
}

// logger returns the request-scoped logger.
func logger(r *http.Request) *zerolog.Logger {
	return hlog.FromRequest(r)
}
