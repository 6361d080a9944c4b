// Package web serves the account and session HTTP API: signup, login,
// logout, the session probes the browser polls, and the metrics endpoint.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/voicedrop/internal/logging"
	"github.com/dmitrijs2005/voicedrop/internal/netx"
	"github.com/dmitrijs2005/voicedrop/internal/server/models"
	"github.com/dmitrijs2005/voicedrop/internal/server/sessions"
)

// userService is the account logic the handlers depend on.
type userService interface {
	Signup(ctx context.Context, email, password, retypePassword string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
}

type Server struct {
	address  string
	users    userService
	sessions *sessions.Manager
	logger   logging.Logger
	metrics  *httpMetrics
	gatherer prometheus.Gatherer
}

// NewServer builds the HTTP API server. reg receives the HTTP metrics and is
// exposed on /metrics when it is also a Gatherer; nil disables both.
func NewServer(addr string, l logging.Logger, us userService, sm *sessions.Manager, reg prometheus.Registerer) *Server {
	s := &Server{
		address:  addr,
		users:    us,
		sessions: sm,
		logger:   l.With("module", "web_server"),
		metrics:  newHTTPMetrics(reg),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		s.gatherer = g
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.metrics.middleware)

	r.Get("/ping", s.ping)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Get("/check-session", s.checkSession)
		r.Get("/get-session", s.getSession)
		r.Get("/validate-email", s.validateEmail)
		r.Post("/validate-userInfo", s.signup)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	return netx.Serve(ctx, srv)
}
