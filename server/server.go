// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package server serves the login flow: the public home page, the login,
// callback and logout routes, and pages protected by RequireAuth.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
)

// Authenticator is the provider side of the login flow. It's satisfied by
// *oidc.Provider.
type Authenticator interface {
	AuthURL(ctx context.Context, oidcRequest oidc.Request) (string, error)
	Exchange(ctx context.Context, oidcRequest oidc.Request, state string, code string) (*oidc.Tk, error)
	UserInfo(ctx context.Context, tokenSource oauth2.TokenSource, validSubject string, claims interface{}) error
	LogoutURL(returnTo string) string
}

// Config is the server's configuration.
type Config struct {
	// CallbackURL is the externally reachable /callback address, which the
	// provider redirects to.
	CallbackURL string

	// HomeURL is the externally reachable home page, where the provider
	// returns the browser after logout.
	HomeURL string

	// LoginTimeout is how long a login attempt may take.
	LoginTimeout time.Duration

	// FetchUserInfo merges the provider's userinfo claims into the session's
	// user info after each login.
	FetchUserInfo bool

	// SecureCookies restricts the server's cookies to https.
	SecureCookies bool

	// MetricsEnabled serves the prometheus metrics at /metrics.
	MetricsEnabled bool

	// MaxPendingLogins bounds the login attempts waiting for their callback.
	// It defaults to DefaultMaxPendingLogins.
	MaxPendingLogins int

	// SecretKey protects the login-binding cookie.
	SecretKey string
}

// Server is the http surface of the application.
type Server struct {
	cfg         Config
	auth        Authenticator
	sessions    *session.Manager
	requests    *requestCache
	loginCookie *loginCookie
	views       *views
	metrics     *metrics
	registry    *prometheus.Registry
	logger      hclog.Logger
	now         func() time.Time
}

// New creates a server which authenticates browsers with auth and keeps
// their user info in sessions.
//
// Supported options: WithLogger, WithRegistry, WithNow
func New(cfg Config, auth Authenticator, sessions *session.Manager, opt ...Option) (*Server, error) {
	const op = "server.New"
	switch {
	case auth == nil:
		return nil, fmt.Errorf("%s: authenticator is nil: %w", op, ErrNilParameter)
	case sessions == nil:
		return nil, fmt.Errorf("%s: session manager is nil: %w", op, ErrNilParameter)
	case cfg.CallbackURL == "":
		return nil, fmt.Errorf("%s: callback URL is empty: %w", op, ErrInvalidParameter)
	case cfg.HomeURL == "":
		return nil, fmt.Errorf("%s: home URL is empty: %w", op, ErrInvalidParameter)
	case cfg.LoginTimeout <= 0:
		return nil, fmt.Errorf("%s: login timeout must be positive: %w", op, ErrInvalidParameter)
	case cfg.MaxPendingLogins < 0:
		return nil, fmt.Errorf("%s: max pending logins must not be negative: %w", op, ErrInvalidParameter)
	case cfg.SecretKey == "":
		return nil, fmt.Errorf("%s: secret key is empty: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)

	registry := opts.withRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m, err := newMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	lc, err := newLoginCookie(cfg.SecretKey, cfg.LoginTimeout, cfg.SecureCookies)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v, err := newViews()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Server{
		cfg:         cfg,
		auth:        auth,
		sessions:    sessions,
		requests:    newRequestCache(cfg.MaxPendingLogins),
		loginCookie: lc,
		views:       v,
		metrics:     m,
		registry:    registry,
		logger:      opts.withLogger,
		now:         opts.withNowFunc,
	}, nil
}

// Routes returns the server's handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/login", s.handleLogin)
	r.Get("/callback", s.handleCallback)
	r.Post("/callback", s.handleCallback)
	r.Get("/logout", s.handleLogout)
	r.With(s.RequireAuth).Get("/protected", s.handleProtected)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.renderError(w, http.StatusNotFound, "The page you requested does not exist.")
	})
	return r
}

// timestamp is the time of an event as it's logged.
func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
