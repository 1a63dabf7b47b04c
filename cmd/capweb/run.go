// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/hashicorp/capweb/config"
	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/server"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// run serves until ctx is done, then shuts the server down gracefully.
func run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	const op = "main.run"
	p, err := newProvider(cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer p.Done()
	logger.Info("discovered provider", "issuer", cfg.Issuer(), "discovery", cfg.DiscoveryURL())

	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStore()
	sessionOpts := sessionOptions(cfg)
	sessionManager, err := session.NewManager(store, sessionOpts...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	srv, err := server.New(server.Config{
		CallbackURL:      cfg.CallbackURL(),
		HomeURL:          cfg.HomeURL(),
		LoginTimeout:     cfg.LoginTimeout,
		MaxPendingLogins: cfg.MaxPendingLogins,
		FetchUserInfo:    cfg.FetchUserInfo,
		SecureCookies:    cfg.SecureCookies(),
		MetricsEnabled:   cfg.MetricsEnabled,
		SecretKey:        cfg.SecretKey,
	}, p, sessionManager, server.WithLogger(logger.Named("server")))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	httpServer := newHTTPServer(ctx, cfg.Addr(), srv.Routes())
	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	srvCh := make(chan error, 1)
	go func() {
		srvCh <- httpServer.Serve(listener)
	}()
	logger.Info("listening", "addr", listener.Addr().String(), "base_url", cfg.BaseURL, "session_store", cfg.SessionStore)

	select {
	case err := <-srvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: unable to shut down: %w", op, err)
	}
	return nil
}

// newHTTPServer returns a server whose requests carry ctx's values but not
// its cancellation, so requests in flight at shutdown run to completion.
func newHTTPServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

func newProvider(cfg *config.Config) (*oidc.Provider, error) {
	const op = "main.newProvider"
	opts := []oidc.Option{
		oidc.WithScopes(cfg.Scopes...),
		oidc.WithLogoutURL(cfg.LogoutURL()),
	}
	if cfg.ProviderCA != "" {
		opts = append(opts, oidc.WithProviderCA(cfg.ProviderCA))
	}
	c, err := oidc.NewConfig(cfg.Issuer(), cfg.ClientID, oidc.ClientSecret(cfg.ClientSecret), cfg.Algs(), []string{cfg.CallbackURL()}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := oidc.NewProvider(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func sessionOptions(cfg *config.Config) []session.Option {
	return []session.Option{
		session.WithCookieName(cfg.SessionCookieName),
		session.WithMaxAge(cfg.SessionMaxAge),
		session.WithSecure(cfg.SecureCookies()),
		session.WithKeyPrefix(cfg.RedisKeyPrefix),
	}
}

// newSessionStore returns the configured session store and a func which
// releases it.
func newSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	const op = "main.newSessionStore"
	opts := sessionOptions(cfg)
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store, err := session.NewRedisStore(client, cfg.SecretKey, opts...)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := session.NewCookieStore(cfg.SecretKey, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		return store, func() {}, nil
	}
}
