// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type testAuthenticator struct{}

func (testAuthenticator) AuthURL(context.Context, oidc.Request) (string, error) { return "", nil }
func (testAuthenticator) Exchange(context.Context, oidc.Request, string, string) (*oidc.Tk, error) {
	return nil, nil
}

func (testAuthenticator) UserInfo(context.Context, oauth2.TokenSource, string, interface{}) error {
	return nil
}
func (testAuthenticator) LogoutURL(string) string { return "" }

func TestNew(t *testing.T) {
	t.Parallel()
	sessions := testCookieSessions(t)
	valid := Config{
		CallbackURL:  testCallback,
		HomeURL:      testHome,
		LoginTimeout: time.Minute,
		SecretKey:    testSecret,
	}
	tests := []struct {
		name     string
		cfg      func(c Config) Config
		auth     Authenticator
		sessions *session.Manager
		wantErr  error
	}{
		{name: "valid", auth: testAuthenticator{}, sessions: sessions},
		{name: "nil-auth", sessions: sessions, wantErr: ErrNilParameter},
		{name: "nil-sessions", auth: testAuthenticator{}, wantErr: ErrNilParameter},
		{
			name:     "missing-callback",
			cfg:      func(c Config) Config { c.CallbackURL = ""; return c },
			auth:     testAuthenticator{},
			sessions: sessions,
			wantErr:  ErrInvalidParameter,
		},
		{
			name:     "missing-home",
			cfg:      func(c Config) Config { c.HomeURL = ""; return c },
			auth:     testAuthenticator{},
			sessions: sessions,
			wantErr:  ErrInvalidParameter,
		},
		{
			name:     "zero-timeout",
			cfg:      func(c Config) Config { c.LoginTimeout = 0; return c },
			auth:     testAuthenticator{},
			sessions: sessions,
			wantErr:  ErrInvalidParameter,
		},
		{
			name:     "negative-pending-logins",
			cfg:      func(c Config) Config { c.MaxPendingLogins = -1; return c },
			auth:     testAuthenticator{},
			sessions: sessions,
			wantErr:  ErrInvalidParameter,
		},
		{
			name:     "missing-secret",
			cfg:      func(c Config) Config { c.SecretKey = ""; return c },
			auth:     testAuthenticator{},
			sessions: sessions,
			wantErr:  ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			cfg := valid
			if tt.cfg != nil {
				cfg = tt.cfg(cfg)
			}
			s, err := New(cfg, tt.auth, tt.sessions)
			if tt.wantErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantErr)
				assert.Nil(s)
				return
			}
			require.NoError(err)
			assert.NotNil(s.Routes())
		})
	}

	t.Run("shared-registry", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		reg := prometheus.NewRegistry()
		_, err := New(valid, testAuthenticator{}, sessions, WithRegistry(reg))
		require.NoError(err)
		// the counters are already registered
		_, err = New(valid, testAuthenticator{}, sessions, WithRegistry(reg))
		assert.Error(err)
	})
}

func TestServer_home(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ts := testNewServer(t, testServerConfig{})
	b := newTestBrowser(t, ts.handler)

	rec := b.get(t, "/")
	require.Equal(http.StatusOK, rec.Code)
	assert.Equal("text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Empty(rec.Result().Cookies())
	assert.Equal("Welcome", text(t, rec.Body, "title"))
}

func TestServer_notFound(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	ts := testNewServer(t, testServerConfig{})
	b := newTestBrowser(t, ts.handler)

	rec := b.get(t, "/nope")
	assert.Equal(http.StatusNotFound, rec.Code)
	assert.Equal("404 Not Found", text(t, rec.Body, "title"))
}

func TestServer_metrics(t *testing.T) {
	t.Parallel()
	t.Run("enabled", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ts := testNewServer(t, testServerConfig{})
		b := newTestBrowser(t, ts.handler)
		require.Equal(http.StatusFound, b.login(t, ts.tp).Code)

		rec := b.get(t, "/metrics")
		require.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "capweb_logins_total 1")
	})
	t.Run("disabled", func(t *testing.T) {
		ts := testNewServer(t, testServerConfig{
			cfg: func(c *Config) { c.MetricsEnabled = false },
		})
		b := newTestBrowser(t, ts.handler)
		assert.Equal(t, http.StatusNotFound, b.get(t, "/metrics").Code)
	})
}
