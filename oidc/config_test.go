// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSecret_String(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert := assert.New(t)
		secret := ClientSecret("bob's phone number")
		assert.Equal(RedactedClientSecret, secret.String())
		assert.Equal(RedactedClientSecret, fmt.Sprintf("%s", secret))
	})
}

func TestClientSecret_MarshalJSON(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		want := fmt.Sprintf(`"%s"`, RedactedClientSecret)
		secret := ClientSecret("bob's phone number")
		got, err := secret.MarshalJSON()
		require.NoError(err)
		assert.Equal([]byte(want), got)
	})
	t.Run("config", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("https://tenant.example.com/", "abc123", "super-secret", []Alg{RS256}, []string{"https://app.example/callback"})
		require.NoError(err)
		got, err := json.Marshal(c)
		require.NoError(err)
		assert.NotContains(string(got), "super-secret")
		assert.Contains(string(got), RedactedClientSecret)
	})
}

func TestNewConfig(t *testing.T) {
	t.Parallel()
	testCaPem := TestGenerateCA(t, []string{"localhost"})
	testNow := func() time.Time {
		return time.Now().Add(-1 * time.Minute)
	}

	type args struct {
		issuer       string
		clientID     string
		clientSecret ClientSecret
		supported    []Alg
		redirects    []string
		opt          []Option
	}
	tests := []struct {
		name      string
		args      args
		want      *Config
		wantIsErr error
	}{
		{
			name: "valid-with-all-valid-opts",
			args: args{
				issuer:       "https://YOUR_ISSUER/",
				clientID:     "YOUR_CLIENT_ID",
				clientSecret: "YOUR_CLIENT_SECRET",
				supported:    []Alg{RS512},
				redirects:    []string{"http://YOUR_REDIRECT_URL"},
				opt: []Option{
					WithAudiences("YOUR_AUD1", "YOUR_AUD2"),
					WithScopes("email", "profile"),
					WithProviderCA(testCaPem),
					WithLogoutURL("https://YOUR_ISSUER/logout"),
					WithNow(testNow),
				},
			},
			want: &Config{
				Issuer:               "https://YOUR_ISSUER/",
				ClientID:             "YOUR_CLIENT_ID",
				ClientSecret:         "YOUR_CLIENT_SECRET",
				SupportedSigningAlgs: []Alg{RS512},
				AllowedRedirectURLs:  []string{"http://YOUR_REDIRECT_URL"},
				Audiences:            []string{"YOUR_AUD1", "YOUR_AUD2"},
				Scopes:               []string{"email", "profile"},
				ProviderCA:           testCaPem,
				LogoutURL:            "https://YOUR_ISSUER/logout",
				NowFunc:              testNow,
			},
		},
		{
			name: "default-logout-url",
			args: args{
				issuer:       "https://tenant.auth0.com/",
				clientID:     "abc123",
				clientSecret: "secret",
				supported:    []Alg{RS256},
				redirects:    []string{"http://localhost:3000/callback"},
			},
			want: &Config{
				Issuer:               "https://tenant.auth0.com/",
				ClientID:             "abc123",
				ClientSecret:         "secret",
				SupportedSigningAlgs: []Alg{RS256},
				AllowedRedirectURLs:  []string{"http://localhost:3000/callback"},
				LogoutURL:            "https://tenant.auth0.com/v2/logout",
			},
		},
		{
			name: "empty-client-id",
			args: args{
				issuer:       "https://tenant.auth0.com/",
				clientSecret: "secret",
				supported:    []Alg{RS256},
				redirects:    []string{"http://localhost:3000/callback"},
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-client-secret",
			args: args{
				issuer:    "https://tenant.auth0.com/",
				clientID:  "abc123",
				supported: []Alg{RS256},
				redirects: []string{"http://localhost:3000/callback"},
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-issuer",
			args: args{
				clientID:     "abc123",
				clientSecret: "secret",
				supported:    []Alg{RS256},
				redirects:    []string{"http://localhost:3000/callback"},
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "non-http-issuer",
			args: args{
				issuer:       "ftp://tenant.auth0.com/",
				clientID:     "abc123",
				clientSecret: "secret",
				supported:    []Alg{RS256},
				redirects:    []string{"http://localhost:3000/callback"},
			},
			wantIsErr: ErrInvalidIssuer,
		},
		{
			name: "issuer-with-query",
			args: args{
				issuer:       "https://tenant.auth0.com/?tenant=1",
				clientID:     "abc123",
				clientSecret: "secret",
				supported:    []Alg{RS256},
				redirects:    []string{"http://localhost:3000/callback"},
			},
			wantIsErr: ErrInvalidIssuer,
		},
		{
			name: "no-algs",
			args: args{
				issuer:       "https://tenant.auth0.com/",
				clientID:     "abc123",
				clientSecret: "secret",
				redirects:    []string{"http://localhost:3000/callback"},
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "unsupported-alg",
			args: args{
				issuer:       "https://tenant.auth0.com/",
				clientID:     "abc123",
				clientSecret: "secret",
				supported:    []Alg{"HS256"},
				redirects:    []string{"http://localhost:3000/callback"},
			},
			wantIsErr: ErrUnsupportedAlg,
		},
		{
			name: "no-redirects",
			args: args{
				issuer:       "https://tenant.auth0.com/",
				clientID:     "abc123",
				clientSecret: "secret",
				supported:    []Alg{RS256},
			},
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "bad-ca",
			args: args{
				issuer:       "https://tenant.auth0.com/",
				clientID:     "abc123",
				clientSecret: "secret",
				supported:    []Alg{RS256},
				redirects:    []string{"http://localhost:3000/callback"},
				opt:          []Option{WithProviderCA("not a pem")},
			},
			wantIsErr: ErrInvalidCACert,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.args.issuer, tt.args.clientID, tt.args.clientSecret, tt.args.supported, tt.args.redirects, tt.args.opt...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(got)
				return
			}
			require.NoError(err)
			if tt.want.NowFunc != nil {
				assert.NotNil(got.NowFunc)
				assert.Equal(tt.want.NowFunc().Round(time.Second), got.Now().Round(time.Second))
				tt.want.NowFunc, got.NowFunc = nil, nil
			}
			assert.Equal(tt.want, got)
		})
	}
}

func TestConfig_DiscoveryURL(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	for _, issuer := range []string{"https://tenant.auth0.com/", "https://tenant.auth0.com"} {
		c := &Config{Issuer: issuer}
		assert.Equal("https://tenant.auth0.com/.well-known/openid-configuration", c.DiscoveryURL())
	}
}

func TestConfig_Validate_nil(t *testing.T) {
	t.Parallel()
	var c *Config
	assert.ErrorIs(t, c.Validate(), ErrNilParameter)
}
