// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestProvider_Discovery(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)

	resp, err := tp.HTTPClient().Get(tp.Addr() + "/.well-known/openid-configuration")
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	var doc map[string]interface{}
	require.NoError(json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(tp.Addr(), doc["issuer"])
	assert.Equal(tp.Addr()+"/authorize", doc["authorization_endpoint"])
	assert.Equal(tp.Addr()+"/token", doc["token_endpoint"])
	assert.Equal(tp.Addr()+"/.well-known/jwks.json", doc["jwks_uri"])
	assert.Equal(tp.Addr()+DefaultLogoutPath, doc["end_session_endpoint"])
}

func TestTestProvider_Authorize(t *testing.T) {
	t.Parallel()
	tp := StartTestProvider(t)
	tp.SetAllowedRedirectURIs("https://app.example/callback")

	authURL := func(q url.Values) string {
		return tp.Addr() + "/authorize?" + q.Encode()
	}
	valid := func() url.Values {
		return url.Values{
			"response_type": {"code"},
			"client_id":     {TestDefaultClientID},
			"redirect_uri":  {"https://app.example/callback"},
			"scope":         {"openid email"},
			"state":         {"st_123"},
			"nonce":         {"n_123"},
		}
	}

	t.Run("code", func(t *testing.T) {
		assert := assert.New(t)
		loc := tp.Authorize(t, authURL(valid()))
		assert.Equal("app.example", loc.Host)
		assert.Equal("st_123", loc.Query().Get("state"))
		assert.NotEmpty(loc.Query().Get("code"))
	})
	t.Run("provider-error", func(t *testing.T) {
		assert := assert.New(t)
		q := valid()
		q.Set("client_id", "unknown")
		loc := tp.Authorize(t, authURL(q))
		assert.Equal("unauthorized_client", loc.Query().Get("error"))
		assert.Equal("st_123", loc.Query().Get("state"))
		assert.Empty(loc.Query().Get("code"))
	})
	t.Run("unknown-redirect", func(t *testing.T) {
		q := valid()
		q.Set("redirect_uri", "https://evil.example/callback")
		resp, err := tp.HTTPClient().Get(authURL(q))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTestProvider_Logout(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)

	resp, err := tp.HTTPClient().Get(tp.Addr() + DefaultLogoutPath + "?returnTo=https%3A%2F%2Fapp.example%2F&client_id=abc123")
	require.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusFound, resp.StatusCode)
	assert.Equal("https://app.example/", resp.Header.Get("Location"))

	logouts := tp.Logouts()
	require.Len(logouts, 1)
	assert.Equal("abc123", logouts[0].Get("client_id"))
}
