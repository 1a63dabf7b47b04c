// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/hashicorp/capweb/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_protected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject string
		claims  map[string]interface{}
	}{
		{
			name:    "alice",
			subject: "auth0|alice",
			claims:  map[string]interface{}{"email": "alice@example.com", "name": "Alice Doe"},
		},
		{
			name:    "bob-without-name",
			subject: "auth0|bob",
			claims:  map[string]interface{}{"email": "bob@example.com"},
		},
		{
			name:    "escaped",
			subject: "auth0|<script>",
			claims:  map[string]interface{}{"email": "eve@example.com"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			ts := testNewServer(t, testServerConfig{})
			ts.tp.SetSubject(tt.subject)
			ts.tp.SetCustomClaims(tt.claims)
			b := newTestBrowser(t, ts.handler)
			require.Equal(http.StatusFound, b.login(t, ts.tp).Code)

			rec := b.get(t, "/protected")
			require.Equal(http.StatusOK, rec.Code)
			body := rec.Body.Bytes()
			assert.NotContains(string(body), "<script>")
			assert.Equal(tt.subject, text(t, bytes.NewReader(body), "sub"))
			assert.Equal(tt.claims["email"], text(t, bytes.NewReader(body), "email"))

			entries := ts.entries(t, "ACCESS")
			require.Len(entries, 1)
			assert.Equal("info", entries[0]["@level"])
			assert.Equal(tt.subject, entries[0]["sub"])
			assert.Equal(tt.claims["email"], entries[0]["email"])
			assert.NotEmpty(entries[0]["timestamp"])
			assert.Equal(1.0, testutil.ToFloat64(ts.metrics.protectedAccess))

			// rendering the page never rewrites the session
			assert.Nil(sessionCookie(rec, session.DefaultCookieName))
		})
	}
}

func TestSortedClaims(t *testing.T) {
	t.Parallel()
	got := sortedClaims(session.UserInfo{
		"sub":            "auth0|alice",
		"email_verified": true,
		"aud":            []interface{}{"a", "b"},
		"exp":            float64(1700000000),
	})
	assert.Equal(t, []claim{
		{Name: "aud", Value: `["a","b"]`},
		{Name: "email_verified", Value: "true"},
		{Name: "exp", Value: "1700000000"},
		{Name: "sub", Value: "auth0|alice"},
	}, got)
}
