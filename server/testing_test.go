// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/yhat/scrape"
	"golang.org/x/net/html"
)

const (
	testBaseURL  = "http://capweb.test"
	testCallback = testBaseURL + "/callback"
	testHome     = testBaseURL + "/"
	testSecret   = "a-test-secret-which-is-long-enough"
)

// testServer is a Server wired to a TestProvider, logging JSON into logs.
type testServer struct {
	*Server
	tp       *oidc.TestProvider
	provider *oidc.Provider
	handler  http.Handler
	logs     *bytes.Buffer
}

type testServerConfig struct {
	cfg      func(*Config)
	sessions func(t *testing.T) *session.Manager
	opts     []Option
}

func testNewServer(t *testing.T, tc testServerConfig) *testServer {
	t.Helper()
	require := require.New(t)

	tp := oidc.StartTestProvider(t)
	tp.SetAllowedRedirectURIs(testCallback)
	id, secret := tp.ClientCreds()
	oc, err := oidc.NewConfig(tp.Addr(), id, secret, []oidc.Alg{oidc.ES256}, []string{testCallback},
		oidc.WithProviderCA(tp.CACert()),
		oidc.WithScopes("profile", "email"),
	)
	require.NoError(err)
	p, err := oidc.NewProvider(oc)
	require.NoError(err)
	t.Cleanup(p.Done)

	var sessions *session.Manager
	if tc.sessions != nil {
		sessions = tc.sessions(t)
	} else {
		sessions = testCookieSessions(t)
	}

	cfg := Config{
		CallbackURL:    testCallback,
		HomeURL:        testHome,
		LoginTimeout:   time.Minute,
		MetricsEnabled: true,
		SecretKey:      testSecret,
	}
	if tc.cfg != nil {
		tc.cfg(&cfg)
	}

	logs := &bytes.Buffer{}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "capweb",
		Output:     logs,
		Level:      hclog.Trace,
		JSONFormat: true,
	})
	opts := append([]Option{WithLogger(logger)}, tc.opts...)
	s, err := New(cfg, p, sessions, opts...)
	require.NoError(err)
	return &testServer{
		Server:   s,
		tp:       tp,
		provider: p,
		handler:  s.Routes(),
		logs:     logs,
	}
}

func testCookieSessions(t *testing.T) *session.Manager {
	t.Helper()
	require := require.New(t)
	store, err := session.NewCookieStore(testSecret)
	require.NoError(err)
	m, err := session.NewManager(store)
	require.NoError(err)
	return m
}

func testRedisSessions(mr *miniredis.Miniredis) func(t *testing.T) *session.Manager {
	return func(t *testing.T) *session.Manager {
		t.Helper()
		require := require.New(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		store, err := session.NewRedisStore(client, testSecret)
		require.NoError(err)
		m, err := session.NewManager(store)
		require.NoError(err)
		return m
	}
}

// entries returns the logged entries with msg as their message.
func (ts *testServer) entries(t *testing.T, msg string) []map[string]interface{} {
	t.Helper()
	var found []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(ts.logs.Bytes()))
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if entry["@message"] == msg {
			found = append(found, entry)
		}
	}
	return found
}

// testBrowser sends requests to a server's handler, keeping cookies the way
// a browser would.
type testBrowser struct {
	handler http.Handler
	jar     http.CookieJar
	header  http.Header
}

func newTestBrowser(t *testing.T, h http.Handler) *testBrowser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testBrowser{handler: h, jar: jar, header: http.Header{}}
}

func (b *testBrowser) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	u, err := url.Parse(testBaseURL + target)
	require.NoError(t, err)
	req := httptest.NewRequest(method, u.String(), body)
	for k, v := range b.header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.jar.Cookies(u) {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	b.jar.SetCookies(u, rec.Result().Cookies())
	return rec
}

func (b *testBrowser) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	return b.do(t, http.MethodGet, target, nil)
}

func (b *testBrowser) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return b.do(t, http.MethodPost, target, strings.NewReader(form.Encode()))
}

// startLogin requests /login and lets the provider authorize the attempt. It
// returns the callback URL the provider redirected to.
func (b *testBrowser) startLogin(t *testing.T, tp *oidc.TestProvider) *url.URL {
	t.Helper()
	require := require.New(t)
	rec := b.get(t, "/login")
	require.Equal(http.StatusFound, rec.Code)
	loc := tp.Authorize(t, rec.Header().Get("Location"))
	require.Empty(loc.Query().Get("error"), loc.Query().Get("error_description"))
	return loc
}

// login completes a login and returns the callback's response.
func (b *testBrowser) login(t *testing.T, tp *oidc.TestProvider) *httptest.ResponseRecorder {
	t.Helper()
	loc := b.startLogin(t, tp)
	return b.get(t, loc.RequestURI())
}

func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// text returns the text of the page's element with id.
func text(t *testing.T, body io.Reader, id string) string {
	t.Helper()
	root, err := html.Parse(body)
	require.NoError(t, err)
	n, ok := scrape.Find(root, scrape.ById(id))
	require.Truef(t, ok, "element %q not found", id)
	return scrape.Text(n)
}
