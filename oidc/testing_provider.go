// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// Default values used by a TestProvider until they are overridden.
const (
	TestDefaultClientID     = "test-client-id"
	TestDefaultClientSecret = "test-client-secret"
	TestDefaultSubject      = "auth0|alice"
	TestDefaultEmail        = "alice@example.com"
	TestDefaultName         = "Alice Doe"

	testKeyID      = "test-signing-key"
	testCodeExpiry = time.Minute
)

// TestProvider is a local TLS server that supports the provider capabilities
// needed by an authorization code flow relying party: discovery, /authorize,
// /token, a jwks endpoint, /userinfo and an Auth0 style /v2/logout endpoint.
// It makes writing tests much easier.
//
// Codes issued by /authorize are one-time use and are bound to the request's
// redirect_uri, nonce and PKCE challenge.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks       *jose.JSONWebKeySet
	signingKey *ecdsa.PrivateKey
	unknownKey *ecdsa.PrivateKey

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	allowedRedirectURIs []string
	subject             string
	customClaims        map[string]interface{}
	userInfoReply       map[string]interface{}
	disableToken        bool
	signWithUnknownKey  bool
	codes               map[string]testCodeGrant
	accessTokens        map[string]string
	logouts             []url.Values
}

type testCodeGrant struct {
	redirectURI   string
	nonce         string
	codeChallenge string
	expiration    time.Time
}

// StartTestProvider creates and starts a disposable TestProvider which is
// stopped by the test's cleanup.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	pub, priv := TestGenerateKeys(t)
	_, unknown := TestGenerateKeys(t)

	p := &TestProvider{
		signingKey:   priv,
		unknownKey:   unknown,
		clientID:     TestDefaultClientID,
		clientSecret: TestDefaultClientSecret,
		allowedRedirectURIs: []string{
			"https://example.com/callback",
		},
		subject: TestDefaultSubject,
		customClaims: map[string]interface{}{
			"email": TestDefaultEmail,
			"name":  TestDefaultName,
		},
		userInfoReply: map[string]interface{}{
			"email_verified": true,
			"picture":        "https://example.com/alice.png",
		},
		codes:        map[string]testCodeGrant{},
		accessTokens: map[string]string{},
		jwks: &jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{
					Key:       pub,
					KeyID:     testKeyID,
					Algorithm: string(ES256),
					Use:       "sig",
				},
			},
		},
	}

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	pem, err := EncodeCertificates(p.httpServer.Certificate())
	require.NoError(err)
	p.caCert = pem

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running
// webserver, which is also the provider's issuer.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns an http.Client that trusts the test provider's
// certificate and doesn't follow redirects, which makes it a convenient
// stand-in for a user agent.
func (p *TestProvider) HTTPClient() *http.Client {
	c := p.httpServer.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// ClientCreds returns the configured client id and secret.
func (p *TestProvider) ClientCreds() (string, ClientSecret) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientID, ClientSecret(p.clientSecret)
}

// SetAllowedRedirectURIs configures the redirect URIs accepted by /authorize
// and /token.
func (p *TestProvider) SetAllowedRedirectURIs(uris ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetSubject configures the "sub" claim of issued id_tokens and userinfo
// replies.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subject = sub
}

// SetCustomClaims replaces the additional claims added to issued id_tokens.
func (p *TestProvider) SetCustomClaims(claims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = claims
}

// SetUserInfoReply replaces the claims returned by /userinfo, in addition to
// "sub".
func (p *TestProvider) SetUserInfoReply(reply map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userInfoReply = reply
}

// SetDisableToken forces the /token endpoint to fail with a server error.
func (p *TestProvider) SetDisableToken(disable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableToken = disable
}

// SetSignWithUnknownKey makes /token sign id_tokens with a key that isn't
// published by the jwks endpoint.
func (p *TestProvider) SetSignWithUnknownKey(unknown bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signWithUnknownKey = unknown
}

// Logouts returns the query of every request received by /v2/logout.
func (p *TestProvider) Logouts() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.logouts)
}

// Authorize plays the user agent's part of the flow: it requests the authURL
// and returns the redirect URL the provider sent the user agent to, which
// carries either a code and state or an error.
func (p *TestProvider) Authorize(t *testing.T, authURL string) *url.URL {
	t.Helper()
	require := require.New(t)
	resp, err := p.HTTPClient().Get(authURL)
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	loc, err := resp.Location()
	require.NoError(err)
	return loc
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer              string   `json:"issuer"`
			AuthEndpoint        string   `json:"authorization_endpoint"`
			TokenEndpoint       string   `json:"token_endpoint"`
			JWKSURI             string   `json:"jwks_uri"`
			UserinfoEndpoint    string   `json:"userinfo_endpoint"`
			EndSessionEndpoint  string   `json:"end_session_endpoint"`
			Algs                []string `json:"id_token_signing_alg_values_supported"`
			CodeChallengeMethod []string `json:"code_challenge_methods_supported"`
		}{
			Issuer:              p.Addr(),
			AuthEndpoint:        p.Addr() + "/authorize",
			TokenEndpoint:       p.Addr() + "/token",
			JWKSURI:             p.Addr() + "/.well-known/jwks.json",
			UserinfoEndpoint:    p.Addr() + "/userinfo",
			EndSessionEndpoint:  p.Addr() + DefaultLogoutPath,
			Algs:                []string{string(ES256)},
			CodeChallengeMethod: []string{"S256"},
		}
		p.writeJSON(w, &reply)

	case "/.well-known/jwks.json":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, p.jwks)

	case "/authorize":
		p.handleAuthorize(w, req)

	case "/token":
		p.handleToken(w, req)

	case "/userinfo":
		if req.Method != http.MethodGet && req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		sub, ok := p.accessTokens[token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		reply := map[string]interface{}{}
		for k, v := range p.userInfoReply {
			reply[k] = v
		}
		reply["sub"] = sub
		p.writeJSON(w, reply)

	case DefaultLogoutPath:
		qv := req.URL.Query()
		p.logouts = append(p.logouts, qv)
		if returnTo := qv.Get("returnTo"); returnTo != "" {
			http.Redirect(w, req, returnTo, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) handleAuthorize(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri")
	if redirectURI == "" || !slices.Contains(p.allowedRedirectURIs, redirectURI) {
		// never redirect to an unknown redirect_uri
		http.Error(w, "redirect_uri is not allowed", http.StatusBadRequest)
		return
	}
	state := qv.Get("state")
	switch {
	case qv.Get("response_type") != "code":
		p.writeAuthErrorResponse(w, req, redirectURI, state, "unsupported_response_type", "")
		return
	case qv.Get("client_id") != p.clientID:
		p.writeAuthErrorResponse(w, req, redirectURI, state, "unauthorized_client", "unknown client_id")
		return
	case !slices.Contains(strings.Fields(qv.Get("scope")), "openid"):
		p.writeAuthErrorResponse(w, req, redirectURI, state, "invalid_scope", "openid scope is required")
		return
	case state == "":
		p.writeAuthErrorResponse(w, req, redirectURI, state, "invalid_request", "missing state parameter")
		return
	}
	challenge := qv.Get("code_challenge")
	if challenge != "" && qv.Get("code_challenge_method") != "S256" {
		p.writeAuthErrorResponse(w, req, redirectURI, state, "invalid_request", "unsupported code_challenge_method")
		return
	}

	code, err := NewID(WithPrefix("code"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.codes[code] = testCodeGrant{
		redirectURI:   redirectURI,
		nonce:         qv.Get("nonce"),
		codeChallenge: challenge,
		expiration:    time.Now().Add(testCodeExpiry),
	}
	p.redirectWithParams(w, req, redirectURI, url.Values{
		"code":  []string{code},
		"state": []string{state},
	})
}

func (p *TestProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if p.disableToken {
		p.writeTokenErrorResponse(w, http.StatusServiceUnavailable, "temporarily_unavailable", "token endpoint is disabled")
		return
	}
	if err := req.ParseForm(); err != nil {
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "unable to parse form")
		return
	}
	if !p.validClient(req) {
		p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "client authentication failed")
		return
	}
	if req.PostForm.Get("grant_type") != "authorization_code" {
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
		return
	}

	code := req.PostForm.Get("code")
	grant, ok := p.codes[code]
	delete(p.codes, code) // codes are one-time use
	switch {
	case !ok:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown auth code")
		return
	case time.Now().After(grant.expiration):
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "expired auth code")
		return
	case req.PostForm.Get("redirect_uri") != grant.redirectURI:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match")
		return
	}
	verifier := req.PostForm.Get("code_verifier")
	switch {
	case grant.codeChallenge == "" && verifier != "":
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected code_verifier")
		return
	case grant.codeChallenge != "" && s256Challenge(verifier) != grant.codeChallenge:
		p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "invalid code_verifier")
		return
	}

	now := time.Now()
	claims := map[string]interface{}{}
	for k, v := range p.customClaims {
		claims[k] = v
	}
	claims["iss"] = p.Addr()
	claims["sub"] = p.subject
	claims["aud"] = []string{p.clientID}
	claims["iat"] = jwt.NewNumericDate(now)
	claims["nbf"] = jwt.NewNumericDate(now.Add(-5 * time.Second))
	claims["exp"] = jwt.NewNumericDate(now.Add(5 * time.Minute))
	if grant.nonce != "" {
		claims["nonce"] = grant.nonce
	}
	key := p.signingKey
	if p.signWithUnknownKey {
		key = p.unknownKey
	}
	idToken, err := signJWT(key, testKeyID, claims)
	if err != nil {
		p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	accessToken, err := NewID(WithPrefix("at"))
	if err != nil {
		p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	p.accessTokens[accessToken] = p.subject

	reply := struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
		IDToken     string `json:"id_token"`
	}{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int((5 * time.Minute).Seconds()),
		IDToken:     idToken,
	}
	w.Header().Set("Cache-Control", "no-store")
	p.writeJSON(w, &reply)
}

// validClient accepts client credentials sent either with basic auth or in
// the form body.
func (p *TestProvider) validClient(req *http.Request) bool {
	id, secret, ok := req.BasicAuth()
	if ok {
		// basic auth credentials are form url encoded (RFC 6749 2.3.1)
		id, _ = url.QueryUnescape(id)
		secret, _ = url.QueryUnescape(secret)
	} else {
		id, secret = req.PostForm.Get("client_id"), req.PostForm.Get("client_secret")
	}
	return id == p.clientID &&
		subtle.ConstantTimeCompare([]byte(secret), []byte(p.clientSecret)) == 1
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) redirectWithParams(w http.ResponseWriter, req *http.Request, redirectURI string, params url.Values) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, redirectURI, state, errorCode, errorMessage string) {
	params := url.Values{
		"error": []string{errorCode},
	}
	if state != "" {
		params.Set("state", state)
	}
	if errorMessage != "" {
		params.Set("error_description", errorMessage)
	}
	p.redirectWithParams(w, req, redirectURI, params)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(&body)
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
