// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"net/http"

	"github.com/hashicorp/capweb/oidc"
	"golang.org/x/text/language"
)

// handleLogin starts a login attempt and redirects the browser to the
// provider. It never touches the session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	opts := []oidc.Option{
		oidc.WithPKCE(oidc.NewCodeVerifier()),
		oidc.WithNow(s.now),
	}
	if locales := uiLocales(r); len(locales) > 0 {
		opts = append(opts, oidc.WithUILocales(locales...))
	}
	oidcRequest, err := oidc.NewRequest(s.cfg.LoginTimeout, s.cfg.CallbackURL, opts...)
	if err != nil {
		s.logger.Error("unable to create login request", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Unable to start the login.")
		return
	}
	authURL, err := s.auth.AuthURL(r.Context(), oidcRequest)
	if err != nil {
		s.logger.Error("unable to create auth url", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Unable to start the login.")
		return
	}
	if err := s.loginCookie.set(w, oidcRequest.State()); err != nil {
		s.logger.Error("unable to set login cookie", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Unable to start the login.")
		return
	}
	if evicted := s.requests.Add(oidcRequest); evicted {
		s.metrics.loginsEvicted.Inc()
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// uiLocales returns the browser's preferred languages, best first.
func uiLocales(r *http.Request) []language.Tag {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil {
		return nil
	}
	return tags
}
