// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/session"
	"golang.org/x/oauth2"
)

// Reasons a login callback fails, as logged and counted.
const (
	reasonProviderError = "provider_error"
	reasonInvalidState  = "invalid_state"
	reasonMissingCode   = "missing_code"
	reasonRejected      = "exchange_rejected"
	reasonUnreachable   = "provider_unreachable"
	reasonInvalidToken  = "invalid_token"
	reasonUserInfo      = "userinfo_failed"
	reasonSession       = "session_failed"
	reasonInternal      = "internal"
)

// handleCallback completes a login attempt. The session is only written
// once the provider's tokens have been verified.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := r.FormValue("state")

	if providerErr := r.FormValue("error"); providerErr != "" {
		// the attempt is over either way
		s.requests.Read(state)
		s.loginCookie.clear(w)
		err := fmt.Errorf("%s: %s", providerErr, r.FormValue("error_description"))
		s.loginFailed(w, r, http.StatusUnauthorized, reasonProviderError, err)
		return
	}

	if state == "" {
		s.loginFailed(w, r, http.StatusBadRequest, reasonInvalidState, errors.New("missing state"))
		return
	}
	bound, err := s.loginCookie.read(r)
	s.loginCookie.clear(w)
	if err != nil {
		s.loginFailed(w, r, http.StatusBadRequest, reasonInvalidState, fmt.Errorf("unbound state: %w", err))
		return
	}
	if bound != state {
		s.loginFailed(w, r, http.StatusBadRequest, reasonInvalidState, errors.New("state is not bound to this browser"))
		return
	}
	oidcRequest, ok := s.requests.Read(state)
	if !ok {
		s.loginFailed(w, r, http.StatusBadRequest, reasonInvalidState, errors.New("unknown or expired state"))
		return
	}
	code := r.FormValue("code")
	if code == "" {
		s.loginFailed(w, r, http.StatusBadRequest, reasonMissingCode, errors.New("missing code"))
		return
	}

	tk, err := s.auth.Exchange(ctx, oidcRequest, state, code)
	if err != nil {
		status, reason := exchangeFailure(err)
		s.loginFailed(w, r, status, reason, err)
		return
	}
	var userInfo session.UserInfo
	if err := tk.IDToken().Claims(&userInfo); err != nil {
		s.loginFailed(w, r, http.StatusUnauthorized, reasonInvalidToken, err)
		return
	}
	if s.cfg.FetchUserInfo {
		var fetched session.UserInfo
		if err := s.auth.UserInfo(ctx, tk.StaticTokenSource(), userInfo.Subject(), &fetched); err != nil {
			s.loginFailed(w, r, http.StatusBadGateway, reasonUserInfo, err)
			return
		}
		userInfo = userInfo.Merge(fetched)
	}

	sess, err := s.sessions.Load(w, r)
	if err != nil {
		s.logger.Debug("replacing invalid session", "error", err)
	}
	if err := sess.SetUserInfo(userInfo); err != nil {
		s.loginFailed(w, r, http.StatusUnauthorized, reasonInvalidToken, err)
		return
	}
	if err := sess.Save(); err != nil {
		s.loginFailed(w, r, http.StatusInternalServerError, reasonSession, err)
		return
	}

	s.logger.Info("LOGIN", "sub", userInfo.Subject(), "email", userInfo.Email(), "timestamp", s.timestamp())
	s.metrics.logins.Inc()
	http.Redirect(w, r, "/", http.StatusFound)
}

// exchangeFailure maps an Exchange error to a response status and a reason.
// The provider rejecting the grant or the token being invalid is the
// client's problem; the provider failing or being unreachable is not.
func exchangeFailure(err error) (int, string) {
	switch {
	case errors.Is(err, oidc.ErrResponseStateInvalid),
		errors.Is(err, oidc.ErrExpiredRequest):
		return http.StatusBadRequest, reasonInvalidState
	case errors.Is(err, oidc.ErrInvalidParameter):
		return http.StatusBadRequest, reasonMissingCode
	case errors.Is(err, oidc.ErrExchangeFailed):
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			return http.StatusUnauthorized, reasonRejected
		}
		return http.StatusBadGateway, reasonUnreachable
	case errors.Is(err, oidc.ErrMissingIDToken),
		errors.Is(err, oidc.ErrIDTokenVerificationFailed),
		errors.Is(err, oidc.ErrInvalidNonce),
		errors.Is(err, oidc.ErrInvalidAudience):
		return http.StatusUnauthorized, reasonInvalidToken
	default:
		return http.StatusInternalServerError, reasonInternal
	}
}

func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, status int, reason string, err error) {
	s.logger.Error("LOGIN_FAILED", "reason", reason, "timestamp", s.timestamp(), "path", r.URL.Path, "error", err)
	s.metrics.loginFailures.WithLabelValues(reason).Inc()
	s.renderError(w, status, "The login could not be completed.")
}
