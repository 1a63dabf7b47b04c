// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"net/http"
)

// RequireAuth only lets requests with a logged in session through to next.
// Everyone else is redirected to /login and logged as UNAUTHORIZED.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Load(w, r)
		if err != nil {
			s.logger.Debug("unable to load session", "path", r.URL.Path, "error", err)
		}
		if _, ok := sess.UserInfo(); ok {
			next.ServeHTTP(w, r)
			return
		}
		s.logger.Warn("UNAUTHORIZED", "timestamp", s.timestamp(), "path", r.URL.Path)
		s.metrics.unauthorized.Inc()
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}
