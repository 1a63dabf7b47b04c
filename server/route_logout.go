// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import "net/http"

// handleLogout clears the session and sends the browser to the provider's
// logout, which returns it to the home page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Load(w, r)
	if err != nil {
		s.logger.Debug("unable to load session", "error", err)
	}
	userInfo, _ := sess.UserInfo()
	sess.Clear()
	if err := sess.Save(); err != nil {
		s.logger.Error("unable to clear session", "error", err)
		s.renderError(w, http.StatusInternalServerError, "Unable to log out.")
		return
	}
	s.logger.Info("LOGOUT", "sub", userInfo.Subject(), "timestamp", s.timestamp())
	s.metrics.logouts.Inc()
	http.Redirect(w, r, s.auth.LogoutURL(s.cfg.HomeURL), http.StatusFound)
}
