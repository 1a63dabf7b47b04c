// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/hashicorp/capweb/session"
)

type claim struct {
	Name  string
	Value string
}

type protectedPage struct {
	Subject string
	Email   string
	Name    string
	Claims  []claim
}

// handleProtected renders the user's claims. It's only reachable through
// RequireAuth.
func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Load(w, r)
	if err != nil {
		s.logger.Debug("unable to load session", "error", err)
	}
	userInfo, ok := sess.UserInfo()
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.logger.Info("ACCESS", "sub", userInfo.Subject(), "email", userInfo.Email(), "timestamp", s.timestamp())
	s.metrics.protectedAccess.Inc()
	s.render(w, http.StatusOK, s.views.protected, protectedPage{
		Subject: userInfo.Subject(),
		Email:   userInfo.Email(),
		Name:    userInfo.Name(),
		Claims:  sortedClaims(userInfo),
	})
}

func sortedClaims(u session.UserInfo) []claim {
	claims := make([]claim, 0, len(u))
	for name, v := range u {
		value, ok := v.(string)
		if !ok {
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			value = string(b)
		}
		claims = append(claims, claim{Name: name, Value: value})
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].Name < claims[j].Name })
	return claims
}
