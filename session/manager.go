// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// userInfoKey is the session value holding the JSON encoded UserInfo.
const userInfoKey = "userinfo"

// Manager hands out the Session of a request.
type Manager struct {
	store sessions.Store
	name  string
}

// NewManager creates a Manager for sessions kept in the store.
//
// Supported options: WithCookieName
func NewManager(store sessions.Store, opt ...Option) (*Manager, error) {
	const op = "session.NewManager"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	return &Manager{
		store: store,
		name:  opts.withCookieName,
	}, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.name }

// Load returns the Session of the request. A session cookie that can't be
// decoded results in an empty session along with an error wrapping
// ErrInvalidSession, which the caller may log; the Session is usable
// either way.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	const op = "Manager.Load"
	s, err := m.store.Get(r, m.name)
	if s == nil {
		s = sessions.NewSession(m.store, m.name)
		s.Options = getDefaults().cookieOptions()
		s.IsNew = true
	}
	sess := &Session{session: s, w: w, r: r}
	if err != nil {
		// drop whatever was decoded from a bad cookie
		s.Values = map[interface{}]interface{}{}
		return sess, fmt.Errorf("%s: %w: %w", op, ErrInvalidSession, err)
	}
	return sess, nil
}

// Session is the session of a single request. It must not be used beyond the
// request it was loaded for.
type Session struct {
	session *sessions.Session
	w       http.ResponseWriter
	r       *http.Request
}

// UserInfo returns the session's UserInfo. It returns false when the session
// isn't authenticated.
func (s *Session) UserInfo() (UserInfo, bool) {
	raw, ok := s.session.Values[userInfoKey].(string)
	if !ok || raw == "" {
		return nil, false
	}
	var u UserInfo
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	if !u.Valid() {
		return nil, false
	}
	return u, true
}

// SetUserInfo stores u in the session, replacing any previous UserInfo. The
// change is written by Save.
func (s *Session) SetUserInfo(u UserInfo) error {
	const op = "Session.SetUserInfo"
	if !u.Valid() {
		return fmt.Errorf("%s: user info has no subject: %w", op, ErrInvalidUserInfo)
	}
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("%s: unable to encode user info: %w", op, err)
	}
	s.session.Values[userInfoKey] = string(b)
	return nil
}

// Clear removes every value from the session and expires it. Save writes
// the deletion.
func (s *Session) Clear() {
	s.session.Values = map[interface{}]interface{}{}
	if s.session.Options == nil {
		s.session.Options = &sessions.Options{Path: "/"}
	}
	s.session.Options.MaxAge = -1
}

// IsNew returns true when the request carried no existing session.
func (s *Session) IsNew() bool { return s.session.IsNew }

// Save writes the session to the response.
func (s *Session) Save() error {
	const op = "Session.Save"
	if err := s.session.Save(s.r, s.w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
