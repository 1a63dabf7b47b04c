// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/hashicorp/capweb/session"
)

const (
	loginCookieName = "capweb_login"
	loginCookiePath = "/callback"
)

// loginCookie binds a login attempt to the browser which started it. It
// carries the attempt's state, signed and encrypted, and is only sent to
// /callback.
type loginCookie struct {
	codec  *securecookie.SecureCookie
	maxAge int
	secure bool
}

func newLoginCookie(secret string, ttl time.Duration, secure bool) (*loginCookie, error) {
	const op = "server.newLoginCookie"
	hashKey, err := session.DeriveKey(secret, "login hash", session.HashKeySize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	blockKey, err := session.DeriveKey(secret, "login block", session.BlockKeySize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	maxAge := int(ttl.Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(maxAge)
	return &loginCookie{
		codec:  codec,
		maxAge: maxAge,
		secure: secure,
	}, nil
}

func (c *loginCookie) set(w http.ResponseWriter, state string) error {
	const op = "loginCookie.set"
	encoded, err := c.codec.Encode(loginCookieName, state)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(w, c.cookie(encoded, c.maxAge))
	return nil
}

// read returns the state the browser's login cookie was bound to.
func (c *loginCookie) read(r *http.Request) (string, error) {
	const op = "loginCookie.read"
	cookie, err := r.Cookie(loginCookieName)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	var state string
	if err := c.codec.Decode(loginCookieName, cookie.Value, &state); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return state, nil
}

func (c *loginCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *loginCookie) cookie(value string, maxAge int) *http.Cookie {
	// a provider using form_post returns with a cross-site POST, which only
	// carries SameSite=None cookies; browsers require those to be Secure.
	sameSite := http.SameSiteLaxMode
	if c.secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     loginCookieName,
		Value:    value,
		Path:     loginCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: sameSite,
	}
}
