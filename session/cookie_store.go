// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"fmt"

	"github.com/gorilla/sessions"
)

// NewCookieStore returns a store which keeps the whole session in a cookie,
// signed and encrypted with keys derived from the secret.
//
// Supported options: WithMaxAge, WithSecure
func NewCookieStore(secret string, opt ...Option) (*sessions.CookieStore, error) {
	const op = "session.NewCookieStore"
	opts := getOpts(opt...)
	hashKey, blockKey, err := DeriveKeys(secret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = opts.cookieOptions()
	// sets the codecs' max age too, so stale cookies fail to decode
	store.MaxAge(store.Options.MaxAge)
	return store, nil
}
