// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	// DefaultCookieName is the name of the session cookie.
	DefaultCookieName = "capweb_session"

	// DefaultMaxAge is how long a session lives.
	DefaultMaxAge = 24 * time.Hour

	// DefaultKeyPrefix is the prefix of the keys RedisStore writes.
	DefaultKeyPrefix = "capweb:session:"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// options is the set of available options
type options struct {
	withCookieName string
	withMaxAge     time.Duration
	withSecure     bool
	withKeyPrefix  string
}

func getDefaults() options {
	return options{
		withCookieName: DefaultCookieName,
		withMaxAge:     DefaultMaxAge,
		withKeyPrefix:  DefaultKeyPrefix,
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// cookieOptions returns the options of every cookie the stores write. Cookies
// are always HttpOnly and SameSite=Lax, which still sends them with the
// top-level redirect back from the provider.
func (o options) cookieOptions() *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   int(o.withMaxAge.Seconds()),
		Secure:   o.withSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// WithCookieName provides an optional session cookie name for: Manager.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && name != "" {
			o.withCookieName = name
		}
	}
}

// WithMaxAge provides an optional session lifetime for: NewCookieStore and
// NewRedisStore.
func WithMaxAge(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withMaxAge = d
		}
	}
}

// WithSecure provides an optional Secure flag for session cookies for:
// NewCookieStore and NewRedisStore.
func WithSecure(secure bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSecure = secure
		}
	}
}

// WithKeyPrefix provides an optional redis key prefix for: NewRedisStore.
func WithKeyPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && prefix != "" {
			o.withKeyPrefix = prefix
		}
	}
}
