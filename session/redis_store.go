// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a sessions.Store which keeps session values in redis. The
// cookie only carries the signed session id, and a session's key expires
// with the session.
type RedisStore struct {
	client     redis.UniversalClient
	codecs     []securecookie.Codec
	options    *sessions.Options
	keyPrefix  string
	serializer securecookie.GobEncoder
}

var _ sessions.Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore using the client. Session ids are signed
// with a key derived from the secret.
//
// Supported options: WithMaxAge, WithSecure, WithKeyPrefix
func NewRedisStore(client redis.UniversalClient, secret string, opt ...Option) (*RedisStore, error) {
	const op = "session.NewRedisStore"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	hashKey, err := DeriveKey(secret, "session id hash", HashKeySize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s := &RedisStore{
		client:    client,
		codecs:    securecookie.CodecsFromPairs(hashKey),
		options:   opts.cookieOptions(),
		keyPrefix: opts.withKeyPrefix,
	}
	for _, c := range s.codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(s.options.MaxAge)
		}
	}
	return s, nil
}

// Ping checks the store's redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	const op = "RedisStore.Ping"
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return nil
}

// Get returns a session for the given name after adding it to the registry.
func (s *RedisStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns a session for the given name without adding it to the
// registry. A session whose cookie can't be decoded, or whose values are gone
// from redis, is returned as a new empty session.
func (s *RedisStore) New(r *http.Request, name string) (*sessions.Session, error) {
	const op = "RedisStore.New"
	session := sessions.NewSession(s, name)
	opts := *s.options
	session.Options = &opts
	session.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		return session, fmt.Errorf("%s: %w: %w", op, ErrInvalidSession, err)
	}
	found, err := s.load(r.Context(), id, session)
	if err != nil {
		return session, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		session.ID = id
		session.IsNew = false
	}
	return session, nil
}

// Save adds a single session to the response. A session with a MaxAge less
// than or equal to zero is deleted from redis and its cookie is expired.
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	const op = "RedisStore.Save"
	if session.Options.MaxAge <= 0 {
		if session.ID != "" {
			if err := s.client.Del(r.Context(), s.key(session.ID)).Err(); err != nil {
				return fmt.Errorf("%s: unable to delete session: %w: %w", op, ErrStore, err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return fmt.Errorf("%s: unable to generate session id: %w", op, err)
		}
		session.ID = id
	}
	b, err := s.serializer.Serialize(session.Values)
	if err != nil {
		return fmt.Errorf("%s: unable to serialize session: %w", op, err)
	}
	ttl := time.Duration(session.Options.MaxAge) * time.Second
	if err := s.client.Set(r.Context(), s.key(session.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("%s: unable to store session: %w: %w", op, ErrStore, err)
	}
	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("%s: unable to encode session id: %w", op, err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string, session *sessions.Session) (bool, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("unable to load session: %w: %w", ErrStore, err)
	}
	if err := s.serializer.Deserialize(b, &session.Values); err != nil {
		return false, fmt.Errorf("unable to deserialize session: %w: %w", ErrInvalidSession, err)
	}
	return true, nil
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}
