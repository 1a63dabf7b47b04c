// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"container/list"
	"sync"

	"github.com/hashicorp/capweb/oidc"
)

// DefaultMaxPendingLogins is the default bound on login attempts waiting
// for their callback.
const DefaultMaxPendingLogins = 10000

// requestCache holds the in-flight login attempts, keyed by their state. An
// attempt can be read only once. The cache holds at most limit attempts; the
// oldest is evicted to make room for a new one.
//
// Attempts share one timeout, so insertion order is expiry order and expired
// attempts are always at the front of the list.
type requestCache struct {
	mu    sync.Mutex
	limit int
	order *list.List
	c     map[string]*list.Element
}

func newRequestCache(limit int) *requestCache {
	if limit <= 0 {
		limit = DefaultMaxPendingLogins
	}
	return &requestCache{
		limit: limit,
		order: list.New(),
		c:     map[string]*list.Element{},
	}
}

// Add caches the request and drops expired ones. It returns true when the
// oldest attempt had to be evicted to stay within the bound.
func (rc *requestCache) Add(r oidc.Request) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for e := rc.order.Front(); e != nil && e.Value.(oidc.Request).IsExpired(); e = rc.order.Front() {
		rc.remove(e)
	}
	if e, ok := rc.c[r.State()]; ok {
		rc.remove(e)
	}
	evicted := false
	if rc.order.Len() >= rc.limit {
		rc.remove(rc.order.Front())
		evicted = true
	}
	rc.c[r.State()] = rc.order.PushBack(r)
	return evicted
}

// Read removes the request for state from the cache and returns it. It
// returns false when the state is unknown or the request expired.
func (rc *requestCache) Read(state string) (oidc.Request, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	e, ok := rc.c[state]
	if !ok {
		return nil, false
	}
	rc.remove(e)
	r := e.Value.(oidc.Request)
	if r.IsExpired() {
		return nil, false
	}
	return r, true
}

// Len returns the number of cached requests.
func (rc *requestCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.order.Len()
}

func (rc *requestCache) remove(e *list.Element) {
	rc.order.Remove(e)
	delete(rc.c, e.Value.(oidc.Request).State())
}
