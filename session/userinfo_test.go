// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserInfo(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		u         UserInfo
		wantSub   string
		wantEmail string
		wantName  string
		wantValid bool
	}{
		{
			name:      "complete",
			u:         UserInfo{"sub": "auth0|alice", "email": "alice@example.com", "name": "Alice"},
			wantSub:   "auth0|alice",
			wantEmail: "alice@example.com",
			wantName:  "Alice",
			wantValid: true,
		},
		{
			name:      "subject-only",
			u:         UserInfo{"sub": "auth0|alice"},
			wantSub:   "auth0|alice",
			wantValid: true,
		},
		{
			name:      "empty-subject",
			u:         UserInfo{"sub": "", "email": "alice@example.com"},
			wantEmail: "alice@example.com",
		},
		{
			name: "non-string-subject",
			u:    UserInfo{"sub": 42},
		},
		{
			name: "nil",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			assert.Equal(tt.wantSub, tt.u.Subject())
			assert.Equal(tt.wantEmail, tt.u.Email())
			assert.Equal(tt.wantName, tt.u.Name())
			assert.Equal(tt.wantValid, tt.u.Valid())
		})
	}
}

func TestUserInfo_Merge(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	u := UserInfo{"sub": "alice", "email": "old@example.com"}
	merged := u.Merge(UserInfo{"sub": "mallory", "email": "new@example.com", "picture": "p.png"})
	assert.Equal(UserInfo{"sub": "alice", "email": "new@example.com", "picture": "p.png"}, merged)
	assert.Equal(UserInfo{"sub": "alice", "email": "old@example.com"}, u, "merge doesn't modify the receiver")
}
