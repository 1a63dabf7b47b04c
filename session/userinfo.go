// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

// UserInfo is the claim set the provider issued for an authenticated user,
// keyed by claim name. A UserInfo is never modified once it's stored in a
// session; Merge returns a new UserInfo.
type UserInfo map[string]interface{}

// Standard claim names read by the application.
const (
	ClaimSubject = "sub"
	ClaimEmail   = "email"
	ClaimName    = "name"
)

// Subject returns the "sub" claim or an empty string.
func (u UserInfo) Subject() string { return u.str(ClaimSubject) }

// Email returns the "email" claim or an empty string.
func (u UserInfo) Email() string { return u.str(ClaimEmail) }

// Name returns the "name" claim or an empty string.
func (u UserInfo) Name() string { return u.str(ClaimName) }

// Valid returns true when the claims contain a non-empty subject, which is
// the only requirement for a request to be authenticated.
func (u UserInfo) Valid() bool { return u.Subject() != "" }

// Merge returns a new UserInfo with the claims of other added to the claims
// of u. Claims in other win, except the subject which never changes.
func (u UserInfo) Merge(other UserInfo) UserInfo {
	merged := make(UserInfo, len(u)+len(other))
	for k, v := range u {
		merged[k] = v
	}
	for k, v := range other {
		if k == ClaimSubject {
			continue
		}
		merged[k] = v
	}
	return merged
}

func (u UserInfo) str(claim string) string {
	if s, ok := u[claim].(string); ok {
		return s
	}
	return ""
}
