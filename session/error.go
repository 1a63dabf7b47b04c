// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrInvalidSession   = errors.New("invalid session")
	ErrInvalidUserInfo  = errors.New("invalid user info")
	ErrStore            = errors.New("session store failure")
)
