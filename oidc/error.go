// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrNilParameter              = errors.New("nil parameter")
	ErrInvalidCACert             = errors.New("invalid CA certificate")
	ErrInvalidIssuer             = errors.New("invalid issuer")
	ErrInvalidRedirectURL        = errors.New("invalid redirect URL")
	ErrIDGeneratorFailed         = errors.New("id generation failed")
	ErrExpiredRequest            = errors.New("request is expired")
	ErrResponseStateInvalid      = errors.New("invalid response state")
	ErrExchangeFailed            = errors.New("authorization code exchange failed")
	ErrMissingIDToken            = errors.New("id_token is missing")
	ErrIDTokenVerificationFailed = errors.New("id_token verification failed")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrInvalidAudience           = errors.New("invalid audience")
	ErrInvalidNonce              = errors.New("invalid nonce")
	ErrExpiredToken              = errors.New("token is expired")
	ErrUnsupportedAlg            = errors.New("unsupported signing algorithm")
	ErrUserInfoFailed            = errors.New("user info failed")
	ErrNotFound                  = errors.New("not found")
)
