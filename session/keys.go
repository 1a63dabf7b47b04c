// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// HashKeySize is the size of the HMAC key which authenticates cookies.
	HashKeySize = 64

	// BlockKeySize is the size of the AES-256 key which encrypts cookies.
	BlockKeySize = 32
)

// DeriveKey derives a key of size bytes from the application secret. Keys
// derived for different purposes are independent of each other.
func DeriveKey(secret, purpose string, size int) ([]byte, error) {
	const op = "session.DeriveKey"
	switch {
	case secret == "":
		return nil, fmt.Errorf("%s: secret is empty: %w", op, ErrInvalidParameter)
	case purpose == "":
		return nil, fmt.Errorf("%s: purpose is empty: %w", op, ErrInvalidParameter)
	case size <= 0:
		return nil, fmt.Errorf("%s: size must be greater than zero: %w", op, ErrInvalidParameter)
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("capweb "+purpose))
	key := make([]byte, size)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%s: reading from hkdf: %w", op, err)
	}
	return key, nil
}

// DeriveKeys derives the hash and block keys of the session cookie codecs
// from the application secret.
func DeriveKeys(secret string) (hashKey, blockKey []byte, err error) {
	const op = "session.DeriveKeys"
	if hashKey, err = DeriveKey(secret, "session hash", HashKeySize); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if blockKey, err = DeriveKey(secret, "session block", BlockKeySize); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return hashKey, blockKey, nil
}
