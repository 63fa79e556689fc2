// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/vaerksted/ffsync/models"
)

// SyncKeyInfo is the HKDF info string that turns the account's class-B key
// into the key bundle protecting the crypto/keys record.
const SyncKeyInfo = "identity.mozilla.com/picl/v1/oldsync"

// HKDF derives length bytes from secret using HKDF-SHA256 (RFC 5869).
// A nil salt is treated as a zero-filled digest-length block, per the RFC.
func HKDF(secret, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: derive length %d", ErrKeyLength, length)
	}

	out := make([]byte, length)
	r := hkdf.New(sha256.New, secret, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}

// DeriveBundle derives a [models.KeyBundle] from 32 bytes of master key
// material and a context string: 64 bytes of HKDF output split into the
// encryption key and the HMAC key. Deterministic; the bundle is derived
// once per session and reused for its lifetime.
func DeriveBundle(masterKey []byte, info string) (models.KeyBundle, error) {
	if len(masterKey) != 32 {
		return models.KeyBundle{}, fmt.Errorf("%w: master key is %d bytes, want 32", ErrKeyLength, len(masterKey))
	}

	material, err := HKDF(masterKey, nil, []byte(info), 64)
	if err != nil {
		return models.KeyBundle{}, err
	}

	return models.KeyBundle{
		EncryptionKey: material[:32],
		HMACKey:       material[32:],
	}, nil
}
