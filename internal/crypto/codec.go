// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vaerksted/ffsync/models"
)

// Encrypt serializes v to JSON and protects it for storage on the server:
// PKCS7 padding, AES-256-CBC under the bundle's encryption key with a fresh
// random 16-byte IV, then HMAC-SHA256 under the bundle's HMAC key computed
// over the base64-encoded ciphertext bytes (not the raw ciphertext — that
// is what the wire format mandates).
func Encrypt(v any, bundle models.KeyBundle) (models.EncryptedPayload, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("marshal payload: %w", err)
	}

	block, err := aes.NewCipher(bundle.EncryptionKey)
	if err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err = io.ReadFull(rand.Reader, iv); err != nil {
		return models.EncryptedPayload{}, fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	encoded := base64.StdEncoding.EncodeToString(ciphertext)

	mac := hmac.New(sha256.New, bundle.HMACKey)
	mac.Write([]byte(encoded))

	return models.EncryptedPayload{
		Ciphertext: encoded,
		IV:         base64.StdEncoding.EncodeToString(iv),
		HMAC:       hex.EncodeToString(mac.Sum(nil)),
	}, nil
}

// Decrypt verifies and opens an encrypted payload into target (a non-nil
// pointer, as for json.Unmarshal). The HMAC is recomputed over the stored
// base64 ciphertext and compared in constant time before any decryption
// happens; a mismatch is reported as [ErrIntegrity] and no plaintext is
// ever produced from an unauthenticated payload. Malformed base64, padding
// or JSON is reported as [ErrDecode].
func Decrypt(p models.EncryptedPayload, bundle models.KeyBundle, target any) error {
	storedMAC, err := hex.DecodeString(p.HMAC)
	if err != nil {
		return fmt.Errorf("%w: malformed hmac: %v", ErrDecode, err)
	}

	mac := hmac.New(sha256.New, bundle.HMACKey)
	mac.Write([]byte(p.Ciphertext))
	if !hmac.Equal(mac.Sum(nil), storedMAC) {
		return ErrIntegrity
	}

	ciphertext, err := base64.StdEncoding.DecodeString(p.Ciphertext)
	if err != nil {
		return fmt.Errorf("%w: malformed ciphertext: %v", ErrDecode, err)
	}
	iv, err := base64.StdEncoding.DecodeString(p.IV)
	if err != nil {
		return fmt.Errorf("%w: malformed iv: %v", ErrDecode, err)
	}
	if len(iv) != aes.BlockSize {
		return fmt.Errorf("%w: iv is %d bytes, want %d", ErrDecode, len(iv), aes.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: ciphertext length %d not a block multiple", ErrDecode, len(ciphertext))
	}

	block, err := aes.NewCipher(bundle.EncryptionKey)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return err
	}

	if err = json.Unmarshal(unpadded, target); err != nil {
		return fmt.Errorf("%w: unmarshal payload: %v", ErrDecode, err)
	}
	return nil
}

// EncryptRecord encrypts v and wraps it as a ready-to-upload record with
// the given id. The record's Modified field is left for the server to set.
func EncryptRecord(id string, v any, bundle models.KeyBundle) (models.Record, error) {
	envelope, err := Encrypt(v, bundle)
	if err != nil {
		return models.Record{}, err
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return models.Record{}, fmt.Errorf("marshal envelope: %w", err)
	}

	return models.Record{ID: id, Payload: string(payload)}, nil
}

// DecryptRecord opens a downloaded record's payload into target.
func DecryptRecord(rec models.Record, bundle models.KeyBundle, target any) error {
	var envelope models.EncryptedPayload
	if err := json.Unmarshal([]byte(rec.Payload), &envelope); err != nil {
		return fmt.Errorf("%w: record %s has no encrypted payload: %v", ErrDecode, rec.ID, err)
	}
	return Decrypt(envelope, bundle, target)
}

// pkcs7Pad appends PKCS7 padding: the pad length repeated as bytes, with a
// full extra block when len(data) is already a block multiple.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad strips and validates PKCS7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length %d", ErrDecode, len(data))
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("%w: invalid padding byte %d", ErrDecode, n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: inconsistent padding", ErrDecode)
		}
	}
	return data[:len(data)-n], nil
}
