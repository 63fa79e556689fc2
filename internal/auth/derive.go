// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vaerksted/ffsync/internal/crypto"
	"github.com/vaerksted/ffsync/internal/hawk"
)

// kdfNamespace prefixes every HKDF info string of the onepw protocol.
const kdfNamespace = "identity.mozilla.com/picl/v1/"

const quickStretchRounds = 1000

func kw(name string) []byte {
	return []byte(kdfNamespace + name)
}

// quickStretch runs the protocol's first-stage PBKDF2 over the account
// password, salted with the account email.
func quickStretch(email, password string) []byte {
	salt := []byte(kdfNamespace + "quickStretch:" + email)
	return pbkdf2.Key([]byte(password), salt, quickStretchRounds, 32, sha256.New)
}

// deriveAuthPW turns the quick-stretched password into the authPW value
// sent to the accounts server at login.
func deriveAuthPW(stretched []byte) ([]byte, error) {
	return crypto.HKDF(stretched, nil, kw("authPW"), 32)
}

// deriveUnwrapBKey derives the local half of the class-B key unwrap.
func deriveUnwrapBKey(stretched []byte) ([]byte, error) {
	return crypto.HKDF(stretched, nil, kw("unwrapBkey"), 32)
}

// sessionCredentials derives HAWK credentials from a raw session token for
// requests like /certificate/sign and /session/status.
func sessionCredentials(sessionToken []byte) (hawk.Credentials, error) {
	material, err := crypto.HKDF(sessionToken, nil, kw("sessionToken"), 64)
	if err != nil {
		return hawk.Credentials{}, err
	}
	return hawk.Credentials{
		ID:        hex.EncodeToString(material[:32]),
		Key:       material[32:],
		Algorithm: "sha256",
	}, nil
}

// keyFetchState is the derived state needed to request and open the
// /account/keys bundle.
type keyFetchState struct {
	creds         hawk.Credentials
	keyRequestKey []byte
}

func keyFetchCredentials(keyFetchToken []byte) (keyFetchState, error) {
	material, err := crypto.HKDF(keyFetchToken, nil, kw("keyFetchToken"), 96)
	if err != nil {
		return keyFetchState{}, err
	}
	return keyFetchState{
		creds: hawk.Credentials{
			ID:        hex.EncodeToString(material[:32]),
			Key:       material[32:64],
			Algorithm: "sha256",
		},
		keyRequestKey: material[64:],
	}, nil
}

// unbundleKeys verifies and opens the 96-byte bundle returned by
// /account/keys: 64 bytes of XOR-masked key material followed by a 32-byte
// HMAC. It returns kA and the still-wrapped kB.
func unbundleKeys(st keyFetchState, bundle []byte) (keyA, wrapKB []byte, err error) {
	if len(bundle) != 96 {
		return nil, nil, fmt.Errorf("%w: key bundle is %d bytes, want 96", ErrBadKeyBundle, len(bundle))
	}

	material, err := crypto.HKDF(st.keyRequestKey, nil, kw("account/keys"), 96)
	if err != nil {
		return nil, nil, err
	}
	respHMACKey := material[:32]
	respXORKey := material[32:]

	ct, tag := bundle[:64], bundle[64:]
	mac := hmac.New(sha256.New, respHMACKey)
	mac.Write(ct)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, nil, fmt.Errorf("%w: hmac mismatch", ErrBadKeyBundle)
	}

	plain := make([]byte, 64)
	for i := range plain {
		plain[i] = ct[i] ^ respXORKey[i]
	}
	return plain[:32], plain[32:], nil
}

// unwrapKeyB removes the password-derived mask from the wrapped kB.
func unwrapKeyB(wrapKB, unwrapBKey []byte) []byte {
	out := make([]byte, len(wrapKB))
	for i := range out {
		out[i] = wrapKB[i] ^ unwrapBKey[i]
	}
	return out
}

// ClientState is the value sent in the X-Client-State header: the first 16
// bytes of SHA-256(kB), hex encoded. The token server uses it to detect
// password resets that rotated kB.
func ClientState(keyB []byte) string {
	sum := sha256.Sum256(keyB)
	return hex.EncodeToString(sum[:16])
}
