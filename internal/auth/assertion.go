package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vaerksted/ffsync/internal/adapter"
)

// browserIDKey is the ephemeral keypair certified by the accounts server.
// One keypair is minted per storage-token refresh and discarded afterwards.
type browserIDKey struct {
	private *rsa.PrivateKey
}

func newBrowserIDKey() (*browserIDKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate browser-id keypair: %w", err)
	}
	return &browserIDKey{private: key}, nil
}

// PublicKey renders the keypair in the decimal JWK style the
// /certificate/sign endpoint expects.
func (k *browserIDKey) PublicKey() adapter.PublicKey {
	return adapter.PublicKey{
		Algorithm: "RS",
		N:         k.private.N.String(),
		E:         fmt.Sprintf("%d", k.private.E),
	}
}

// Assertion couples the server-issued certificate with a self-signed
// claim of the audience, producing the backed identity assertion the
// token server consumes: "<certificate>~<assertion JWT>".
//
// Browser-id expiry claims are in milliseconds, unlike RFC 7519.
func (k *browserIDKey) Assertion(certificate, audience string, validity time.Duration) (string, error) {
	exp := time.Now().Add(validity).UnixMilli()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"exp": exp,
		"aud": audience,
	})
	signed, err := token.SignedString(k.private)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	return certificate + "~" + signed, nil
}

// audienceOf reduces a token-server URL to the origin the assertion must
// name as its audience.
func audienceOf(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid token server url %q", rawurl)
	}
	return u.Scheme + "://" + u.Host, nil
}
