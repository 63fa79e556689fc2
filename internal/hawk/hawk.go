// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package hawk builds HAWK v1 Authorization headers for outbound HTTP
// requests. Both the storage server and the accounts server authenticate
// requests with this scheme, using per-session id/key credentials.
package hawk

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Credentials identify one authenticated party: an opaque key identifier
// and the shared MAC key. Only the sha256 algorithm is supported.
type Credentials struct {
	ID        string
	Key       []byte
	Algorithm string
}

// Options carries the per-request signing inputs. Zero values are filled
// in by Header: Timestamp defaults to the current time and Nonce to a
// fresh random value. Payload and ContentType are only consulted together;
// when Payload is non-nil the request body is covered by a payload hash.
type Options struct {
	Timestamp   int64
	Nonce       string
	Ext         string
	ContentType string
	Payload     []byte
}

var ErrUnsupportedAlgorithm = errors.New("hawk: unsupported algorithm")

// Header computes the Authorization header value for the given request.
func Header(method, rawurl string, creds Credentials, opts *Options) (string, error) {
	if creds.Algorithm != "" && creds.Algorithm != "sha256" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, creds.Algorithm)
	}

	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("hawk: parse url: %w", err)
	}

	if opts == nil {
		opts = &Options{}
	}
	ts := opts.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	nonce := opts.Nonce
	if nonce == "" {
		if nonce, err = newNonce(); err != nil {
			return "", err
		}
	}

	hash := ""
	if opts.Payload != nil {
		hash = PayloadHash(opts.ContentType, opts.Payload)
	}

	mac := requestMAC(creds.Key, macInput{
		ts:     ts,
		nonce:  nonce,
		method: strings.ToUpper(method),
		uri:    requestURI(u),
		host:   strings.ToLower(u.Hostname()),
		port:   requestPort(u),
		hash:   hash,
		ext:    opts.Ext,
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, `Hawk id="%s", ts="%d", nonce="%s"`, creds.ID, ts, nonce)
	if hash != "" {
		fmt.Fprintf(&sb, `, hash="%s"`, hash)
	}
	if opts.Ext != "" {
		fmt.Fprintf(&sb, `, ext="%s"`, opts.Ext)
	}
	fmt.Fprintf(&sb, `, mac="%s"`, mac)

	return sb.String(), nil
}

// PayloadHash computes the HAWK payload hash: base64 of
// SHA-256("hawk.1.payload\n<content-type>\n<body>\n"). Any content-type
// parameters (e.g. "; charset=utf-8") are excluded, per the scheme.
func PayloadHash(contentType string, payload []byte) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))

	h := sha256.New()
	h.Write([]byte("hawk.1.payload\n"))
	h.Write([]byte(ct))
	h.Write([]byte("\n"))
	h.Write(payload)
	h.Write([]byte("\n"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

type macInput struct {
	ts     int64
	nonce  string
	method string
	uri    string
	host   string
	port   string
	hash   string
	ext    string
}

func requestMAC(key []byte, in macInput) string {
	normalized := fmt.Sprintf("hawk.1.header\n%d\n%s\n%s\n%s\n%s\n%s\n%s\n%s\n",
		in.ts, in.nonce, in.method, in.uri, in.host, in.port, in.hash, in.ext)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(normalized))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func requestURI(u *url.URL) string {
	uri := u.EscapedPath()
	if uri == "" {
		uri = "/"
	}
	if u.RawQuery != "" {
		uri += "?" + u.RawQuery
	}
	return uri
}

func requestPort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

func newNonce() (string, error) {
	raw := make([]byte, 5)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("hawk: generate nonce: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
