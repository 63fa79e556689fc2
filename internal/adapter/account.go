package adapter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vaerksted/ffsync/internal/hawk"
)

type accountClient struct {
	client  *resty.Client
	baseURL string
}

// NewAccountClient builds an [AccountClient] for the accounts server base
// URL (e.g. "https://api.accounts.firefox.com/v1").
func NewAccountClient(baseURL string, timeout time.Duration) AccountClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &accountClient{
		client:  resty.New().SetTimeout(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (a *accountClient) Login(ctx context.Context, email string, authPW []byte) (LoginResponse, error) {
	body := map[string]string{
		"email":  email,
		"authPW": hex.EncodeToString(authPW),
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(a.baseURL + "/account/login?keys=true")
	if err = mapHTTPError(resp, err); err != nil {
		return LoginResponse{}, fmt.Errorf("account login: %w", err)
	}

	var out struct {
		UID           string `json:"uid"`
		SessionToken  string `json:"sessionToken"`
		KeyFetchToken string `json:"keyFetchToken"`
		Verified      bool   `json:"verified"`
	}
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return LoginResponse{}, fmt.Errorf("decode login response: %w", err)
	}

	sessionToken, err := hex.DecodeString(out.SessionToken)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("decode session token: %w", err)
	}
	keyFetchToken, err := hex.DecodeString(out.KeyFetchToken)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("decode key fetch token: %w", err)
	}

	return LoginResponse{
		UID:           out.UID,
		SessionToken:  sessionToken,
		KeyFetchToken: keyFetchToken,
		Verified:      out.Verified,
	}, nil
}

func (a *accountClient) FetchKeys(ctx context.Context, creds hawk.Credentials) ([]byte, error) {
	resp, err := a.signedRequest(ctx, "GET", a.baseURL+"/account/keys", creds, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch keys: %w", err)
	}

	var out struct {
		Bundle string `json:"bundle"`
	}
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode key bundle response: %w", err)
	}

	bundle, err := hex.DecodeString(out.Bundle)
	if err != nil {
		return nil, fmt.Errorf("decode key bundle: %w", err)
	}
	return bundle, nil
}

func (a *accountClient) SignCertificate(ctx context.Context, creds hawk.Credentials, publicKey PublicKey, duration int64) (string, error) {
	body, err := json.Marshal(map[string]any{
		"publicKey": publicKey,
		"duration":  duration,
	})
	if err != nil {
		return "", fmt.Errorf("marshal certificate request: %w", err)
	}

	resp, err := a.signedRequest(ctx, "POST", a.baseURL+"/certificate/sign", creds, body)
	if err != nil {
		return "", fmt.Errorf("sign certificate: %w", err)
	}

	var out struct {
		Cert string `json:"cert"`
	}
	if err = json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode certificate response: %w", err)
	}
	return out.Cert, nil
}

func (a *accountClient) SessionStatus(ctx context.Context, creds hawk.Credentials) error {
	if _, err := a.signedRequest(ctx, "GET", a.baseURL+"/session/status", creds, nil); err != nil {
		return fmt.Errorf("session status: %w", err)
	}
	return nil
}

func (a *accountClient) signedRequest(ctx context.Context, method, rawurl string, creds hawk.Credentials, body []byte) (*resty.Response, error) {
	opts := &hawk.Options{}
	if body != nil {
		opts.ContentType = "application/json"
		opts.Payload = body
	}

	header, err := hawk.Header(method, rawurl, creds, opts)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", header)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, rawurl)
	if err = mapHTTPError(resp, err); err != nil {
		return nil, err
	}
	return resp, nil
}
