package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vaerksted/ffsync/models"
)

type tokenClient struct {
	client   *resty.Client
	endpoint string
}

// NewTokenClient builds a [TokenClient] for the token-server endpoint
// (e.g. "https://token.services.mozilla.com/1.0/sync/1.5").
func NewTokenClient(endpoint string, timeout time.Duration) TokenClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &tokenClient{
		client:   resty.New().SetTimeout(timeout),
		endpoint: endpoint,
	}
}

func (t *tokenClient) Exchange(ctx context.Context, assertion, clientState string) (models.StorageToken, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "BrowserID "+assertion).
		SetHeader("X-Client-State", clientState).
		Get(t.endpoint)
	if err = mapHTTPError(resp, err); err != nil {
		return models.StorageToken{}, fmt.Errorf("token exchange: %w", err)
	}

	var token models.StorageToken
	if err = json.Unmarshal(resp.Body(), &token); err != nil {
		return models.StorageToken{}, fmt.Errorf("decode storage token: %w", err)
	}
	return token, nil
}
