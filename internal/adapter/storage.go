package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vaerksted/ffsync/internal/hawk"
	"github.com/vaerksted/ffsync/models"
)

type storageClient struct {
	client   *resty.Client
	endpoint string
	creds    hawk.Credentials
}

// NewStorageClient builds a [StorageClient] for the per-account storage
// endpoint returned by the token server. creds are the token's HAWK
// credentials; both live only as long as the storage token.
func NewStorageClient(endpoint string, creds hawk.Credentials, timeout time.Duration) StorageClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cli := resty.New().SetTimeout(timeout)

	return &storageClient{
		client:   cli,
		endpoint: strings.TrimRight(endpoint, "/"),
		creds:    creds,
	}
}

func (s *storageClient) InfoCollections(ctx context.Context) (models.Watermarks, error) {
	resp, err := s.signedRequest(ctx, "GET", s.endpoint+"/info/collections", nil)
	if err != nil {
		return nil, err
	}

	wm := models.Watermarks{}
	if err = json.Unmarshal(resp.Body(), &wm); err != nil {
		return nil, fmt.Errorf("decode info/collections: %w", err)
	}
	return wm, nil
}

func (s *storageClient) GetRecord(ctx context.Context, collection, id string) (models.Record, error) {
	resp, err := s.signedRequest(ctx, "GET", s.recordURL(collection, id), nil)
	if err != nil {
		return models.Record{}, err
	}

	var rec models.Record
	if err = json.Unmarshal(resp.Body(), &rec); err != nil {
		return models.Record{}, fmt.Errorf("decode record %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

func (s *storageClient) GetRecords(ctx context.Context, collection string, params RecordParams) ([]models.Record, error) {
	resp, err := s.signedRequest(ctx, "GET", s.collectionURL(collection, params), nil)
	if err != nil {
		return nil, err
	}

	var records []models.Record
	if params.Full {
		if err = json.Unmarshal(resp.Body(), &records); err != nil {
			return nil, fmt.Errorf("decode records for %s: %w", collection, err)
		}
		return records, nil
	}

	// Without full=1 the server answers with bare record ids.
	var ids []string
	if err = json.Unmarshal(resp.Body(), &ids); err != nil {
		return nil, fmt.Errorf("decode record ids for %s: %w", collection, err)
	}
	records = make([]models.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.Record{ID: id})
	}
	return records, nil
}

func (s *storageClient) PutRecord(ctx context.Context, collection string, record models.Record) (float64, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("marshal record %s/%s: %w", collection, record.ID, err)
	}

	resp, err := s.signedRequest(ctx, "PUT", s.recordURL(collection, record.ID), body)
	if err != nil {
		return 0, err
	}

	modified, err := strconv.ParseFloat(strings.TrimSpace(string(resp.Body())), 64)
	if err != nil {
		return 0, fmt.Errorf("decode put response for %s/%s: %w", collection, record.ID, err)
	}
	return modified, nil
}

func (s *storageClient) DeleteRecord(ctx context.Context, collection, id string) error {
	_, err := s.signedRequest(ctx, "DELETE", s.recordURL(collection, id), nil)
	return err
}

func (s *storageClient) DeleteAll(ctx context.Context) error {
	_, err := s.signedRequest(ctx, "DELETE", s.endpoint+"/", nil)
	return err
}

// signedRequest performs one HAWK-signed HTTP round trip and funnels the
// outcome through mapHTTPError.
func (s *storageClient) signedRequest(ctx context.Context, method, rawurl string, body []byte) (*resty.Response, error) {
	opts := &hawk.Options{}
	if body != nil {
		opts.ContentType = "application/json"
		opts.Payload = body
	}

	header, err := hawk.Header(method, rawurl, s.creds, opts)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req := s.client.R().
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

func (s *storageClient) recordURL(collection, id string) string {
	return fmt.Sprintf("%s/storage/%s/%s", s.endpoint, collection, id)
}

func (s *storageClient) collectionURL(collection string, params RecordParams) string {
	u := fmt.Sprintf("%s/storage/%s", s.endpoint, collection)

	query := make([]string, 0, 6)
	if params.Full {
		query = append(query, "full=1")
	}
	if len(params.IDs) > 0 {
		query = append(query, "ids="+strings.Join(params.IDs, ","))
	}
	if params.Newer > 0 {
		query = append(query, fmt.Sprintf("newer=%.2f", params.Newer))
	}
	if params.Limit > 0 {
		query = append(query, fmt.Sprintf("limit=%d", params.Limit))
	}
	if params.Offset > 0 {
		query = append(query, fmt.Sprintf("offset=%d", params.Offset))
	}
	if params.Sort != "" {
		query = append(query, "sort="+params.Sort)
	}

	if len(query) > 0 {
		u += "?" + strings.Join(query, "&")
	}
	return u
}
