// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"time"
)

// Default endpoints and tuning values applied by validate when the merged
// configuration leaves a field empty.
const (
	DefaultAuthServerURL  = "https://api.accounts.firefox.com/v1"
	DefaultTokenServerURL = "https://token.services.mozilla.com/1.0/sync/1.5"

	DefaultSyncInterval   = 5 * time.Minute
	DefaultRequestTimeout = 30 * time.Second
	DefaultCertDuration   = time.Hour

	// DefaultPushRate is the token-bucket rate (record writes per second)
	// applied between successive record pushes.
	DefaultPushRate = 10
)

// StructuredConfig is the top-level configuration container for ffsync.
// It is populated by merging values from environment variables,
// command-line flags, and an optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
//   - json      — field name inside the optional JSON config file.
type StructuredConfig struct {
	// Account holds identity-provider and token-server settings.
	Account Account `envPrefix:"ACCOUNT_" json:"account"`

	// Sync holds cycle scheduling and pacing settings.
	Sync Sync `envPrefix:"SYNC_" json:"sync"`

	// Storage holds local persistence settings: the sqlite database,
	// the watermark file and the credential store backend.
	Storage Storage `envPrefix:"STORAGE_" json:"storage"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG" json:"-"`
}

// Account holds the endpoints of the two external identity services.
type Account struct {
	// AuthServerURL is the accounts server base URL (login, key fetch,
	// certificate signing).
	// Env: ACCOUNT_AUTH_SERVER_URL
	AuthServerURL string `env:"AUTH_SERVER_URL" json:"auth_server_url"`

	// TokenServerURL is the token-server endpoint where browser-id
	// assertions are exchanged for storage credentials.
	// Env: ACCOUNT_TOKEN_SERVER_URL
	TokenServerURL string `env:"TOKEN_SERVER_URL" json:"token_server_url"`

	// CertDuration is the requested validity of signed identity
	// certificates (e.g. "1h").
	// Env: ACCOUNT_CERT_DURATION
	CertDuration time.Duration `env:"CERT_DURATION" json:"cert_duration"`
}

// Sync holds scheduling and pacing settings for the sync worker.
type Sync struct {
	// Interval is how often the background worker runs a full cycle.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL" json:"interval"`

	// RequestTimeout bounds every outbound HTTP request.
	// Env: SYNC_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" json:"request_timeout"`

	// PushRate caps record writes per second against the storage server.
	// Env: SYNC_PUSH_RATE
	PushRate float64 `env:"PUSH_RATE" json:"push_rate"`

	// RunOnce makes the runner perform a single cycle and exit.
	// Flag: -once
	RunOnce bool `env:"ONCE" json:"run_once"`
}

// Storage holds local persistence settings.
type Storage struct {
	// DBPath is the sqlite database file for the local collection stores.
	// Env: STORAGE_DB_PATH
	DBPath string `env:"DB_PATH" json:"db_path"`

	// WatermarkPath is the JSON file holding per-collection watermarks.
	// Env: STORAGE_WATERMARK_PATH
	WatermarkPath string `env:"WATERMARK_PATH" json:"watermark_path"`

	// KeyringService is the secret-service entry name for credentials.
	// Env: STORAGE_KEYRING_SERVICE
	KeyringService string `env:"KEYRING_SERVICE" json:"keyring_service"`

	// CredentialsPath, when set, selects the file-backed credential store
	// instead of the OS keyring (headless deployments, tests).
	// Env: STORAGE_CREDENTIALS_PATH
	CredentialsPath string `env:"CREDENTIALS_PATH" json:"credentials_path"`
}

// validate applies defaults to empty fields and rejects values the runtime
// cannot work with.
func (c *StructuredConfig) validate() error {
	if c.Account.AuthServerURL == "" {
		c.Account.AuthServerURL = DefaultAuthServerURL
	}
	if c.Account.TokenServerURL == "" {
		c.Account.TokenServerURL = DefaultTokenServerURL
	}
	if c.Account.CertDuration <= 0 {
		c.Account.CertDuration = DefaultCertDuration
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.RequestTimeout <= 0 {
		c.Sync.RequestTimeout = DefaultRequestTimeout
	}
	if c.Sync.PushRate < 0 {
		return fmt.Errorf("%w: push rate must not be negative", ErrValidation)
	}
	if c.Sync.PushRate == 0 {
		c.Sync.PushRate = DefaultPushRate
	}
	if c.Storage.KeyringService == "" {
		c.Storage.KeyringService = "ffsync"
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("%w: storage db path is required", ErrValidation)
	}
	if c.Storage.WatermarkPath == "" {
		return fmt.Errorf("%w: watermark path is required", ErrValidation)
	}
	return nil
}

// GetConfig builds the merged, validated configuration from environment
// variables, command-line flags and the optional JSON file.
func GetConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
