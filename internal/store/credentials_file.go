package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vaerksted/ffsync/internal/auth"
	"github.com/vaerksted/ffsync/models"
)

type fileCredentialStore struct {
	path string
}

// NewFileCredentialStore keeps the credential bundle in a mode-0600 JSON
// file. It is the fallback for hosts without a usable keyring.
func NewFileCredentialStore(path string) auth.CredentialStore {
	return &fileCredentialStore{path: path}
}

func (s *fileCredentialStore) Get() (models.SyncCredentials, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.SyncCredentials{}, false, nil
		}
		return models.SyncCredentials{}, false, fmt.Errorf("read credentials file: %w", err)
	}

	var creds models.SyncCredentials
	if err = json.Unmarshal(data, &creds); err != nil {
		return models.SyncCredentials{}, false, fmt.Errorf("decode credentials file: %w", err)
	}
	return creds, true, nil
}

func (s *fileCredentialStore) Store(creds models.SyncCredentials) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credentials dir: %w", err)
		}
	}

	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err = os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}

func (s *fileCredentialStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	return nil
}
