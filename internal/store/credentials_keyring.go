package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/vaerksted/ffsync/internal/auth"
	"github.com/vaerksted/ffsync/models"
)

// keyringAccount is the fixed account name the credential blob is filed
// under; the service name separates installations.
const keyringAccount = "sync-credentials"

type keyringCredentialStore struct {
	service string
}

// NewKeyringCredentialStore keeps the credential bundle in the OS keyring
// as a single JSON secret. Use NewFileCredentialStore where no keyring
// daemon is available.
func NewKeyringCredentialStore(service string) auth.CredentialStore {
	return &keyringCredentialStore{service: service}
}

func (s *keyringCredentialStore) Get() (models.SyncCredentials, bool, error) {
	secret, err := keyring.Get(s.service, keyringAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return models.SyncCredentials{}, false, nil
		}
		return models.SyncCredentials{}, false, fmt.Errorf("read keyring: %w", err)
	}

	var creds models.SyncCredentials
	if err = json.Unmarshal([]byte(secret), &creds); err != nil {
		return models.SyncCredentials{}, false, fmt.Errorf("decode stored credentials: %w", err)
	}
	return creds, true, nil
}

func (s *keyringCredentialStore) Store(creds models.SyncCredentials) error {
	payload, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err = keyring.Set(s.service, keyringAccount, string(payload)); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

func (s *keyringCredentialStore) Clear() error {
	err := keyring.Delete(s.service, keyringAccount)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("clear keyring: %w", err)
	}
	return nil
}
