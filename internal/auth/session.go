package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vaerksted/ffsync/internal/adapter"
	"github.com/vaerksted/ffsync/internal/crypto"
	"github.com/vaerksted/ffsync/internal/hawk"
	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

// CredentialStore persists the account's secret bundle between runs. The
// keyring-backed and file-backed implementations live in internal/store.
type CredentialStore interface {
	// Get returns the stored credentials; ok is false when none exist.
	Get() (creds models.SyncCredentials, ok bool, err error)
	// Store persists the credentials, replacing any previous bundle.
	Store(creds models.SyncCredentials) error
	// Clear removes the stored credentials.
	Clear() error
}

// StorageSession is everything a sync cycle needs to talk to the storage
// node: the token-server grant and the key bundle derived from kB that
// protects the crypto/keys record.
type StorageSession struct {
	Token   models.StorageToken
	SyncKey models.KeyBundle
	issued  time.Time
}

// HawkCredentials returns the session's storage-request signing material.
func (s *StorageSession) HawkCredentials() hawk.Credentials {
	return hawk.Credentials{
		ID:        s.Token.ID,
		Key:       []byte(s.Token.Key),
		Algorithm: s.Token.HashAlg,
	}
}

// Expired reports whether the token's validity window has passed. A small
// margin keeps a cycle from starting with a token about to lapse.
func (s *StorageSession) Expired() bool {
	return time.Now().After(s.Token.ExpiresAt(s.issued).Add(-30 * time.Second))
}

// Manager owns the account session lifecycle: sign-in, credential
// persistence, session validation with transparent re-login, and the
// assertion dance that yields storage credentials. All state is explicit;
// callers hold a *Manager instead of consulting process-global session
// variables.
type Manager struct {
	accounts       adapter.AccountClient
	tokens         adapter.TokenClient
	credentials    CredentialStore
	tokenServerURL string
	certDuration   time.Duration
	log            *logger.Logger

	mu      sync.Mutex
	cached  *models.SyncCredentials
	storage *StorageSession
}

// NewManager wires a session manager. certDuration bounds the validity of
// requested identity certificates.
func NewManager(accounts adapter.AccountClient, tokens adapter.TokenClient, credentials CredentialStore, tokenServerURL string, certDuration time.Duration, log *logger.Logger) *Manager {
	if certDuration <= 0 {
		certDuration = time.Hour
	}
	return &Manager{
		accounts:       accounts,
		tokens:         tokens,
		credentials:    credentials,
		tokenServerURL: tokenServerURL,
		certDuration:   certDuration,
		log:            log,
	}
}

// SignIn performs a fresh credential login, fetches and unwraps the
// account's class-B key, and persists the resulting bundle in the
// credential store.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	creds, err := m.login(ctx, email, password)
	if err != nil {
		return err
	}

	if err = m.credentials.Store(creds); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	m.mu.Lock()
	m.cached = &creds
	m.storage = nil
	m.mu.Unlock()

	m.log.Info().Str("email", email).Msg("signed in")
	return nil
}

// SignOut clears stored credentials and forgets all session state,
// invalidating the key bundle for good.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	m.cached = nil
	m.storage = nil
	m.mu.Unlock()

	if err := m.credentials.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// StorageSession returns a valid storage session, reusing the cached one
// while its token lives. An expired or rejected account session triggers
// exactly one transparent re-login with the stored credentials before the
// failure surfaces as [ErrAuthExpired].
func (m *Manager) StorageSession(ctx context.Context) (*StorageSession, error) {
	m.mu.Lock()
	if m.storage != nil && !m.storage.Expired() {
		s := m.storage
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	creds, err := m.currentCredentials()
	if err != nil {
		return nil, err
	}

	sessionCreds, err := sessionCredentials(creds.SessionToken)
	if err != nil {
		return nil, err
	}

	if err = m.accounts.SessionStatus(ctx, sessionCreds); err != nil {
		if !errors.Is(err, adapter.ErrUnauthorized) {
			return nil, err
		}

		// The stored session token is dead. Re-login once with the
		// stored credentials instead of bothering the user.
		m.log.Warn().Msg("session token rejected, re-logging in")
		refreshed, loginErr := m.login(ctx, creds.Email, creds.Password)
		if loginErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthExpired, loginErr)
		}
		if err = m.credentials.Store(refreshed); err != nil {
			return nil, fmt.Errorf("store refreshed credentials: %w", err)
		}

		m.mu.Lock()
		m.cached = &refreshed
		m.mu.Unlock()
		creds = refreshed
	}

	session, err := m.newStorageSession(ctx, creds)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.storage = session
	m.mu.Unlock()
	return session, nil
}

// login runs the full onepw flow and returns a complete credential bundle.
func (m *Manager) login(ctx context.Context, email, password string) (models.SyncCredentials, error) {
	stretched := quickStretch(email, password)
	authPW, err := deriveAuthPW(stretched)
	if err != nil {
		return models.SyncCredentials{}, err
	}

	resp, err := m.accounts.Login(ctx, email, authPW)
	if err != nil {
		return models.SyncCredentials{}, fmt.Errorf("account login: %w", err)
	}
	if !resp.Verified {
		return models.SyncCredentials{}, ErrUnverifiedAccount
	}

	keyB, err := m.fetchKeyB(ctx, resp.KeyFetchToken, stretched)
	if err != nil {
		return models.SyncCredentials{}, err
	}

	return models.SyncCredentials{
		Email:        email,
		Password:     password,
		UID:          resp.UID,
		SessionToken: resp.SessionToken,
		KeyB:         keyB,
	}, nil
}

// fetchKeyB downloads the account key bundle and unwraps kB with the
// password-derived unwrap key.
func (m *Manager) fetchKeyB(ctx context.Context, keyFetchToken, stretched []byte) ([]byte, error) {
	st, err := keyFetchCredentials(keyFetchToken)
	if err != nil {
		return nil, err
	}

	bundle, err := m.accounts.FetchKeys(ctx, st.creds)
	if err != nil {
		return nil, fmt.Errorf("fetch account keys: %w", err)
	}

	_, wrapKB, err := unbundleKeys(st, bundle)
	if err != nil {
		return nil, err
	}

	unwrapKey, err := deriveUnwrapBKey(stretched)
	if err != nil {
		return nil, err
	}
	return unwrapKeyB(wrapKB, unwrapKey), nil
}

// newStorageSession certifies a fresh keypair, mints the assertion, and
// exchanges it for a storage token.
func (m *Manager) newStorageSession(ctx context.Context, creds models.SyncCredentials) (*StorageSession, error) {
	sessionCreds, err := sessionCredentials(creds.SessionToken)
	if err != nil {
		return nil, err
	}

	key, err := newBrowserIDKey()
	if err != nil {
		return nil, err
	}

	cert, err := m.accounts.SignCertificate(ctx, sessionCreds, key.PublicKey(), m.certDuration.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("certificate sign: %w", err)
	}

	audience, err := audienceOf(m.tokenServerURL)
	if err != nil {
		return nil, err
	}
	assertion, err := key.Assertion(cert, audience, m.certDuration)
	if err != nil {
		return nil, err
	}

	token, err := m.tokens.Exchange(ctx, assertion, ClientState(creds.KeyB))
	if err != nil {
		return nil, fmt.Errorf("storage token exchange: %w", err)
	}

	syncKey, err := crypto.DeriveBundle(creds.KeyB, crypto.SyncKeyInfo)
	if err != nil {
		return nil, err
	}

	m.log.Debug().Str("endpoint", token.APIEndpoint).Msg("storage session established")
	return &StorageSession{Token: token, SyncKey: syncKey, issued: time.Now()}, nil
}

// currentCredentials returns the in-memory credentials, falling back to
// the credential store.
func (m *Manager) currentCredentials() (models.SyncCredentials, error) {
	m.mu.Lock()
	cached := m.cached
	m.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	creds, ok, err := m.credentials.Get()
	if err != nil {
		return models.SyncCredentials{}, fmt.Errorf("load credentials: %w", err)
	}
	if !ok {
		return models.SyncCredentials{}, ErrNotSignedIn
	}

	m.mu.Lock()
	m.cached = &creds
	m.mu.Unlock()
	return creds, nil
}
