package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "studyflow"

// Well-known credential keys.
const (
	KeyIMAPPassword    = "imap-password"
	KeyAnthropicAPIKey = "anthropic-api-key"
)

// GmailTokenKey is the key under which a user's Gmail OAuth token is kept.
func GmailTokenKey(userID string) string {
	return "gmail-token-" + userID
}

// ErrNotFound is returned when a credential is in neither the
// environment nor the keyring.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets. Environment variables named
// STUDYFLOW_<KEY> (dashes become underscores) take precedence over the
// keyring so servers can run without an OS keychain.
type Store struct {
	ring keyring.Keyring
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the system keyring, falling back to an encrypted file
// backend under ~/.config/studyflow/credentials.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/studyflow/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("studyflow-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// EnvName returns the environment variable consulted for key.
func EnvName(key string) string {
	return "STUDYFLOW_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	if v, ok := os.LookupEnv(EnvName(key)); ok && v != "" {
		return v, nil
	}

	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the keyring.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key from the keyring.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
