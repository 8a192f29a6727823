package secrets

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// ErrKeyNotFound is returned by RetrieveKey when nothing is stored under the name.
var ErrKeyNotFound = errors.New("secret not found")

// Store keeps small secrets, such as the database passphrase, in the
// platform secret store.
type Store interface {
	StoreKey(name, value string) error
	RetrieveKey(name string) (string, error)
	RemoveKey(name string) error
	IsAvailable() bool
}

// KeyringStore implements Store on top of a keyring backend
// (macOS keychain, Secret Service, Windows credential manager, or files).
type KeyringStore struct {
	ring keyring.Keyring
}

// Open opens the platform keyring for serviceName. fileDir enables the
// encrypted-file fallback backend when no native backend is usable.
func Open(serviceName, fileDir string) (*KeyringStore, error) {
	cfg := keyring.Config{
		ServiceName:              serviceName,
		KeychainName:             serviceName,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  serviceName,
		KWalletAppID:             serviceName,
		KWalletFolder:            serviceName,
		WinCredPrefix:            serviceName,
	}
	if fileDir != "" {
		cfg.FileDir = fileDir
		cfg.FilePasswordFunc = keyring.TerminalPrompt
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening secret store: %w", err)
	}
	return &KeyringStore{ring: ring}, nil
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) StoreKey(name, value string) error {
	return s.ring.Set(keyring.Item{
		Key:         name,
		Data:        []byte(value),
		Label:       name,
		Description: "propertyhub secret",
	})
}

func (s *KeyringStore) RetrieveKey(name string) (string, error) {
	item, err := s.ring.Get(name)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	if len(item.Data) == 0 {
		return "", ErrKeyNotFound
	}
	return string(item.Data), nil
}

func (s *KeyringStore) RemoveKey(name string) error {
	err := s.ring.Remove(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *KeyringStore) IsAvailable() bool {
	if s == nil || s.ring == nil {
		return false
	}
	_, err := s.ring.Keys()
	return err == nil
}

// Unavailable is used when no platform backend could be opened. Every
// lookup fails, so an encrypted store refuses to open instead of guessing.
type Unavailable struct {
	Err error
}

func (u Unavailable) StoreKey(string, string) error { return u.err() }

func (u Unavailable) RetrieveKey(string) (string, error) { return "", ErrKeyNotFound }

func (u Unavailable) RemoveKey(string) error { return u.err() }

func (u Unavailable) IsAvailable() bool { return false }

func (u Unavailable) err() error {
	if u.Err != nil {
		return fmt.Errorf("secret store unavailable: %w", u.Err)
	}
	return errors.New("secret store unavailable")
}
