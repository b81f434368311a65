package keyring

import (
	"errors"
	"fmt"

	gokeyring "github.com/zalando/go-keyring"
)

// SystemStore implements SecretStore on top of the OS secret store via
// zalando/go-keyring (Keychain on macOS, Credential Manager on Windows,
// Secret Service / kwallet over D-Bus on Linux).
//
// All entries are registered under a single service name so they stay
// grouped together in the platform's credential UI.
type SystemStore struct {
	service string
}

// NewSystemStore creates a SecretStore bound to the given service name.
func NewSystemStore(service string) *SystemStore {
	return &SystemStore{service: service}
}

// Set stores value under key, overwriting any existing entry.
func (s *SystemStore) Set(key string, value []byte) error {
	if err := gokeyring.Set(s.service, key, string(value)); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Get retrieves the value stored under key.
func (s *SystemStore) Get(key string) ([]byte, error) {
	value, err := gokeyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return []byte(value), nil
}

// Delete removes the entry stored under key.
func (s *SystemStore) Delete(key string) error {
	if err := gokeyring.Delete(s.service, key); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// List always returns ErrListUnsupported: the OS keyring APIs only support
// lookup by name. The vault maintains its own profile index on top.
func (s *SystemStore) List() ([]string, error) {
	return nil, ErrListUnsupported
}
