// Package keyring abstracts the platform secret store (macOS Keychain, Windows
// Credential Manager, freedesktop Secret Service) behind a small key/value
// interface. It is the vault's only persistence boundary.
package keyring

import (
	apperrors "github.com/pgquerytool/credvault/internal/errors"
)

// Secret store error definitions.
var (
	// ErrNotFound indicates no entry exists under the requested key name.
	ErrNotFound = apperrors.Wrap(apperrors.ErrNotFound, "keyring entry not found")

	// ErrUnavailable indicates the platform secret store could not be reached,
	// e.g. no session keyring, locked collection, or permission denied.
	ErrUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "keyring unavailable")

	// ErrListUnsupported indicates the backend cannot enumerate its entries.
	// The OS keyring APIs expose lookup by name only.
	ErrListUnsupported = apperrors.Wrap(apperrors.ErrUnavailable, "keyring listing not supported")
)

// SecretStore is the interface for platform secret storage.
//
// Implementations persist small named secrets. Values are opaque bytes; the
// vault only ever stores UTF-8 JSON documents, so backends built on
// string-valued OS APIs can store them verbatim.
type SecretStore interface {
	// Set stores value under key, overwriting any existing entry.
	Set(key string, value []byte) error

	// Get retrieves the value stored under key.
	// Returns ErrNotFound if no entry exists.
	Get(key string) ([]byte, error)

	// Delete removes the entry stored under key.
	// Returns ErrNotFound if no entry exists.
	Delete(key string) error

	// List enumerates all key names held by this store.
	// Backends without enumeration support return ErrListUnsupported.
	List() ([]string, error)
}
