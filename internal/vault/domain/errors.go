// Package domain defines the credential vault's core models and error taxonomy.
package domain

import (
	"github.com/pgquerytool/credvault/internal/errors"
)

// Vault error definitions.
//
// Every failure mode of the vault maps to exactly one of these sentinels so
// callers can branch with errors.Is. None of them ever carry key bytes or
// plaintext password material.
var (
	// ErrKeyring indicates the platform secret store is unreachable, locked,
	// or denied access. Recoverable by the caller after unlocking the OS
	// keyring; never retried internally.
	ErrKeyring = errors.Wrap(errors.ErrUnavailable, "keyring error")

	// ErrEncryption indicates a cipher-level failure while encrypting.
	// Not expected in normal operation.
	ErrEncryption = errors.Wrap(errors.ErrInvalidInput, "encryption error")

	// ErrDecryption indicates AEAD authentication failed: wrong key, corrupted
	// data, or tampering. A user-visible condition ("please re-enter your
	// credentials"), not a crash.
	ErrDecryption = errors.Wrap(errors.ErrInvalidInput, "decryption error")

	// ErrSerialization indicates a malformed intermediate record, either a
	// version mismatch or a corrupted stored blob.
	ErrSerialization = errors.Wrap(errors.ErrInvalidInput, "serialization error")

	// ErrProfileNotFound indicates no credentials are stored for the profile.
	// A normal, expected condition, not a security failure.
	ErrProfileNotFound = errors.Wrap(errors.ErrNotFound, "profile not found")

	// ErrInvalidCredentialsFormat indicates decrypted bytes do not parse as the
	// expected credentials structure. Treated like ErrDecryption for user
	// messaging.
	ErrInvalidCredentialsFormat = errors.Wrap(errors.ErrInvalidInput, "invalid credentials format")

	// ErrMasterKey indicates master key generation, storage, or rotation
	// failed. Rotation failures leave the previous key active.
	ErrMasterKey = errors.Wrap(errors.ErrUnavailable, "master key error")

	// ErrInvalidKeySize indicates key material is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrUnsupportedAlgorithm indicates an unknown cipher algorithm was requested.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")
)
