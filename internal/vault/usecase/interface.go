package usecase

import (
	"context"

	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
)

// VaultUseCase stores database connection credentials encrypted under the
// master key, one keyring entry per connection profile.
type VaultUseCase interface {
	// StoreCredentials encrypts and saves credentials for the profile,
	// overwriting any existing entry. The password buffer is zeroized
	// before the call returns, on success and on failure.
	StoreCredentials(ctx context.Context, profileID, username string, password []byte) error
	// RetrieveCredentials decrypts and returns the credentials stored for
	// the profile. The caller owns the returned password and must call
	// Zeroize when done with it.
	RetrieveCredentials(ctx context.Context, profileID string) (*vaultDomain.Credentials, error)
	// UpdateCredentials replaces the credentials for an existing profile.
	// Unlike StoreCredentials it fails with ErrProfileNotFound when the
	// profile has no stored entry.
	UpdateCredentials(ctx context.Context, profileID, username string, password []byte) error
	// DeleteCredentials removes the stored entry for the profile.
	DeleteCredentials(ctx context.Context, profileID string) error
	// HasCredentials reports whether the profile has a stored entry. It
	// never returns an error; any failure reads as false.
	HasCredentials(ctx context.Context, profileID string) bool
	// ListStoredProfiles returns the ids of every profile with stored
	// credentials, sorted.
	ListStoredProfiles(ctx context.Context) ([]string, error)
	// RotateMasterKey generates a new master key and rewraps every stored
	// entry under it. The report is returned even on failure; when the
	// error wraps ErrRotationIncomplete the previous key is retained and
	// the report names the profiles that still need migration.
	RotateMasterKey(ctx context.Context) (*vaultDomain.RotationReport, error)
	// Close zeroizes cached key material.
	Close()
}
