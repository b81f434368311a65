package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/pgquerytool/credvault/internal/errors"
	"github.com/pgquerytool/credvault/internal/keyring"
	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
	vaultService "github.com/pgquerytool/credvault/internal/vault/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// faultStore wraps a SecretStore and fails configured operations, so tests can
// exercise keyring failures at precise points.
type faultStore struct {
	keyring.SecretStore
	failSet map[string]error
	failGet map[string]error
}

func newFaultStore(inner keyring.SecretStore) *faultStore {
	return &faultStore{
		SecretStore: inner,
		failSet:     make(map[string]error),
		failGet:     make(map[string]error),
	}
}

func (f *faultStore) Set(key string, value []byte) error {
	if err, ok := f.failSet[key]; ok {
		return err
	}
	return f.SecretStore.Set(key, value)
}

func (f *faultStore) Get(key string) ([]byte, error) {
	if err, ok := f.failGet[key]; ok {
		return nil, err
	}
	return f.SecretStore.Get(key)
}

func newTestVault(t *testing.T, store keyring.SecretStore) VaultUseCase {
	t.Helper()

	keyManager := vaultService.NewMasterKeyManager(store, nil)
	cipher := vaultService.NewCredentialCipher(vaultService.NewAEADManager(), vaultDomain.AESGCM)
	useCase := NewVaultUseCase(store, keyManager, cipher)
	t.Cleanup(useCase.Close)
	return useCase
}

// storedBlob reads a profile entry straight from the backing store.
func storedBlob(t *testing.T, store keyring.SecretStore, sanitizedID string) *vaultDomain.EncryptedBlob {
	t.Helper()

	data, err := store.Get("profile_" + sanitizedID)
	require.NoError(t, err)
	blob, err := vaultDomain.UnmarshalBlob(data)
	require.NoError(t, err)
	return blob
}

func TestVaultUseCase_StoreCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_StoreAndRetrieve", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		err := vault.StoreCredentials(ctx, "prod-db", "admin", []byte("s3cret"))
		require.NoError(t, err)

		creds, err := vault.RetrieveCredentials(ctx, "prod-db")
		require.NoError(t, err)
		defer creds.Zeroize()

		assert.Equal(t, "admin", creds.Username)
		assert.Equal(t, []byte("s3cret"), creds.Password)
		assert.False(t, creds.EncryptedAt.IsZero())
	})

	t.Run("Success_ZeroizesInputPassword", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		password := []byte("wipe-me")
		err := vault.StoreCredentials(ctx, "prod-db", "admin", password)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, len(password)), password)
	})

	t.Run("Success_OverwritesExistingEntry", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "old-user", []byte("old-pass")))
		require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "new-user", []byte("new-pass")))

		creds, err := vault.RetrieveCredentials(ctx, "prod-db")
		require.NoError(t, err)
		defer creds.Zeroize()

		assert.Equal(t, "new-user", creds.Username)
		assert.Equal(t, []byte("new-pass"), creds.Password)

		profiles, err := vault.ListStoredProfiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"prod-db"}, profiles)
	})

	t.Run("Success_SanitizesEntryName", func(t *testing.T) {
		store := keyring.NewMemoryStore()
		vault := newTestVault(t, store)

		require.NoError(t, vault.StoreCredentials(ctx, "prod db #1", "admin", []byte("pw")))

		_, err := store.Get("profile_prod_db__1")
		assert.NoError(t, err)

		profiles, err := vault.ListStoredProfiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"prod db #1"}, profiles)
	})

	t.Run("Error_InvalidProfileID", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		password := []byte("pw")
		err := vault.StoreCredentials(ctx, "", "admin", password)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Equal(t, make([]byte, len(password)), password, "password zeroized on failure")
	})

	t.Run("Error_KeyringWriteFails", func(t *testing.T) {
		store := newFaultStore(keyring.NewMemoryStore())
		store.failSet["profile_prod-db"] = keyring.ErrUnavailable
		vault := newTestVault(t, store)

		err := vault.StoreCredentials(ctx, "prod-db", "admin", []byte("pw"))
		assert.ErrorIs(t, err, vaultDomain.ErrKeyring)
	})
}

func TestVaultUseCase_RetrieveCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_ProfileNotFound", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		_, err := vault.RetrieveCredentials(ctx, "missing")
		assert.ErrorIs(t, err, vaultDomain.ErrProfileNotFound)
	})

	t.Run("Error_TamperedCiphertext", func(t *testing.T) {
		store := keyring.NewMemoryStore()
		vault := newTestVault(t, store)

		require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))

		blob := storedBlob(t, store, "prod-db")
		blob.Ciphertext[0] ^= 0xFF
		data, err := blob.Marshal()
		require.NoError(t, err)
		require.NoError(t, store.Set("profile_prod-db", data))

		_, err = vault.RetrieveCredentials(ctx, "prod-db")
		assert.ErrorIs(t, err, vaultDomain.ErrDecryption)
	})

	t.Run("Error_CorruptedStoredDocument", func(t *testing.T) {
		store := keyring.NewMemoryStore()
		vault := newTestVault(t, store)

		require.NoError(t, store.Set("profile_prod-db", []byte("not json")))

		_, err := vault.RetrieveCredentials(ctx, "prod-db")
		assert.ErrorIs(t, err, vaultDomain.ErrSerialization)
	})

	t.Run("Error_UnknownKeyVersion", func(t *testing.T) {
		store := keyring.NewMemoryStore()
		vault := newTestVault(t, store)

		require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))

		blob := storedBlob(t, store, "prod-db")
		blob.KeyID = "no-such-key"
		data, err := blob.Marshal()
		require.NoError(t, err)
		require.NoError(t, store.Set("profile_prod-db", data))

		_, err = vault.RetrieveCredentials(ctx, "prod-db")
		assert.ErrorIs(t, err, vaultDomain.ErrDecryption)
	})
}

func TestVaultUseCase_UpdateCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ReplacesExisting", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "admin", []byte("old")))
		require.NoError(t, vault.UpdateCredentials(ctx, "prod-db", "admin", []byte("new")))

		creds, err := vault.RetrieveCredentials(ctx, "prod-db")
		require.NoError(t, err)
		defer creds.Zeroize()
		assert.Equal(t, []byte("new"), creds.Password)
	})

	t.Run("Error_ProfileNotFound", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		err := vault.UpdateCredentials(ctx, "missing", "admin", []byte("pw"))
		assert.ErrorIs(t, err, vaultDomain.ErrProfileNotFound)
	})
}

func TestVaultUseCase_DeleteCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DeleteThenRetrieveFails", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))
		require.NoError(t, vault.DeleteCredentials(ctx, "prod-db"))

		_, err := vault.RetrieveCredentials(ctx, "prod-db")
		assert.ErrorIs(t, err, vaultDomain.ErrProfileNotFound)

		profiles, err := vault.ListStoredProfiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, profiles)
	})

	t.Run("Error_DeleteMissingProfile", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		err := vault.DeleteCredentials(ctx, "missing")
		assert.ErrorIs(t, err, vaultDomain.ErrProfileNotFound)
	})
}

func TestVaultUseCase_HasCredentials(t *testing.T) {
	ctx := context.Background()

	vault := newTestVault(t, keyring.NewMemoryStore())
	require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))

	assert.True(t, vault.HasCredentials(ctx, "prod-db"))
	assert.False(t, vault.HasCredentials(ctx, "missing"))
	assert.False(t, vault.HasCredentials(ctx, ""), "invalid id reads as absent")
}

func TestVaultUseCase_ListStoredProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_EmptyVault", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		profiles, err := vault.ListStoredProfiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, profiles)
	})

	t.Run("Success_SortedOriginalIDs", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		for _, id := range []string{"staging", "prod db", "analytics"} {
			require.NoError(t, vault.StoreCredentials(ctx, id, "admin", []byte("pw")))
		}

		profiles, err := vault.ListStoredProfiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"analytics", "prod db", "staging"}, profiles)
	})
}

func TestVaultUseCase_RotateMasterKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AllProfilesMigrated", func(t *testing.T) {
		store := keyring.NewMemoryStore()
		vault := newTestVault(t, store)

		ids := []string{"one", "two", "three"}
		for _, id := range ids {
			require.NoError(t, vault.StoreCredentials(ctx, id, "user-"+id, []byte("pass-"+id)))
		}
		oldKeyID := storedBlob(t, store, "one").KeyID

		report, err := vault.RotateMasterKey(ctx)
		require.NoError(t, err)
		assert.True(t, report.Ok())
		assert.ElementsMatch(t, ids, report.Migrated)
		assert.NotEqual(t, oldKeyID, report.NewKeyID)

		for _, id := range ids {
			assert.Equal(t, report.NewKeyID, storedBlob(t, store, id).KeyID)

			creds, err := vault.RetrieveCredentials(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "user-"+id, creds.Username)
			assert.Equal(t, []byte("pass-"+id), creds.Password)
			creds.Zeroize()
		}
	})

	t.Run("Success_EmptyVault", func(t *testing.T) {
		vault := newTestVault(t, keyring.NewMemoryStore())

		report, err := vault.RotateMasterKey(ctx)
		require.NoError(t, err)
		assert.True(t, report.Ok())
		assert.Empty(t, report.Migrated)
		assert.NotEmpty(t, report.NewKeyID)
	})

	t.Run("Error_UnreadableProfileAbortsBeforeRotation", func(t *testing.T) {
		store := keyring.NewMemoryStore()
		vault := newTestVault(t, store)

		require.NoError(t, vault.StoreCredentials(ctx, "good", "admin", []byte("pw")))
		require.NoError(t, vault.StoreCredentials(ctx, "bad", "admin", []byte("pw")))
		oldKeyID := storedBlob(t, store, "good").KeyID

		blob := storedBlob(t, store, "bad")
		blob.Ciphertext[0] ^= 0xFF
		data, err := blob.Marshal()
		require.NoError(t, err)
		require.NoError(t, store.Set("profile_bad", data))

		report, err := vault.RotateMasterKey(ctx)
		require.ErrorIs(t, err, vaultDomain.ErrRotationIncomplete)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, "bad", report.Failed[0].ProfileID)
		assert.Empty(t, report.Migrated)

		// Nothing was rotated, the readable profile still carries the old key.
		assert.Equal(t, oldKeyID, storedBlob(t, store, "good").KeyID)
		creds, err := vault.RetrieveCredentials(ctx, "good")
		require.NoError(t, err)
		creds.Zeroize()
	})

	t.Run("Error_RewrapFailureRetainsPreviousKey", func(t *testing.T) {
		inner := keyring.NewMemoryStore()
		store := newFaultStore(inner)
		vault := newTestVault(t, store)

		ids := []string{"one", "two", "three"}
		for _, id := range ids {
			require.NoError(t, vault.StoreCredentials(ctx, id, "user-"+id, []byte("pass-"+id)))
		}
		oldKeyID := storedBlob(t, inner, "one").KeyID

		// Entries are rewrapped in sorted sanitized order, so "three" comes
		// second. Failing its write leaves "one" migrated and "two" not.
		store.failSet["profile_three"] = keyring.ErrUnavailable

		report, err := vault.RotateMasterKey(ctx)
		require.ErrorIs(t, err, vaultDomain.ErrRotationIncomplete)
		assert.Equal(t, []string{"one"}, report.Migrated)

		// Every profile is accounted for: the failing write and the entries
		// the stopped rotation never reached.
		require.Len(t, report.Failed, 2)
		assert.Equal(t, "three", report.Failed[0].ProfileID)
		assert.Equal(t, "two", report.Failed[1].ProfileID)
		assert.Equal(t, "not attempted, rotation stopped", report.Failed[1].Reason)

		// The migrated entry carries the new key, the rest the old one, and
		// every profile is still readable because the old key was retained.
		assert.Equal(t, report.NewKeyID, storedBlob(t, inner, "one").KeyID)
		assert.Equal(t, oldKeyID, storedBlob(t, inner, "three").KeyID)
		assert.Equal(t, oldKeyID, storedBlob(t, inner, "two").KeyID)

		for _, id := range ids {
			creds, err := vault.RetrieveCredentials(ctx, id)
			require.NoError(t, err, "profile %q must stay readable", id)
			assert.Equal(t, []byte("pass-"+id), creds.Password)
			creds.Zeroize()
		}
	})

	t.Run("Success_RetiredKeysPruned", func(t *testing.T) {
		store := keyring.NewMemoryStore()
		vault := newTestVault(t, store)

		require.NoError(t, vault.StoreCredentials(ctx, "prod-db", "admin", []byte("pw")))
		oldKeyID := storedBlob(t, store, "prod-db").KeyID

		report, err := vault.RotateMasterKey(ctx)
		require.NoError(t, err)

		// A blob forged under the retired key version must no longer decrypt.
		blob := storedBlob(t, store, "prod-db")
		blob.KeyID = oldKeyID
		data, err := blob.Marshal()
		require.NoError(t, err)
		require.NoError(t, store.Set("profile_prod-db", data))

		_, err = vault.RetrieveCredentials(ctx, "prod-db")
		assert.ErrorIs(t, err, vaultDomain.ErrDecryption)
		assert.NotEqual(t, oldKeyID, report.NewKeyID)
	})
}

func TestVaultUseCase_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	vault := newTestVault(t, keyring.NewMemoryStore())

	done := make(chan error, 20)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("profile-%d", i)
		go func() {
			done <- vault.StoreCredentials(ctx, id, "admin", bytes.Repeat([]byte{'x'}, 8))
		}()
	}
	for i := 0; i < 10; i++ {
		go func() {
			_, err := vault.RotateMasterKey(ctx)
			done <- err
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	profiles, err := vault.ListStoredProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 10)

	for _, id := range profiles {
		creds, err := vault.RetrieveCredentials(ctx, id)
		require.NoError(t, err)
		creds.Zeroize()
	}
}

func TestVaultUseCase_IndexCorruption(t *testing.T) {
	ctx := context.Background()
	store := keyring.NewMemoryStore()
	vault := newTestVault(t, store)

	require.NoError(t, store.Set("profile_index", []byte("{broken")))

	_, err := vault.ListStoredProfiles(ctx)
	assert.ErrorIs(t, err, vaultDomain.ErrSerialization)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}
