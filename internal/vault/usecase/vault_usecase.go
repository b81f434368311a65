// Package usecase implements the vault's credential storage operations on top
// of the keyring, the master key manager, and the credential cipher.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pgquerytool/credvault/internal/keyring"
	"github.com/pgquerytool/credvault/internal/validation"
	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
	"github.com/pgquerytool/credvault/internal/vault/service"
)

const (
	// profileEntryPrefix prefixes the keyring entry name of every stored profile.
	profileEntryPrefix = "profile_"

	// profileIndexEntry names the keyring entry holding the profile index.
	// OS keyring APIs only look entries up by name, so the vault keeps its own
	// index of stored profiles to support listing and rotation.
	profileIndexEntry = "profile_index"
)

type vaultUseCase struct {
	store      keyring.SecretStore
	keyManager service.MasterKeyManager
	cipher     service.CredentialCipher

	// mu serializes index mutations and makes rotation exclusive against
	// every other operation, so a rewrap never races a concurrent write.
	mu sync.RWMutex
}

// NewVaultUseCase creates a VaultUseCase backed by the given secret store,
// master key manager, and credential cipher.
func NewVaultUseCase(store keyring.SecretStore, keyManager service.MasterKeyManager, cipher service.CredentialCipher) VaultUseCase {
	return &vaultUseCase{
		store:      store,
		keyManager: keyManager,
		cipher:     cipher,
	}
}

// profileEntry maps a caller-supplied profile id onto its keyring entry name.
func profileEntry(sanitizedID string) string {
	return profileEntryPrefix + sanitizedID
}

// StoreCredentials encrypts and saves credentials for the profile.
func (v *vaultUseCase) StoreCredentials(ctx context.Context, profileID, username string, password []byte) error {
	defer vaultDomain.Zero(password)

	if err := validation.ProfileID(profileID); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	return v.storeLocked(ctx, profileID, username, password)
}

// UpdateCredentials replaces the credentials of an existing profile.
func (v *vaultUseCase) UpdateCredentials(ctx context.Context, profileID, username string, password []byte) error {
	defer vaultDomain.Zero(password)

	if err := validation.ProfileID(profileID); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	sanitized := validation.SanitizeProfileID(profileID)
	if _, err := v.store.Get(profileEntry(sanitized)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %q", vaultDomain.ErrProfileNotFound, profileID)
		}
		return fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}

	return v.storeLocked(ctx, profileID, username, password)
}

// storeLocked encrypts and writes one profile entry and records it in the
// index. Callers hold the write lock and have validated the profile id.
func (v *vaultUseCase) storeLocked(ctx context.Context, profileID, username string, password []byte) error {
	chain, err := v.keyManager.Chain(ctx)
	if err != nil {
		return err
	}
	active, ok := chain.Active()
	if !ok {
		return fmt.Errorf("%w: key chain has no active key", vaultDomain.ErrMasterKey)
	}

	creds := vaultDomain.NewCredentials(username, password)
	blob, err := v.cipher.Encrypt(creds, active)
	if err != nil {
		return err
	}

	data, err := blob.Marshal()
	if err != nil {
		return err
	}

	sanitized := validation.SanitizeProfileID(profileID)
	if err := v.store.Set(profileEntry(sanitized), data); err != nil {
		return fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}

	index, err := v.loadIndex()
	if err != nil {
		return err
	}
	index[sanitized] = profileID
	return v.saveIndex(index)
}

// RetrieveCredentials decrypts and returns the credentials for the profile.
func (v *vaultUseCase) RetrieveCredentials(ctx context.Context, profileID string) (*vaultDomain.Credentials, error) {
	if err := validation.ProfileID(profileID); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	sanitized := validation.SanitizeProfileID(profileID)
	data, err := v.store.Get(profileEntry(sanitized))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", vaultDomain.ErrProfileNotFound, profileID)
		}
		return nil, fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}

	blob, err := vaultDomain.UnmarshalBlob(data)
	if err != nil {
		return nil, err
	}

	chain, err := v.keyManager.Chain(ctx)
	if err != nil {
		return nil, err
	}
	return v.decryptBlob(chain, blob)
}

// decryptBlob resolves the key version recorded in the blob and decrypts it.
func (v *vaultUseCase) decryptBlob(chain *vaultDomain.MasterKeyChain, blob *vaultDomain.EncryptedBlob) (*vaultDomain.Credentials, error) {
	key, ok := chain.Get(blob.KeyID)
	if !ok {
		return nil, fmt.Errorf("%w: blob references unknown key version %q", vaultDomain.ErrDecryption, blob.KeyID)
	}
	return v.cipher.Decrypt(blob, key)
}

// DeleteCredentials removes the stored entry for the profile.
func (v *vaultUseCase) DeleteCredentials(ctx context.Context, profileID string) error {
	if err := validation.ProfileID(profileID); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	sanitized := validation.SanitizeProfileID(profileID)
	if err := v.store.Delete(profileEntry(sanitized)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %q", vaultDomain.ErrProfileNotFound, profileID)
		}
		return fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}

	index, err := v.loadIndex()
	if err != nil {
		return err
	}
	delete(index, sanitized)
	return v.saveIndex(index)
}

// HasCredentials reports whether the profile has a stored entry.
func (v *vaultUseCase) HasCredentials(ctx context.Context, profileID string) bool {
	if err := validation.ProfileID(profileID); err != nil {
		return false
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	sanitized := validation.SanitizeProfileID(profileID)
	_, err := v.store.Get(profileEntry(sanitized))
	return err == nil
}

// ListStoredProfiles returns the ids of every stored profile, sorted.
func (v *vaultUseCase) ListStoredProfiles(ctx context.Context) ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	index, err := v.loadIndex()
	if err != nil {
		return nil, err
	}

	profiles := make([]string, 0, len(index))
	for _, id := range index {
		profiles = append(profiles, id)
	}
	sort.Strings(profiles)
	return profiles, nil
}

// RotateMasterKey generates a new master key and rewraps every stored entry.
//
// The rotation runs in phases so a failure at any point leaves every entry
// decryptable. First, all stored blobs are decrypted with the current chain;
// any failure aborts before anything is written. Only then is the new key
// persisted with the previous keys retained, each entry rewrapped, and the
// retired keys pruned once every entry has been migrated.
func (v *vaultUseCase) RotateMasterKey(ctx context.Context) (*vaultDomain.RotationReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	report := &vaultDomain.RotationReport{}

	chain, err := v.keyManager.Chain(ctx)
	if err != nil {
		return report, err
	}

	index, err := v.loadIndex()
	if err != nil {
		return report, err
	}

	sanitizedIDs := make([]string, 0, len(index))
	for sanitized := range index {
		sanitizedIDs = append(sanitizedIDs, sanitized)
	}
	sort.Strings(sanitizedIDs)

	// Phase 1: decrypt everything before touching any state. Plaintext stays
	// in memory only for the duration of the rotation.
	decrypted := make(map[string]*vaultDomain.Credentials, len(sanitizedIDs))
	defer func() {
		for _, creds := range decrypted {
			creds.Zeroize()
		}
	}()

	for _, sanitized := range sanitizedIDs {
		profileID := index[sanitized]
		creds, err := v.readAndDecrypt(chain, sanitized)
		if err != nil {
			report.Failed = append(report.Failed, vaultDomain.ProfileFailure{
				ProfileID: profileID,
				Reason:    err.Error(),
			})
			continue
		}
		decrypted[sanitized] = creds
	}
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%w: %d of %d profiles unreadable, no key was rotated",
			vaultDomain.ErrRotationIncomplete, len(report.Failed), len(sanitizedIDs))
	}

	// Phase 2: persist the new key. The previous keys stay in the stored
	// chain until every entry has been rewrapped.
	newKey, err := v.keyManager.Rotate(ctx)
	if err != nil {
		return report, err
	}
	report.NewKeyID = newKey.ID

	// Phase 3: rewrap each entry under the new key. A write failure stops the
	// rotation; the retired key is kept so unmigrated entries stay readable.
	// The report accounts for every profile: migrated, failed, or skipped
	// because the rotation stopped before reaching it.
	for i, sanitized := range sanitizedIDs {
		profileID := index[sanitized]
		creds := decrypted[sanitized]
		delete(decrypted, sanitized)

		if err := v.rewrapEntry(sanitized, creds, newKey); err != nil {
			report.Failed = append(report.Failed, vaultDomain.ProfileFailure{
				ProfileID: profileID,
				Reason:    err.Error(),
			})
			for _, remaining := range sanitizedIDs[i+1:] {
				report.Failed = append(report.Failed, vaultDomain.ProfileFailure{
					ProfileID: index[remaining],
					Reason:    "not attempted, rotation stopped",
				})
			}
			return report, fmt.Errorf("%w: profile %q could not be rewrapped, previous key retained",
				vaultDomain.ErrRotationIncomplete, profileID)
		}
		report.Migrated = append(report.Migrated, profileID)
	}

	// Phase 4: every entry carries the new key, retire the old ones.
	if err := v.keyManager.Prune(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// readAndDecrypt loads one profile entry and decrypts it with the chain.
func (v *vaultUseCase) readAndDecrypt(chain *vaultDomain.MasterKeyChain, sanitized string) (*vaultDomain.Credentials, error) {
	data, err := v.store.Get(profileEntry(sanitized))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}
	blob, err := vaultDomain.UnmarshalBlob(data)
	if err != nil {
		return nil, err
	}
	return v.decryptBlob(chain, blob)
}

// rewrapEntry encrypts credentials under the new key and overwrites the
// stored entry. Encrypt consumes and zeroizes the credentials.
func (v *vaultUseCase) rewrapEntry(sanitized string, creds *vaultDomain.Credentials, key *vaultDomain.MasterKey) error {
	blob, err := v.cipher.Encrypt(creds, key)
	if err != nil {
		return err
	}
	data, err := blob.Marshal()
	if err != nil {
		return err
	}
	if err := v.store.Set(profileEntry(sanitized), data); err != nil {
		return fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}
	return nil
}

// Close zeroizes cached key material.
func (v *vaultUseCase) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keyManager.Close()
}

// loadIndex reads the profile index entry. A missing entry reads as an empty
// index. The index maps sanitized entry names to the original profile ids.
func (v *vaultUseCase) loadIndex() (map[string]string, error) {
	data, err := v.store.Get(profileIndexEntry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}

	var index map[string]string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("%w: profile index: %v", vaultDomain.ErrSerialization, err)
	}
	if index == nil {
		index = map[string]string{}
	}
	return index, nil
}

// saveIndex writes the profile index entry.
func (v *vaultUseCase) saveIndex(index map[string]string) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("%w: profile index: %v", vaultDomain.ErrSerialization, err)
	}
	if err := v.store.Set(profileIndexEntry, data); err != nil {
		return fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}
	return nil
}
