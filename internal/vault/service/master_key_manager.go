package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allisson/go-pwdhash"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pgquerytool/credvault/internal/keyring"
	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
)

// masterKeyEntry is the fixed, vault-owned secret-store entry name holding the
// master key record.
const masterKeyEntry = "master_key"

// masterKeyRecord is the stored JSON form of the master key chain.
type masterKeyRecord struct {
	ActiveKeyID string          `json:"active_key_id"`
	Keys        []masterKeyWire `json:"keys"`
}

type masterKeyWire struct {
	KeyID       string    `json:"key_id"`
	Key         string    `json:"key"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	KMSWrapped  bool      `json:"kms_wrapped"`
}

// MasterKeyManagerService implements MasterKeyManager on top of the platform
// secret store.
//
// The raw key bytes are persisted only inside the secret-store entry (wrapped
// by a KMS keeper when one is configured), never in application-owned files.
// Each key carries an Argon2id fingerprint that is verified on load so a
// corrupted or truncated stored key surfaces as ErrMasterKey instead of a
// decryption failure on every blob.
//
// During rotation the record temporarily holds both the new active key and the
// retired ones; retired keys are discarded by Prune only after every stored
// blob has been rewrapped, so no failure mode leaves data undecryptable.
type MasterKeyManagerService struct {
	store  keyring.SecretStore
	keeper KMSKeeper
	hasher *pwdhash.PasswordHasher

	mu    sync.Mutex
	chain *vaultDomain.MasterKeyChain
	group singleflight.Group
}

// NewMasterKeyManager creates a MasterKeyManagerService over the given secret
// store. keeper may be nil; when set, key material is wrapped by the KMS
// keeper before it reaches the secret store.
func NewMasterKeyManager(store keyring.SecretStore, keeper KMSKeeper) *MasterKeyManagerService {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		// This should never happen with a valid built-in policy.
		panic(err)
	}

	return &MasterKeyManagerService{
		store:  store,
		keeper: keeper,
		hasher: hasher,
	}
}

// Chain returns the master key chain, loading it from the secret store on
// first call and creating a fresh key if none is stored yet. Concurrent first
// calls collapse into a single secret-store round-trip.
func (m *MasterKeyManagerService) Chain(ctx context.Context) (*vaultDomain.MasterKeyChain, error) {
	m.mu.Lock()
	if m.chain != nil {
		chain := m.chain
		m.mu.Unlock()
		return chain, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do(masterKeyEntry, func() (any, error) {
		chain, err := m.loadOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.chain = chain
		m.mu.Unlock()
		return chain, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vaultDomain.MasterKeyChain), nil
}

// Rotate generates a new master key and durably stores it as active while
// retaining the previous keys in the record. The in-memory chain gains the new
// key only after the write succeeds; if the secret store rejects the write the
// old key remains active and no partial rotation is externally visible.
func (m *MasterKeyManagerService) Rotate(ctx context.Context) (*vaultDomain.MasterKey, error) {
	chain, err := m.Chain(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	newKey, err := m.generateKey()
	if err != nil {
		return nil, err
	}

	keys := append(chain.Keys(), newKey)
	if err := m.persist(ctx, newKey.ID, keys); err != nil {
		newKey.Zeroize()
		return nil, err
	}

	chain.Add(newKey)
	return newKey, nil
}

// Prune durably discards all retired keys, keeping only the active one.
// The stored record is rewritten first; on failure the retired keys stay
// available in memory and in the store.
func (m *MasterKeyManagerService) Prune(ctx context.Context) error {
	chain, err := m.Chain(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	active, ok := chain.Active()
	if !ok {
		return fmt.Errorf("%w: no active key to retain", vaultDomain.ErrMasterKey)
	}

	if err := m.persist(ctx, active.ID, []*vaultDomain.MasterKey{active}); err != nil {
		return err
	}

	chain.Prune()
	return nil
}

// Close zeroizes all in-memory key material.
func (m *MasterKeyManagerService) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chain != nil {
		m.chain.Close()
		m.chain = nil
	}
}

// loadOrCreate reads the stored master key record, creating and persisting a
// first key when no record exists.
func (m *MasterKeyManagerService) loadOrCreate(ctx context.Context) (*vaultDomain.MasterKeyChain, error) {
	data, err := m.store.Get(masterKeyEntry)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return m.create(ctx)
		}
		return nil, fmt.Errorf("%w: %v", vaultDomain.ErrKeyring, err)
	}

	var record masterKeyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: unreadable key record: %v", vaultDomain.ErrMasterKey, err)
	}

	chain := vaultDomain.NewMasterKeyChain()
	for _, entry := range record.Keys {
		key, err := m.unwrapEntry(ctx, entry)
		if err != nil {
			chain.Close()
			return nil, err
		}
		chain.Add(key)
	}

	if _, ok := chain.Get(record.ActiveKeyID); !ok {
		chain.Close()
		return nil, fmt.Errorf(
			"%w: active key %s not present in record",
			vaultDomain.ErrMasterKey,
			record.ActiveKeyID,
		)
	}
	chain.SetActive(record.ActiveKeyID)

	return chain, nil
}

// create generates the vault's first master key and persists it.
func (m *MasterKeyManagerService) create(ctx context.Context) (*vaultDomain.MasterKeyChain, error) {
	key, err := m.generateKey()
	if err != nil {
		return nil, err
	}

	if err := m.persist(ctx, key.ID, []*vaultDomain.MasterKey{key}); err != nil {
		key.Zeroize()
		return nil, err
	}

	chain := vaultDomain.NewMasterKeyChain()
	chain.Add(key)
	return chain, nil
}

// generateKey produces a new random 32-byte master key with a fresh version
// identifier and Argon2id fingerprint.
func (m *MasterKeyManagerService) generateKey() (*vaultDomain.MasterKey, error) {
	raw := make([]byte, vaultDomain.KeySize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("%w: failed to generate key material: %v", vaultDomain.ErrMasterKey, err)
	}

	// Hash consumes and zeroizes its input buffer, so it gets a copy.
	fingerprint, err := m.hasher.Hash(bytes.Clone(raw))
	if err != nil {
		vaultDomain.Zero(raw)
		return nil, fmt.Errorf("%w: failed to fingerprint key: %v", vaultDomain.ErrMasterKey, err)
	}

	return &vaultDomain.MasterKey{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Key:         raw,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// persist writes the given keys to the secret store with activeID marked active.
func (m *MasterKeyManagerService) persist(
	ctx context.Context,
	activeID string,
	keys []*vaultDomain.MasterKey,
) error {
	record := masterKeyRecord{ActiveKeyID: activeID}
	for _, key := range keys {
		material := key.Key
		wrapped := false
		if m.keeper != nil {
			ciphertext, err := m.keeper.Encrypt(ctx, key.Key)
			if err != nil {
				return fmt.Errorf("%w: KMS wrap failed: %v", vaultDomain.ErrMasterKey, err)
			}
			material = ciphertext
			wrapped = true
		}

		record.Keys = append(record.Keys, masterKeyWire{
			KeyID:       key.ID,
			Key:         base64.StdEncoding.EncodeToString(material),
			Fingerprint: key.Fingerprint,
			CreatedAt:   key.CreatedAt,
			KMSWrapped:  wrapped,
		})
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", vaultDomain.ErrSerialization, err)
	}

	if err := m.store.Set(masterKeyEntry, data); err != nil {
		return fmt.Errorf("%w: %v", vaultDomain.ErrMasterKey, err)
	}
	return nil
}

// unwrapEntry decodes one stored key entry back into a MasterKey, unwrapping
// KMS-wrapped material and verifying the fingerprint.
func (m *MasterKeyManagerService) unwrapEntry(
	ctx context.Context,
	entry masterKeyWire,
) (*vaultDomain.MasterKey, error) {
	material, err := base64.StdEncoding.DecodeString(entry.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: key %s has invalid encoding", vaultDomain.ErrMasterKey, entry.KeyID)
	}

	if entry.KMSWrapped {
		if m.keeper == nil {
			vaultDomain.Zero(material)
			return nil, fmt.Errorf(
				"%w: key %s is KMS-wrapped but no keeper is configured",
				vaultDomain.ErrMasterKey,
				entry.KeyID,
			)
		}
		raw, err := m.keeper.Decrypt(ctx, material)
		if err != nil {
			return nil, fmt.Errorf("%w: KMS unwrap failed for key %s: %v", vaultDomain.ErrMasterKey, entry.KeyID, err)
		}
		material = raw
	}

	if len(material) != vaultDomain.KeySize {
		vaultDomain.Zero(material)
		return nil, fmt.Errorf(
			"%w: key %s must be %d bytes, got %d",
			vaultDomain.ErrMasterKey,
			entry.KeyID,
			vaultDomain.KeySize,
			len(material),
		)
	}

	// Verify consumes and zeroizes its input buffer, so it gets a copy.
	ok, err := m.hasher.Verify(bytes.Clone(material), entry.Fingerprint)
	if err != nil || !ok {
		vaultDomain.Zero(material)
		return nil, fmt.Errorf("%w: key %s failed fingerprint verification", vaultDomain.ErrMasterKey, entry.KeyID)
	}

	return &vaultDomain.MasterKey{
		ID:          entry.KeyID,
		Key:         material,
		Fingerprint: entry.Fingerprint,
		CreatedAt:   entry.CreatedAt,
	}, nil
}
