package domain

import "time"

// MasterKey is one version of the vault's symmetric encryption key.
//
// The raw key bytes live only in process memory and in the platform secret
// store, never in application-owned files. The fingerprint is an Argon2id hash
// of the key material used to detect corrupted or truncated stored keys.
//
// Fields:
//   - ID: opaque version identifier recorded in every blob the key encrypts
//   - Key: the raw 32-byte key material
//   - Fingerprint: Argon2id hash of the key material
//   - CreatedAt: when the key was generated
type MasterKey struct {
	ID          string
	Key         []byte
	Fingerprint string
	CreatedAt   time.Time
}

// Zeroize overwrites the raw key bytes with zeros.
func (k *MasterKey) Zeroize() {
	Zero(k.Key)
	k.Key = nil
}

// MasterKeyChain holds the vault's master key versions with one designated
// active. Exactly one active key exists at any time; retired keys stay in the
// chain only for the duration of a rotation so every stored blob remains
// decryptable until it has been rewrapped.
//
// The chain is not safe for concurrent mutation; the master key manager owns
// it and the vault serializes rotation against all other operations.
type MasterKeyChain struct {
	activeID string
	keys     map[string]*MasterKey
}

// NewMasterKeyChain creates an empty chain.
func NewMasterKeyChain() *MasterKeyChain {
	return &MasterKeyChain{keys: make(map[string]*MasterKey)}
}

// ActiveID returns the identifier of the active master key.
func (m *MasterKeyChain) ActiveID() string {
	return m.activeID
}

// Active returns the active master key.
func (m *MasterKeyChain) Active() (*MasterKey, bool) {
	return m.Get(m.activeID)
}

// Get retrieves a master key by its version identifier. Retired keys remain
// reachable here so blobs written before a rotation can still be decrypted.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	key, ok := m.keys[id]
	return key, ok
}

// Add inserts a key into the chain and marks it active.
func (m *MasterKeyChain) Add(key *MasterKey) {
	m.keys[key.ID] = key
	m.activeID = key.ID
}

// SetActive marks the key with the given identifier as active.
// The key must already be present in the chain.
func (m *MasterKeyChain) SetActive(id string) {
	if _, ok := m.keys[id]; ok {
		m.activeID = id
	}
}

// Keys returns every key currently in the chain.
func (m *MasterKeyChain) Keys() []*MasterKey {
	keys := make([]*MasterKey, 0, len(m.keys))
	for _, key := range m.keys {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of keys in the chain.
func (m *MasterKeyChain) Len() int {
	return len(m.keys)
}

// Prune zeroizes and drops every key except the active one.
// Called once a rotation has rewrapped all stored blobs.
func (m *MasterKeyChain) Prune() {
	for id, key := range m.keys {
		if id == m.activeID {
			continue
		}
		key.Zeroize()
		delete(m.keys, id)
	}
}

// Close zeroizes all key material and resets the chain. Call on shutdown.
func (m *MasterKeyChain) Close() {
	for id, key := range m.keys {
		key.Zeroize()
		delete(m.keys, id)
	}
	m.activeID = ""
}
