// Package service implements the vault's cryptographic services: AEAD ciphers,
// the credential cipher, and master key lifecycle management.
package service

import (
	"context"

	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg vaultDomain.Algorithm) (AEAD, error)
}

// CredentialCipher turns a credentials pair into a tamper-evident encrypted
// blob and back, using a transiently borrowed master key.
type CredentialCipher interface {
	// Encrypt serializes and encrypts credentials under the master key.
	// The input's password and the intermediate plaintext buffer are zeroized
	// before Encrypt returns, on success and error paths alike.
	Encrypt(creds *vaultDomain.Credentials, key *vaultDomain.MasterKey) (*vaultDomain.EncryptedBlob, error)

	// Decrypt authenticates and decrypts a blob back into credentials.
	// The caller owns the returned credentials and zeroizes them after use.
	Decrypt(blob *vaultDomain.EncryptedBlob, key *vaultDomain.MasterKey) (*vaultDomain.Credentials, error)
}

// MasterKeyManager owns the vault's master key chain: creation on first use,
// reload from the platform secret store, rotation, and retirement.
type MasterKeyManager interface {
	// Chain returns the key chain, loading it from the secret store or
	// creating a first key if none exists. Other components borrow keys from
	// the chain for single cipher operations and must not retain copies.
	Chain(ctx context.Context) (*vaultDomain.MasterKeyChain, error)

	// Rotate generates a new master key, persists it as active while retaining
	// the previous keys, and returns the new key. The caller rewraps all
	// stored blobs and then calls Prune.
	Rotate(ctx context.Context) (*vaultDomain.MasterKey, error)

	// Prune durably discards all retired keys, keeping only the active one.
	Prune(ctx context.Context) error

	// Close zeroizes all in-memory key material.
	Close()
}

// KMSKeeper wraps and unwraps key material with an external KMS.
// *gocloud.dev/secrets.Keeper implements this interface.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
