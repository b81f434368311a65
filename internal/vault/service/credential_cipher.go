package service

import (
	"fmt"
	"time"

	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
)

// CredentialCipherService implements CredentialCipher over an AEADManager.
//
// Encryption serializes credentials to their canonical byte form, seals them
// under the borrowed master key with a fresh random nonce, and wipes every
// buffer that held plaintext before returning. Decryption is the inverse;
// AEAD authentication means a wrong key, flipped bit, or truncated blob fails
// with ErrDecryption instead of yielding garbage credentials.
type CredentialCipherService struct {
	aeadManager AEADManager
	algorithm   vaultDomain.Algorithm
}

// NewCredentialCipher creates a CredentialCipherService using the given algorithm.
func NewCredentialCipher(aeadManager AEADManager, alg vaultDomain.Algorithm) *CredentialCipherService {
	return &CredentialCipherService{
		aeadManager: aeadManager,
		algorithm:   alg,
	}
}

// Encrypt serializes and encrypts credentials under the master key.
//
// The input's password and the serialized plaintext buffer are zeroized before
// Encrypt returns, on success and error paths alike. The resulting blob records
// the master key version so decryption can select the matching key later.
func (c *CredentialCipherService) Encrypt(
	creds *vaultDomain.Credentials,
	key *vaultDomain.MasterKey,
) (*vaultDomain.EncryptedBlob, error) {
	plaintext := creds.MarshalCanonical()
	defer vaultDomain.Zero(plaintext)
	defer creds.Zeroize()

	aead, err := c.aeadManager.CreateCipher(key.Key, c.algorithm)
	if err != nil {
		return nil, err
	}

	ciphertext, nonce, err := aead.Encrypt(plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vaultDomain.ErrEncryption, err)
	}

	return &vaultDomain.EncryptedBlob{
		KeyID:       key.ID,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
		EncryptedAt: time.Now().UTC(),
	}, nil
}

// Decrypt authenticates and decrypts a blob back into credentials.
//
// Fails with ErrDecryption on authentication-tag mismatch (wrong key,
// corrupted data, tampering) and with ErrInvalidCredentialsFormat if the
// decrypted bytes do not parse. The intermediate plaintext buffer is wiped
// before returning; the caller zeroizes the returned credentials once
// consumed.
func (c *CredentialCipherService) Decrypt(
	blob *vaultDomain.EncryptedBlob,
	key *vaultDomain.MasterKey,
) (*vaultDomain.Credentials, error) {
	if len(blob.Nonce) != vaultDomain.NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes", vaultDomain.ErrDecryption, len(blob.Nonce))
	}

	aead, err := c.aeadManager.CreateCipher(key.Key, c.algorithm)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Decrypt(blob.Ciphertext, blob.Nonce, nil)
	if err != nil {
		return nil, vaultDomain.ErrDecryption
	}
	defer vaultDomain.Zero(plaintext)

	creds, err := vaultDomain.UnmarshalCanonical(plaintext)
	if err != nil {
		return nil, err
	}

	return creds, nil
}
