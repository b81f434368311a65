package service

import (
	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
)

// AEADManagerService implements the AEADManager interface for creating AEAD cipher instances.
type AEADManagerService struct{}

// NewAEADManager creates a new AEADManagerService.
func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher creates an AEAD cipher instance for the specified algorithm.
// Returns ErrInvalidKeySize if key is not 32 bytes or ErrUnsupportedAlgorithm
// if the algorithm is unknown.
func (am *AEADManagerService) CreateCipher(key []byte, alg vaultDomain.Algorithm) (AEAD, error) {
	if len(key) != vaultDomain.KeySize {
		return nil, vaultDomain.ErrInvalidKeySize
	}

	switch alg {
	case vaultDomain.AESGCM:
		return NewAESGCM(key)
	case vaultDomain.ChaCha20:
		return NewChaCha20Poly1305(key)
	default:
		return nil, vaultDomain.ErrUnsupportedAlgorithm
	}
}
