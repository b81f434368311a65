package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// EncryptedBlob is a self-contained encrypted credential record.
//
// The blob carries everything needed to attempt decryption except the master
// key itself: the per-encryption nonce, the ciphertext with its authentication
// tag appended, and the version of the master key that produced it.
//
// Fields:
//   - KeyID: version identifier of the master key used for encryption
//   - Nonce: 12-byte random nonce, unique per encryption under a given key
//   - Ciphertext: AEAD output with the 16-byte authentication tag appended
//   - EncryptedAt: when the blob was produced
type EncryptedBlob struct {
	KeyID       string
	Nonce       []byte
	Ciphertext  []byte
	EncryptedAt time.Time
}

// encryptedBlobWire is the stored JSON form of an EncryptedBlob.
// Binary fields are base64 so the document survives string-valued keyring APIs.
type encryptedBlobWire struct {
	KeyID         string    `json:"key_id"`
	Nonce         string    `json:"nonce"`
	EncryptedData string    `json:"encrypted_data"`
	EncryptedAt   time.Time `json:"encrypted_at"`
}

// Marshal serializes the blob to its stored JSON form.
func (b *EncryptedBlob) Marshal() ([]byte, error) {
	wire := encryptedBlobWire{
		KeyID:         b.KeyID,
		Nonce:         base64.StdEncoding.EncodeToString(b.Nonce),
		EncryptedData: base64.StdEncoding.EncodeToString(b.Ciphertext),
		EncryptedAt:   b.EncryptedAt,
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

// UnmarshalBlob parses a stored JSON blob.
// Returns ErrSerialization if the document or its base64 fields are malformed.
func UnmarshalBlob(data []byte) (*EncryptedBlob, error) {
	var wire encryptedBlobWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	nonce, err := base64.StdEncoding.DecodeString(wire.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid nonce encoding: %v", ErrSerialization, err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(wire.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding: %v", ErrSerialization, err)
	}

	return &EncryptedBlob{
		KeyID:       wire.KeyID,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
		EncryptedAt: wire.EncryptedAt,
	}, nil
}
