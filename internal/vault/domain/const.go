package domain

// Algorithm represents the AEAD cipher used for credential blobs.
//
// Both supported algorithms provide authenticated encryption: any bit-flip in
// nonce, ciphertext, or tag makes decryption fail instead of yielding wrong
// plaintext.
type Algorithm string

const (
	// AESGCM is AES-256-GCM: 32-byte key, 12-byte nonce, 16-byte tag.
	// Hardware accelerated on CPUs with AES-NI.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305: 32-byte key, 12-byte nonce, 16-byte tag.
	// Constant-time in software, preferred on CPUs without AES acceleration.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

const (
	// KeySize is the master key size in bytes (256 bits).
	KeySize = 32

	// NonceSize is the AEAD nonce size in bytes (96 bits).
	NonceSize = 12
)
