package domain

import (
	"encoding/binary"
	"fmt"
	"time"
)

// credentialsFormatVersion is the first byte of the canonical serialization.
const credentialsFormatVersion = 0x01

// Credentials is a (username, password) pair for a connection profile.
//
// The password is kept as a byte slice so it can be zeroized. Plaintext
// password material must only exist inside a scoped store/retrieve call; the
// owner calls Zeroize as soon as the value has been consumed, on success and
// failure paths alike.
type Credentials struct {
	Username    string
	Password    []byte
	EncryptedAt time.Time
}

// NewCredentials creates a Credentials value stamped with the current time.
// The password bytes are copied so the caller's buffer can be wiped
// independently.
func NewCredentials(username string, password []byte) *Credentials {
	p := make([]byte, len(password))
	copy(p, password)
	return &Credentials{
		Username:    username,
		Password:    p,
		EncryptedAt: time.Now().UTC(),
	}
}

// Zeroize overwrites the password bytes with zeros.
// The username and timestamp are not secret material.
func (c *Credentials) Zeroize() {
	Zero(c.Password)
	c.Password = nil
}

// MarshalCanonical serializes the credentials to their canonical byte form:
//
//	version(1) | len(username) uvarint | username | len(password) uvarint | password | unix-micro varint
//
// The returned buffer contains the plaintext password and must be zeroized by
// the caller once it has been encrypted.
func (c *Credentials) MarshalCanonical() []byte {
	buf := make([]byte, 0, 1+2*binary.MaxVarintLen64+len(c.Username)+len(c.Password)+binary.MaxVarintLen64)
	buf = append(buf, credentialsFormatVersion)
	buf = binary.AppendUvarint(buf, uint64(len(c.Username)))
	buf = append(buf, c.Username...)
	buf = binary.AppendUvarint(buf, uint64(len(c.Password)))
	buf = append(buf, c.Password...)
	buf = binary.AppendVarint(buf, c.EncryptedAt.UnixMicro())
	return buf
}

// UnmarshalCanonical parses the canonical byte form produced by
// MarshalCanonical. Returns ErrInvalidCredentialsFormat if the bytes do not
// parse as the expected structure.
//
// The input buffer still holds plaintext after this call; the caller zeroizes
// it. The returned Credentials owns an independent password copy.
func UnmarshalCanonical(data []byte) (*Credentials, error) {
	if len(data) == 0 || data[0] != credentialsFormatVersion {
		return nil, fmt.Errorf("%w: unknown format version", ErrInvalidCredentialsFormat)
	}
	rest := data[1:]

	username, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: username field: %v", ErrInvalidCredentialsFormat, err)
	}

	password, rest, err := readLengthPrefixed(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: password field: %v", ErrInvalidCredentialsFormat, err)
	}

	micros, n := binary.Varint(rest)
	if n <= 0 || len(rest) != n {
		return nil, fmt.Errorf("%w: timestamp field", ErrInvalidCredentialsFormat)
	}

	p := make([]byte, len(password))
	copy(p, password)

	return &Credentials{
		Username:    string(username),
		Password:    p,
		EncryptedAt: time.UnixMicro(micros).UTC(),
	}, nil
}

// readLengthPrefixed consumes a uvarint length followed by that many bytes.
func readLengthPrefixed(data []byte) (value, rest []byte, err error) {
	length, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, nil, fmt.Errorf("invalid length prefix")
	}
	data = data[n:]
	if uint64(len(data)) < length {
		return nil, nil, fmt.Errorf("truncated value")
	}
	return data[:length], data[length:], nil
}
