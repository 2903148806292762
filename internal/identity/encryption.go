package identity

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Encrypted seeds are stored as
//
//	salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | box
//
// The Argon2id cost parameters travel in the header, so files written under
// older defaults still open after the defaults are raised.
const (
	// SaltSize is the length of the KDF salt prefix.
	SaltSize = 32

	headerSize = SaltSize + 4 + 4 + 1
)

// EncryptionParams holds the Argon2id costs used to stretch a passphrase
// into a seed encryption key.
type EncryptionParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams returns the costs applied to newly encrypted identity files.
func DefaultParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: 4,
	}
}

// stretch derives the XChaCha20-Poly1305 key from a passphrase and salt.
// The caller must wipe the returned key when done with it.
func stretch(passphrase, salt []byte, params EncryptionParams) []byte {
	return argon2.IDKey(passphrase, salt,
		params.Iterations, params.Memory, params.Parallelism,
		chacha20poly1305.KeySize)
}

// wipe zeroes key material in place.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Encrypt seals data under a passphrase with Argon2id and
// XChaCha20-Poly1305, using a fresh random salt and nonce.
func Encrypt(data, passphrase []byte, params EncryptionParams) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := stretch(passphrase, salt, params)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, headerSize+len(nonce)+len(data)+aead.Overhead())
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Memory)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, params.Parallelism)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, nil), nil
}

// Decrypt opens a blob produced by Encrypt, reading the KDF costs back out
// of its header.
func Decrypt(encrypted, passphrase []byte) ([]byte, error) {
	minSize := headerSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(encrypted) < minSize {
		return nil, fmt.Errorf("encrypted seed too short: %d bytes, need at least %d", len(encrypted), minSize)
	}

	salt := encrypted[:SaltSize]
	params := EncryptionParams{
		Memory:      binary.LittleEndian.Uint32(encrypted[SaltSize:]),
		Iterations:  binary.LittleEndian.Uint32(encrypted[SaltSize+4:]),
		Parallelism: encrypted[SaltSize+8],
	}
	nonce := encrypted[headerSize : headerSize+chacha20poly1305.NonceSizeX]
	box := encrypted[headerSize+chacha20poly1305.NonceSizeX:]

	key := stretch(passphrase, salt, params)
	defer wipe(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt seed: %w", err)
	}
	return plaintext, nil
}
