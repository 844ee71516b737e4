package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Encrypted snapshots are laid out as
// [magic][16-byte salt][12-byte nonce][AES-256-GCM ciphertext].
var magic = []byte("CHORELY1")

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

var (
	// ErrNotEncrypted is returned when opening data without the snapshot header.
	ErrNotEncrypted = errors.New("backup: not an encrypted snapshot")
	// ErrBadPassphrase is returned when authentication of the ciphertext fails.
	ErrBadPassphrase = errors.New("backup: wrong passphrase or corrupted snapshot")
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under a key derived from passphrase with a fresh
// random salt and nonce.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("backup: empty passphrase")
	}

	head := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, head); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	salt, nonce := head[:saltSize], head[saltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+len(head)+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, head...)
	// magic is authenticated as additional data
	return gcm.Seal(out, nonce, plaintext, magic), nil
}

// Open reverses Seal.
func Open(data []byte, passphrase string) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, ErrNotEncrypted
	}
	body := data[len(magic):]
	if len(body) < saltSize+nonceSize {
		return nil, fmt.Errorf("%w: truncated header", ErrBadPassphrase)
	}
	salt := body[:saltSize]
	nonce := body[saltSize : saltSize+nonceSize]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, body[saltSize+nonceSize:], magic)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}

// IsEncrypted reports whether data starts with the snapshot header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}
