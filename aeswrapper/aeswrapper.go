package aeswrapper

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidKeyLength   = errors.New("invalid key length, must be 16 or 32 bytes")
	ErrCipherFailure      = errors.New("cipher creation failure")
	ErrGCMFailure         = errors.New("gcm creation failure")
	ErrRandomNonceFailure = errors.New("random nonce creation failure")
	ErrOpenDataFailure    = errors.New("open data failure, cannot decrypt data")
	ErrEmptyPassphrase    = errors.New("empty passphrase")
	ErrSaltTooShort       = errors.New("salt too short")
)

const (
	nonceSize = 12

	KeySize     = 32
	MinSaltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Helper wraps AES encryption and decryption in Galois Counter Mode.
// The nonce is prepended to the sealed data.
type Helper struct{}

// New creates a new Helper.
func New() Helper {
	return Helper{}
}

// Encrypt seals data with key. Key must be 16 or 32 bytes long.
func (h Helper) Encrypt(key, data []byte) ([]byte, error) {
	aesGcm, err := gcm(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrRandomNonceFailure, err)
	}

	return aesGcm.Seal(nonce, nonce, data, nil), nil
}

// Decrypt opens data sealed by Encrypt with the same key.
func (h Helper) Decrypt(key, data []byte) ([]byte, error) {
	aesGcm, err := gcm(key)
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize+aesGcm.Overhead() {
		return nil, errors.Join(ErrOpenDataFailure, errors.New("sealed data too short"))
	}
	nonce, cipherText := data[:nonceSize], data[nonceSize:]

	plaintext, err := aesGcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.Join(ErrOpenDataFailure, err)
	}

	return plaintext, nil
}

// DeriveKey stretches the passphrase into a KeySize key with argon2id.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) < MinSaltSize {
		return nil, ErrSaltTooShort
	}
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize), nil
}

func gcm(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 && len(key) != 16 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrCipherFailure, err)
	}

	aesGcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrGCMFailure, err)
	}
	return aesGcm, nil
}
