package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const deviceKeyLength = 32

// ErrInvalidKeyLength is returned when a device key file has the wrong size.
var ErrInvalidKeyLength = errors.New("invalid key length")

// ErrSealedDataCorrupt is returned when sealed data fails authentication.
var ErrSealedDataCorrupt = errors.New("sealed data corrupt")

// Sealer encrypts small records with XChaCha20-Poly1305 under a key derived from the device key.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key for purpose from deviceKey using HKDF-SHA256.
func NewSealer(deviceKey []byte, purpose string) (*Sealer, error) {
	if len(deviceKey) != deviceKeyLength {
		return nil, ErrInvalidKeyLength
	}
	h := hkdf.New(sha256.New, deviceKey, nil, []byte(purpose))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return &Sealer{key: key}, nil
}

// Seal returns nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedDataCorrupt
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrSealedDataCorrupt
	}
	return plaintext, nil
}

// LoadOrCreateDeviceKey reads the device key at path, generating it with 0600
// permissions when it does not exist yet.
func LoadOrCreateDeviceKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != deviceKeyLength {
			return nil, ErrInvalidKeyLength
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	key = make([]byte, deviceKeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, err
	}
	return key, nil
}
