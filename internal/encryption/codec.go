// Package encryption seals third-party connection values at rest with
// AES-256-GCM. Each value carries its own random 128-bit IV.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"
)

const (
	keySize = 32 // AES-256
	ivSize  = 16 // 128-bit IV, used as the GCM nonce
)

// ErrInvalidKeySize is returned when the encryption key is not 32 bytes.
var ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

// ErrDecryption is returned for any value that cannot be opened: malformed
// hex, wrong IV length, wrong key or tampered ciphertext.
var ErrDecryption = fmt.Errorf("%w: connection value", core.ErrDecryption)

// Codec encrypts and decrypts JSON values with a server-wide key.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a codec from a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// NewCodecFromHex creates a codec from a 64-character hex key.
func NewCodecFromHex(hexKey string) (*Codec, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not valid hex", ErrInvalidKeySize)
	}
	return NewCodec(key)
}

// GenerateKey returns a fresh random key, hex-encoded.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// Encrypt JSON-encodes plaintext and seals it under a fresh IV.
func (c *Codec) Encrypt(plaintext any) (models.EncryptedObject, error) {
	raw, err := json.Marshal(plaintext)
	if err != nil {
		return models.EncryptedObject{}, fmt.Errorf("marshal value: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return models.EncryptedObject{}, fmt.Errorf("generate iv: %w", err)
	}

	return models.EncryptedObject{
		IV:   hex.EncodeToString(iv),
		Data: hex.EncodeToString(c.aead.Seal(nil, iv, raw, nil)),
	}, nil
}

// Decrypt opens obj and JSON-decodes the plaintext into out.
func (c *Codec) Decrypt(obj models.EncryptedObject, out any) error {
	raw, err := c.open(obj)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return nil
}

// DecryptToString opens obj and returns the plaintext JSON as a string.
func (c *Codec) DecryptToString(obj models.EncryptedObject) (string, error) {
	raw, err := c.open(obj)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecryptValue opens obj and decodes it as the connection variant want,
// rejecting payloads whose type tag differs.
func (c *Codec) DecryptValue(obj models.EncryptedObject, want models.ConnectionType) (models.ConnectionValue, error) {
	raw, err := c.open(obj)
	if err != nil {
		return nil, err
	}
	value, err := models.DecodeConnectionValue(raw, want)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return value, nil
}

func (c *Codec) open(obj models.EncryptedObject) ([]byte, error) {
	iv, err := hex.DecodeString(obj.IV)
	if err != nil || len(iv) != ivSize {
		return nil, fmt.Errorf("%w: invalid iv", ErrDecryption)
	}
	ciphertext, err := hex.DecodeString(obj.Data)
	if err != nil || len(ciphertext) < c.aead.Overhead() {
		return nil, fmt.Errorf("%w: invalid ciphertext", ErrDecryption)
	}

	raw, err := c.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return raw, nil
}
