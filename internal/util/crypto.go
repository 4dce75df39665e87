package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// opaqueTokenBytes is the entropy behind codes and tokens (256 bits).
const opaqueTokenBytes = 32

// RandomBytes reads n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomHex returns n random bytes hex-encoded, so the result has 2n characters.
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// OpaqueToken mints the bearer value for authorization codes, access tokens
// and refresh tokens. Only its SHA256Hex digest is persisted.
func OpaqueToken() (string, error) { return RandomHex(opaqueTokenBytes) }

// SHA256Hex digests s. Inputs are high-entropy random values, so no salt.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// S256Challenge is BASE64URL(SHA256(verifier)) without padding, RFC 7636 §4.2.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
