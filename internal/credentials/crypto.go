// internal/credentials/crypto.go
//
// Authenticated encryption for the credential blob.
//
// The envelope is `base64( "v2:aesgcm:" || nonce || ciphertext )` with a
// 12-byte nonce and AES-256-GCM.  The key is derived from the host
// installation's secret material with HKDF-SHA256, bound to this engine by
// a fixed info string, so blobs cannot be swapped between installs that
// happen to share key material.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const envelopeHeader = "v2:aesgcm:"

const hkdfInfo = "wpmigrate-credentials"

var (
	// ErrNoKeyMaterial means the host supplied empty secret bytes.
	ErrNoKeyMaterial = errors.New("credentials: no key material")

	// ErrMalformed covers bad base64, a missing header, or a truncated
	// payload.  Tampered ciphertext surfaces as ErrDecrypt instead.
	ErrMalformed = errors.New("credentials: malformed envelope")

	// ErrDecrypt means authentication failed; the blob was tampered with
	// or sealed under different key material.
	ErrDecrypt = errors.New("credentials: decryption failed")
)

func deriveKey(keyMaterial []byte) ([]byte, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrNoKeyMaterial
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, keyMaterial, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext under key material and returns the base64
// envelope.
func Encrypt(plaintext, keyMaterial []byte) (string, error) {
	key, err := deriveKey(keyMaterial)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)

	raw := make([]byte, 0, len(envelopeHeader)+len(nonce)+len(sealed))
	raw = append(raw, envelopeHeader...)
	raw = append(raw, nonce...)
	raw = append(raw, sealed...)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt opens an envelope produced by Encrypt.  Any authentication
// failure returns ErrDecrypt, never garbage plaintext.
func Decrypt(encoded string, keyMaterial []byte) ([]byte, error) {
	key, err := deriveKey(keyMaterial)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformed
	}
	if !strings.HasPrefix(string(raw), envelopeHeader) {
		return nil, ErrMalformed
	}
	payload := raw[len(envelopeHeader):]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(payload) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}

	nonce := payload[:aead.NonceSize()]
	sealed := payload[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
