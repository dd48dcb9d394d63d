package fieldcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrUnknownKey means the ciphertext was sealed by a key no longer in
	// the ring.
	ErrUnknownKey = errors.New("fieldcrypt: unknown key version")
	// ErrMalformed means the stored value is not a valid sealed payload.
	ErrMalformed = errors.New("fieldcrypt: malformed sealed value")
	// ErrDecrypt means GCM authentication failed (wrong key or tampering).
	ErrDecrypt = errors.New("fieldcrypt: decryption failed")
)

// Seal encrypts one plaintext value with the active key. The result is
// "v<keyID>:base64(nonce||ciphertext)". Empty plaintext stays empty so
// optional columns round-trip as-is.
func (k *Keyring) Seal(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	aead := k.aeads[k.active]

	// AES-GCM requires a unique nonce per encryption under the same key.
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: read nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, []byte(value), nil)
	payload := append(nonce, ciphertext...)
	return "v" + k.active + ":" + base64.RawStdEncoding.EncodeToString(payload), nil
}

// Open decrypts one previously sealed value, accepting any ring key.
func (k *Keyring) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	version, encoded, ok := strings.Cut(sealed, ":")
	if !ok || !strings.HasPrefix(version, "v") {
		return "", ErrMalformed
	}
	aead, exists := k.aeads[strings.TrimPrefix(version, "v")]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, version)
	}

	payload, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformed
	}
	nonceSize := aead.NonceSize()
	if len(payload) < nonceSize {
		return "", ErrMalformed
	}

	plaintext, err := aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
