// Package fieldcrypt seals sensitive columns with AES-256-GCM before they
// reach storage. Ciphertexts carry a key version prefix so the key ring can
// rotate without re-encrypting existing rows.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"strings"

	"onboardingportal/internal/platform/config"
)

const keySize = 32

// Keyring holds the versioned AEADs. The active key seals new values; any
// ring key may open.
type Keyring struct {
	aeads  map[string]cipher.AEAD
	active string
}

// NewKeyring builds a key ring from id->raw-key pairs. Every key must be
// exactly 32 bytes (AES-256) and active must name a ring member.
func NewKeyring(keys map[string][]byte, active string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("fieldcrypt: key ring is empty")
	}
	aeads := make(map[string]cipher.AEAD, len(keys))
	for id, raw := range keys {
		if id == "" || strings.Contains(id, ":") {
			return nil, fmt.Errorf("fieldcrypt: invalid key id %q", id)
		}
		if len(raw) != keySize {
			return nil, fmt.Errorf("fieldcrypt: key %q must be %d bytes, got %d", id, keySize, len(raw))
		}
		block, err := aes.NewCipher(raw)
		if err != nil {
			return nil, fmt.Errorf("fieldcrypt: new cipher for key %q: %w", id, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("fieldcrypt: new gcm for key %q: %w", id, err)
		}
		aeads[id] = aead
	}
	if _, ok := aeads[active]; !ok {
		return nil, fmt.Errorf("fieldcrypt: active key %q not in ring", active)
	}
	return &Keyring{aeads: aeads, active: active}, nil
}

// FromConfig parses the FIELD_KEYS format: comma separated id:base64 pairs.
func FromConfig(cfg config.Crypto) (*Keyring, error) {
	if cfg.Keys == "" {
		return nil, fmt.Errorf("fieldcrypt: FIELD_KEYS is not configured")
	}
	keys := make(map[string][]byte)
	for _, pair := range strings.Split(cfg.Keys, ",") {
		id, encoded, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("fieldcrypt: malformed key entry %q", pair)
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("fieldcrypt: decode key %q: %w", id, err)
		}
		keys[id] = raw
	}
	return NewKeyring(keys, cfg.ActiveKey)
}

// ActiveKeyID reports which ring key seals new values.
func (k *Keyring) ActiveKeyID() string { return k.active }
