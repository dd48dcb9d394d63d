package fieldcrypt

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Indexer derives deterministic blind-index hashes so encrypted columns
// stay queryable by equality (email, document numbers) without storing
// plaintext.
type Indexer struct {
	pepper []byte
}

// NewIndexer builds an Indexer with a deployment-wide pepper. The pepper
// keeps the hashes from being reversed by dictionary lookup against known
// identifier formats.
func NewIndexer(pepper string) *Indexer {
	return &Indexer{pepper: []byte(pepper)}
}

// Hash returns the hex blind index for value. Values are lowercased and
// trimmed first so lookups are case-insensitive.
func (i *Indexer) Hash(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	h := sha256.New()
	h.Write(i.pepper)
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}
