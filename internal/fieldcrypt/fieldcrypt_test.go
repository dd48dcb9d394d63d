package fieldcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboardingportal/internal/platform/config"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func newTestRing(t *testing.T) *Keyring {
	t.Helper()
	ring, err := NewKeyring(map[string][]byte{"1": testKey(t)}, "1")
	require.NoError(t, err)
	return ring
}

func TestSealOpenRoundTrip(t *testing.T) {
	ring := newTestRing(t)

	sealed, err := ring.Seal("123.456.789-09")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
	assert.NotContains(t, sealed, "123.456")

	opened, err := ring.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "123.456.789-09", opened)
}

func TestSealEmptyValue(t *testing.T) {
	ring := newTestRing(t)

	sealed, err := ring.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := ring.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestSealProducesUniqueCiphertexts(t *testing.T) {
	ring := newTestRing(t)

	first, err := ring.Seal("same plaintext")
	require.NoError(t, err)
	second, err := ring.Seal("same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "nonce must make ciphertexts unique")
}

func TestRotationKeepsOldRowsReadable(t *testing.T) {
	oldKey, newKey := testKey(t), testKey(t)

	oldRing, err := NewKeyring(map[string][]byte{"1": oldKey}, "1")
	require.NoError(t, err)
	sealed, err := oldRing.Seal("patient phone 11987654321")
	require.NoError(t, err)

	// Rotation: add key 2, flip active. Key 1 stays for reads.
	rotated, err := NewKeyring(map[string][]byte{"1": oldKey, "2": newKey}, "2")
	require.NoError(t, err)

	opened, err := rotated.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "patient phone 11987654321", opened)

	resealed, err := rotated.Seal(opened)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resealed, "v2:"))
}

func TestOpenUnknownKeyVersion(t *testing.T) {
	ring := newTestRing(t)
	sealed, err := ring.Seal("value")
	require.NoError(t, err)

	other, err := NewKeyring(map[string][]byte{"9": testKey(t)}, "9")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestOpenMalformedPayloads(t *testing.T) {
	ring := newTestRing(t)

	for _, sealed := range []string{
		"no-version-prefix",
		"v1:not base64!!!",
		"v1:" + base64.RawStdEncoding.EncodeToString([]byte("short")),
		"x1:abcd",
	} {
		_, err := ring.Open(sealed)
		assert.ErrorIs(t, err, ErrMalformed, sealed)
	}
}

func TestOpenTamperedCiphertext(t *testing.T) {
	ring := newTestRing(t)
	sealed, err := ring.Seal("sensitive")
	require.NoError(t, err)

	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, "v1:"))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := "v1:" + base64.RawStdEncoding.EncodeToString(raw)

	_, err = ring.Open(tampered)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestFromConfig(t *testing.T) {
	k1 := base64.StdEncoding.EncodeToString(testKey(t))
	k2 := base64.StdEncoding.EncodeToString(testKey(t))

	ring, err := FromConfig(config.Crypto{
		Keys:      "1:" + k1 + ", 2:" + k2,
		ActiveKey: "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "2", ring.ActiveKeyID())

	_, err = FromConfig(config.Crypto{Keys: "", ActiveKey: "1"})
	assert.Error(t, err)

	_, err = FromConfig(config.Crypto{Keys: "1:" + k1, ActiveKey: "7"})
	assert.Error(t, err)
}

func TestBlindIndexNormalizes(t *testing.T) {
	idx := NewIndexer("test-pepper")

	assert.Equal(t, idx.Hash("User@Example.com"), idx.Hash("  user@example.com "))
	assert.NotEqual(t, idx.Hash("user@example.com"), idx.Hash("other@example.com"))

	// Different peppers must not collide.
	other := NewIndexer("another-pepper")
	assert.NotEqual(t, idx.Hash("user@example.com"), other.Hash("user@example.com"))
}
