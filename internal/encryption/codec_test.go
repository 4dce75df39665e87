package encryption

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	codec, err := NewCodecFromHex(key)
	require.NoError(t, err)
	return codec
}

func TestNewCodec_KeySize(t *testing.T) {
	_, err := NewCodec(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewCodecFromHex("not-hex")
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewCodec(make([]byte, 32))
	assert.NoError(t, err)
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	tests := []struct {
		name  string
		value any
	}{
		{"string", "hello"},
		{"number", 42.5},
		{"bool", true},
		{"null", nil},
		{"empty object", map[string]any{}},
		{"nested", map[string]any{
			"access_token": "AT1",
			"expires_in":   3600.0,
			"data":         map[string]any{"team": []any{"a", "b"}},
		}},
		{"unicode", "連線 ✓"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := codec.Encrypt(tt.value)
			require.NoError(t, err)

			iv, err := hex.DecodeString(obj.IV)
			require.NoError(t, err)
			assert.Len(t, iv, 16)

			var out any
			require.NoError(t, codec.Decrypt(obj, &out))
			assert.Equal(t, tt.value, out)
		})
	}
}

func TestCodec_FreshIVPerCall(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.Encrypt("same")
	require.NoError(t, err)
	b, err := codec.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Data, b.Data)
}

func TestCodec_DecryptToString(t *testing.T) {
	codec := newTestCodec(t)

	obj, err := codec.Encrypt(map[string]string{"k": "v"})
	require.NoError(t, err)

	s, err := codec.DecryptToString(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, s)
}

func TestCodec_DecryptFailures(t *testing.T) {
	codec := newTestCodec(t)
	obj, err := codec.Encrypt(map[string]string{"access_token": "AT1"})
	require.NoError(t, err)

	tamper := func(s string) string {
		b, _ := hex.DecodeString(s)
		b[0] ^= 0xff
		return hex.EncodeToString(b)
	}

	tests := []struct {
		name string
		obj  models.EncryptedObject
	}{
		{"tampered ciphertext", models.EncryptedObject{IV: obj.IV, Data: tamper(obj.Data)}},
		{"tampered iv", models.EncryptedObject{IV: tamper(obj.IV), Data: obj.Data}},
		{"short iv", models.EncryptedObject{IV: obj.IV[:16], Data: obj.Data}},
		{"non-hex iv", models.EncryptedObject{IV: strings.Repeat("z", 32), Data: obj.Data}},
		{"non-hex data", models.EncryptedObject{IV: obj.IV, Data: "xyz"}},
		{"truncated data", models.EncryptedObject{IV: obj.IV, Data: obj.Data[:8]}},
		{"empty", models.EncryptedObject{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out any
			err := codec.Decrypt(tt.obj, &out)
			assert.ErrorIs(t, err, ErrDecryption)
			assert.ErrorIs(t, err, core.ErrDecryption)
		})
	}

	t.Run("wrong key", func(t *testing.T) {
		other := newTestCodec(t)
		_, err := other.DecryptToString(obj)
		assert.ErrorIs(t, err, ErrDecryption)
	})
}

func TestCodec_DecryptValueChecksTag(t *testing.T) {
	codec := newTestCodec(t)

	obj, err := codec.Encrypt(&models.SecretTextValue{Type: models.ConnectionTypeSecretText, SecretText: "sk"})
	require.NoError(t, err)

	v, err := codec.DecryptValue(obj, models.ConnectionTypeSecretText)
	require.NoError(t, err)
	assert.Equal(t, "sk", v.(*models.SecretTextValue).SecretText)

	_, err = codec.DecryptValue(obj, models.ConnectionTypeOAuth2)
	assert.ErrorIs(t, err, ErrDecryption)
}
