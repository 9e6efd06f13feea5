package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	for _, tt := range []struct {
		name      string
		secretKey string
		plaintext string
	}{
		{
			name:      "shorter secret than plaintext",
			secretKey: "abc",
			plaintext: "helloworld",
		},
		{
			name:      "longer secret than plaintext",
			secretKey: "abcdefghijklmn",
			plaintext: "hello",
		},
		{
			name:      "long plaintext",
			secretKey: "mykey",
			plaintext: strings.Repeat("hello", 2000),
		},
		{
			name:      "64 byte cookie key",
			secretKey: strings.Repeat("k", 64),
			plaintext: `{"login":"admin","roles":["ADMINS"]}`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := New(StaticSource([]byte(tt.secretKey)))
			require.NoError(t, err)

			b, err := enc.Encrypt([]byte(tt.plaintext), nil)
			require.NoError(t, err)

			decenc, err := enc.Decrypt(b, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, string(decenc))
		})
	}
}

func TestDecryptAcrossInstances(t *testing.T) {
	key := []byte(strings.Repeat("s", 64))
	first, err := New(StaticSource(key))
	require.NoError(t, err)
	second, err := New(StaticSource(key))
	require.NoError(t, err)

	b, err := first.EncryptToString([]byte("shared state"), nil)
	require.NoError(t, err)
	plain, err := second.DecryptString(b, nil)
	require.NoError(t, err)
	assert.Equal(t, "shared state", string(plain))
}

func TestDecryptWrongKey(t *testing.T) {
	enc, err := New(StaticSource([]byte("first key")))
	require.NoError(t, err)
	other, err := New(StaticSource([]byte("second key")))
	require.NoError(t, err)

	b, err := enc.Encrypt([]byte("hello"), nil)
	require.NoError(t, err)
	_, err = other.Decrypt(b, nil)
	assert.Error(t, err)
}

func TestDecryptGarbage(t *testing.T) {
	enc, err := New(StaticSource([]byte("key")))
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte("short"), nil)
	assert.Error(t, err)
	_, err = enc.DecryptString("not hex at all", nil)
	assert.Error(t, err)
}

func TestAdditionalDataBindsName(t *testing.T) {
	enc, err := New(StaticSource([]byte("key")))
	require.NoError(t, err)

	b, err := enc.EncryptToString([]byte("payload"), []byte("ATRIUM_AUTH"))
	require.NoError(t, err)

	plain, err := enc.DecryptString(b, []byte("ATRIUM_AUTH"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	_, err = enc.DecryptString(b, []byte("SHARE_TOKEN"))
	assert.Error(t, err, "a value issued under one name must not decrypt under another")
}

func TestEmptySecret(t *testing.T) {
	_, err := New(StaticSource(nil))
	assert.Error(t, err)
}

func TestRandomString(t *testing.T) {
	a := RandomString(16)
	b := RandomString(16)
	assert.Len(t, a, 16)
	assert.Len(t, b, 16)
	assert.NotEqual(t, a, b)
	assert.Len(t, RandomString(64), 64)
}
