package infra

import (
	"encoding/hex"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyProvider(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T, provider *FileKeyProvider)
	}{
		{
			name: "KeyExists is false before the first store",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				assert.False(t, provider.KeyExists())
			},
		},
		{
			name: "StoreKey writes an owner-only hex file",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))

				info, err := os.Stat(provider.keyPath)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

				raw, err := os.ReadFile(provider.keyPath)
				require.NoError(t, err)
				assert.Equal(t, hex.EncodeToString(key), string(raw))
			},
		},
		{
			name: "GetKey round trips",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))

				got, err := provider.GetKey()
				require.NoError(t, err)
				assert.Equal(t, key, got)
			},
		},
		{
			name: "StoreKey rejects short keys",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				assert.Error(t, provider.StoreKey([]byte("short")))
			},
		},
		{
			name: "GetKey fails on a corrupt file",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				require.NoError(t, os.WriteFile(provider.keyPath, []byte("not-hex"), 0600))
				_, err := provider.GetKey()
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFn(t, NewFileKeyProvider(t.TempDir()))
		})
	}
}

func TestEnsureKey(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())

	first, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Len(t, first, keySize)

	second, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Equal(t, first, second, "second call must reuse the stored key")
}

func TestStaticKeyProvider(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	p, err := NewStaticKeyProvider(hex.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.True(t, p.KeyExists())

	got, err := p.GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Error(t, p.StoreKey(key))

	_, err = NewStaticKeyProvider("abcd")
	assert.Error(t, err)
}
