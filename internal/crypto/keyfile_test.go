package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	data, err := SealKey("0x"+testKey, "hunter2", 1000)
	require.NoError(t, err)

	addr, err := KeyFileAddress(data)
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr.Hex())

	key, err := OpenKey(data, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	_, err = OpenKey(data, "wrong")
	assert.ErrorContains(t, err, "wrong password")
}

func TestSealKeyRejects(t *testing.T) {
	_, err := SealKey(testKey, "", 1000)
	assert.Error(t, err)

	_, err = SealKey("zz", "pw", 1000)
	assert.Error(t, err)
}

func TestOpenKeyRejectsTamperedAddress(t *testing.T) {
	data, err := SealKey(testKey, "pw", 1000)
	require.NoError(t, err)

	tampered := []byte(strings.Replace(string(data), testAddress, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", 1))
	_, err = OpenKey(tampered, "pw")
	assert.Error(t, err)
}

func TestLoadKey(t *testing.T) {
	key, err := LoadKey(KeySource{RawPrivateKey: "0x" + testKey})
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	data, err := SealKey(testKey, "pw", 1000)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	key, err = LoadKey(KeySource{KeyFile: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	_, err = LoadKey(KeySource{})
	assert.ErrorContains(t, err, "no private key source")
}
