package resultstore

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	s, err := Open("store", vfs.NewMem())
	require.NoError(t, err)
	defer s.Close()

	packed := []byte("XPKF not really")
	raw := bytes.Repeat([]byte("decoded output "), 1000)

	_, _, ok, err := s.Get(packed)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(packed, "XPK", raw))
	name, got, ok, err := s.Get(packed)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "XPK", name)
	assert.Equal(t, raw, got)

	_, _, ok, err = s.Get(append(packed, 0))
	require.NoError(t, err)
	assert.False(t, ok, "different input")

	require.NoError(t, s.Delete(packed))
	_, _, ok, err = s.Get(packed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyOutput(t *testing.T) {
	s, err := Open("store", vfs.NewMem())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte{0x1f, 0x9d, 0x90}, "Compress", nil))
	name, got, ok, err := s.Get([]byte{0x1f, 0x9d, 0x90})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Compress", name)
	assert.Empty(t, got)
}

func TestKeyDistinguishesLength(t *testing.T) {
	assert.NotEqual(t, Key([]byte{}), Key([]byte{0}))
	assert.Equal(t, Key([]byte("abc")), Key([]byte("abc")))
}
