package format

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
)

var ppEfficiency = []byte{9, 10, 11, 11}

// literals "abc" then a six byte match three back, decoded from the end
var ppFields = [][2]int{
	{0, 1}, {2, 2}, {'c', 8}, {'b', 8}, {'a', 8},
	{3, 2}, {0, 1}, {2, 7}, {1, 3},
}

func TestPowerPacker(t *testing.T) {
	body, trailer := encodePowerPacker(ppFields, 9)
	packed := cat([]byte("PP20"), ppEfficiency, body, trailer)
	got, d := decompressAll(t, packed, true)
	assert.Equal(t, "PowerPacker", d.Name())
	assert.Equal(t, "abcabcabc", string(got))
	assert.Equal(t, 9, d.RawSize())

	_, err := Create(packed, false, false)
	assert.ErrorIs(t, err, errs.ErrInvalidFormat, "size must be exact")
}

func TestPowerPackerLiterals(t *testing.T) {
	// "hello" is one run of 1+3+1 literals, and needs skip bits
	fields := [][2]int{{0, 1}, {3, 2}, {1, 2}}
	for _, c := range []byte("olleh") {
		fields = append(fields, [2]int{int(c), 8})
	}
	body, trailer := encodePowerPacker(fields, 5)
	assert.NotZero(t, trailer[3], "skip bits")
	got, _ := decompressAll(t, cat([]byte("PP20"), ppEfficiency, body, trailer), true)
	assert.Equal(t, "hello", string(got))

	xpk := buildXPK("PWPK", []xpkChunk{{typ: chunkPacked, packed: cat(ppEfficiency, body, trailer), raw: []byte("hello")}})
	got, d := decompressAll(t, xpk, true)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, "XPK-PWPK", d.(SubNamer).SubName())
}

func TestXPKPowerPackerChunks(t *testing.T) {
	body, trailer := encodePowerPacker(ppFields, 9)
	first := cat(ppEfficiency, body, trailer)
	rest := cat(body, trailer)
	xpk := buildXPK("PWPK", []xpkChunk{
		{typ: chunkPacked, packed: first, raw: []byte("abcabcabc")},
		{typ: chunkStored, raw: []byte("--")},
		{typ: chunkPacked, packed: rest, raw: []byte("abcabcabc")},
	})
	got, d := decompressAll(t, xpk, true)
	assert.Equal(t, "abcabcabc--abcabcabc", string(got))

	var steps []byte
	for s := d.(Stepper).Steps(true); s != nil; {
		next, blob, err := s()
		steps = append(steps, blob...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		s = next
	}
	assert.Equal(t, string(got), string(steps))
}

func TestPowerPackerEfficiency(t *testing.T) {
	body, trailer := encodePowerPacker(ppFields, 9)
	_, err := Create(cat([]byte("PP20"), []byte{9, 10, 0, 11}, body, trailer), true, false)
	assert.ErrorIs(t, err, errs.ErrInvalidFormat)
}

func TestObfuscatedPowerPacker(t *testing.T) {
	body, trailer := encodePowerPacker(ppFields, 9)
	const key = 0x5a5a0000
	check := []byte{0x5a, 0x5a}
	packed := cat([]byte("PX20"), check, ppEfficiency, decrypt(body, key), trailer)
	got, _ := decompressAll(t, packed, true)
	assert.Equal(t, "abcabcabc", string(got))
}

func TestKeySearchOrder(t *testing.T) {
	plain := []byte("sixteen bytes!!!")
	const key = 0x12340003
	check := uint16(0x1234 ^ 0x0003)
	tries := 0
	got, ok := searchKey(buffer.WrapReadOnly(decrypt(plain, key)), check, func(b *buffer.Buffer) bool {
		tries++
		return bytes.Equal(b.Bytes(), plain)
	})
	require.True(t, ok)
	assert.Equal(t, uint32(key), got)
	assert.Equal(t, 4, tries)
}

func TestKeySearchExhausted(t *testing.T) {
	tries := 0
	_, ok := searchKey(buffer.WrapReadOnly([]byte{1, 2, 3, 4}), 0, func(*buffer.Buffer) bool {
		tries++
		return false
	})
	assert.False(t, ok)
	assert.Equal(t, KeySearchLimit, tries)

	// no key can decode an empty body into a byte
	packed := cat([]byte("PX20"), []byte{0, 0}, ppEfficiency, be32(1<<8))
	d, err := Create(packed, true, true)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Decompress(buffer.Wrap(make([]byte, 1)), true), errs.ErrDecompression)
}
