package format

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
)

// produced by bzip2 -9
var bzip2Vectors = []struct {
	name, hex string
	want      []byte
}{
	{
		"short",
		"425a683931415926535954a49784000002d180001040040644908020003100302068620049d4b21f3f17724538509054a49784",
		[]byte("hello, world\n"),
	},
	{
		"runs",
		"425a68393141592653597a1cfcdb0000018181a000007000800008200030c002950c9b674b90b7116a2c3e2ee48a70a120f439f9b6",
		append(bytes.Repeat([]byte("a"), 1000), bytes.Repeat([]byte("xyz"), 50)...),
	},
}

func unhex(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestBZip2(t *testing.T) {
	for _, v := range bzip2Vectors {
		t.Run(v.name, func(t *testing.T) {
			packed := unhex(t, v.hex)
			got, d := decompressAll(t, packed, true)
			assert.Equal(t, "BZip2", d.Name())
			assert.Equal(t, v.want, got)
			assert.Equal(t, len(packed), d.PackedSize())

			xpk := buildXPK("BZP2", []xpkChunk{{typ: chunkPacked, packed: packed, raw: v.want}})
			got, _ = decompressAll(t, xpk, true)
			assert.Equal(t, v.want, got)
		})
	}
}

func TestBZip2Corrupt(t *testing.T) {
	packed := unhex(t, bzip2Vectors[0].hex)
	bad := bytes.Clone(packed)
	bad[10] ^= 0x01 // block CRC
	d, err := Create(bad, true, true)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Decompress(buffer.New(0, MaxRawSize), true), errs.ErrVerification)

	for n := 4; n < len(packed); n += 7 {
		d, err := Create(packed[:n], false, false)
		require.NoError(t, err)
		err = d.Decompress(buffer.New(0, MaxRawSize), true)
		assert.ErrorIs(t, err, errs.ErrDecompression, "truncated to %d", n)
	}
}
