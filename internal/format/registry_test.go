package format

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, 11)
	assert.Equal(t, "ZLib", names[len(names)-1], "weakest detection goes last")
}

func samples(t *testing.T) map[string][]byte {
	body, trailer := encodePowerPacker(ppFields, 9)
	return map[string][]byte{
		"BZip2":       unhex(t, bzip2Vectors[0].hex),
		"Compact":     encodeCompact([]byte("compact")),
		"DMS":         buildDMS(0, 0, []dmsTestTrack{rleTrack(0, 7)}),
		"Freeze":      append([]byte{0x1f, 0x9e}, encodeLZHUF(lit("freeze"), freezeSymbols, true)...),
		"GZip":        gzipped(t, []byte("gzip"), 9, ""),
		"ICE":         iceSample,
		"Pack":        {0x1f, 0x1e, 0, 0, 0, 3, 2, 1, 0, 'a', 'b', 0xc4},
		"PowerPacker": cat([]byte("PP20"), ppEfficiency, body, trailer),
		"XPK":         buildXPK("NONE", []xpkChunk{{typ: chunkPacked, packed: []byte("x"), raw: []byte("x")}}),
	}
}

func TestDetect(t *testing.T) {
	for name, packed := range samples(t) {
		t.Run(name, func(t *testing.T) {
			require.True(t, Detect(packed))
			a, err := Create(packed, true, true)
			require.NoError(t, err)
			b, err := Create(packed, true, true)
			require.NoError(t, err)
			assert.Equal(t, name, a.Name())
			assert.Equal(t, a.Name(), b.Name())
			assert.Equal(t, a.PackedSize(), b.PackedSize())
			assert.Equal(t, a.RawSize(), b.RawSize())
		})
	}
}

func TestDetectJunk(t *testing.T) {
	for _, junk := range [][]byte{nil, {0}, []byte("XPK"), []byte("plain text file"), bytes.Repeat([]byte{0xff}, 64)} {
		assert.False(t, Detect(junk), "%q", junk)
		_, err := Create(junk, false, false)
		assert.ErrorIs(t, err, errs.ErrInvalidFormat, "%q", junk)
	}
}

func TestDetectHeaderOnly(t *testing.T) {
	for _, packed := range [][]byte{[]byte("PP20"), []byte("XPKF"), {0x1f, 0x8b, 8}} {
		assert.True(t, Detect(packed), "%q", packed)
		_, err := Create(packed, true, false)
		assert.ErrorIs(t, err, errs.ErrInvalidFormat, "%q", packed)
	}
}

func decompressQuietly(d Decompressor) ([]byte, error) {
	raw := buffer.New(d.RawSize(), MaxRawSize)
	err := d.Decompress(raw, true)
	return raw.Bytes(), err
}

// A cut-short stream is an error, never a crash. Formats that end with a
// size or a check always notice.
func TestTruncations(t *testing.T) {
	mayPass := map[string]bool{"Freeze": true, "PowerPacker": true}
	for name, packed := range samples(t) {
		t.Run(name, func(t *testing.T) {
			for n := range len(packed) {
				cut := packed[:n]
				d, err := Create(cut, true, false)
				if err != nil {
					assert.ErrorIs(t, err, errs.ErrInvalidFormat, "cut to %d", n)
					continue
				}
				_, err = decompressQuietly(d)
				if err == nil {
					assert.True(t, mayPass[name], "cut to %d decoded", n)
					continue
				}
				assert.True(t, errors.Is(err, errs.ErrDecompression) || errors.Is(err, errs.ErrVerification), "cut to %d: %v", n, err)
			}
		})
	}
}

func TestFuzzedHeaders(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	for name, packed := range samples(t) {
		for range 200 {
			b := bytes.Clone(packed)
			b[rng.IntN(len(b))] ^= byte(1 + rng.IntN(255))
			d, err := Create(b, true, rng.IntN(2) == 0)
			if err != nil {
				assert.ErrorIs(t, err, errs.ErrUnsqueeze, name)
				continue
			}
			if d.RawSize() > 1<<20 {
				continue
			}
			_, err = decompressQuietly(d)
			if err != nil {
				assert.ErrorIs(t, err, errs.ErrUnsqueeze, name)
			}
		}
	}
}
