package format

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/huffman"
)

// compressWriter lays out .Z codes the way the decoder expects to find them.
type compressWriter struct {
	w                  lsbWriter
	maxBits, nbits     int
	free, first, count int
	blockMode, started bool
}

func newCompressWriter(maxBits int, blockMode bool) *compressWriter {
	c := &compressWriter{maxBits: maxBits, blockMode: blockMode, nbits: 9, first: 256}
	flags := byte(maxBits)
	if blockMode {
		flags |= compressBlockMode
		c.first = 257
	}
	c.w.buf = []byte{0x1f, 0x9d, flags}
	c.w.n = 24
	c.free = c.first
	return c
}

func (c *compressWriter) pad() {
	c.w.write(0, (8-c.count%8)%8*c.nbits)
	c.count = 0
}

func (c *compressWriter) codes(s []byte) {
	for _, code := range lzwCodes(s, 1<<c.maxBits-1, c.first) {
		c.w.write(uint32(code), c.nbits)
		c.count++
		if c.started && c.free < 1<<c.maxBits {
			c.free++
		}
		c.started = true
		if c.free > 1<<c.nbits-1 && c.nbits < c.maxBits {
			c.pad()
			c.nbits++
		}
	}
}

func (c *compressWriter) clear() {
	c.w.write(compressClear, c.nbits)
	c.count++
	c.pad()
	c.nbits, c.free, c.started = 9, c.first, false
}

func randomText(n int, alphabet string) []byte {
	rng := rand.New(rand.NewPCG(3, 4))
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.IntN(len(alphabet))]
	}
	return b
}

func TestCompress(t *testing.T) {
	text := randomText(30000, "abcd")
	for _, blockMode := range []bool{false, true} {
		c := newCompressWriter(12, blockMode)
		c.codes(text)
		got, d := decompressAll(t, c.w.buf, false)
		assert.Equal(t, "Compress", d.Name())
		assert.Equal(t, text, got, "block mode %v", blockMode)
		assert.Equal(t, len(text), d.RawSize())
	}
}

func TestCompressClear(t *testing.T) {
	a, b := randomText(5000, "xyz"), randomText(3000, "pqrs")
	c := newCompressWriter(16, true)
	c.codes(a)
	c.clear()
	c.codes(b)
	got, _ := decompressAll(t, c.w.buf, false)
	assert.Equal(t, append(a, b...), got)
}

func TestCompressBadWidth(t *testing.T) {
	_, err := Create([]byte{0x1f, 0x9d, 0x88, 0, 0}, false, false)
	assert.ErrorIs(t, err, errs.ErrInvalidFormat)
	assert.False(t, Detect([]byte{0x1f, 0x9d, 0x91}))
}

func TestPack(t *testing.T) {
	// a=1, b=00, end=01
	packed := []byte{0x1f, 0x1e, 0, 0, 0, 3, 2, 1, 0, 'a', 'b', 0xc4}
	got, d := decompressAll(t, packed, true)
	assert.Equal(t, "Pack", d.Name())
	assert.Equal(t, "aab", string(got))
	assert.Equal(t, 3, d.RawSize())
	assert.Equal(t, len(packed), d.PackedSize())

	// the end leaf comes too soon
	packed[5] = 4
	d, err := Create(packed, true, true)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Decompress(buffer.Wrap(make([]byte, 4)), true), errs.ErrDecompression)
}

func encodeCompact(s []byte) []byte {
	w := new(msbWriter)
	tree := huffman.NewDynamic(1, 257)
	put := func(sym int) {
		code, n := tree.Code(sym)
		w.write(code, n)
		tree.Update(sym)
	}
	syms := map[byte]int{}
	for _, b := range s {
		if sym, ok := syms[b]; ok {
			put(sym)
			continue
		}
		put(compactEscape)
		w.write(uint32(b), 8)
		syms[b] = tree.AddCode()
	}
	return append(cat([]byte{0xff, 0x1f}, be32(len(s))), w.buf...)
}

func TestCompactVector(t *testing.T) {
	// escape costs nothing while it is alone, then 0 is 'a' and 1 escapes
	packed := []byte{0xff, 0x1f, 0, 0, 0, 3, 0x61, 0x58, 0x80}
	got, _ := decompressAll(t, packed, true)
	assert.Equal(t, "aab", string(got))
}

func TestCompact(t *testing.T) {
	for name, text := range map[string][]byte{
		"one byte": []byte("x"),
		"prose":    []byte("she sells sea shells by the sea shore"),
		"random":   randomText(20000, "0123456789abcdef"),
	} {
		t.Run(name, func(t *testing.T) {
			got, d := decompressAll(t, encodeCompact(text), true)
			assert.Equal(t, "Compact", d.Name())
			assert.Equal(t, text, got)
		})
	}
}
