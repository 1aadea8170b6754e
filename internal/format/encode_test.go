package format

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/checksum"
	"github.com/elliotnunn/unsqueeze/internal/huffman"
)

// Encoders for the layouts that have no reference tool to hand.

type msbWriter struct {
	buf []byte
	n   int
}

func (w *msbWriter) bit(b uint32) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	w.buf[len(w.buf)-1] |= byte(b&1) << (7 - w.n%8)
	w.n++
}

func (w *msbWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit(v >> i)
	}
}

type lsbWriter struct {
	buf []byte
	n   int
}

func (w *lsbWriter) write(v uint32, n int) {
	for i := range n {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		w.buf[len(w.buf)-1] |= byte(v>>i&1) << (w.n % 8)
		w.n++
	}
}

func be16(v int) []byte { return binary.BigEndian.AppendUint16(nil, uint16(v)) }
func be32(v int) []byte { return binary.BigEndian.AppendUint32(nil, uint32(v)) }

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// lzwCodes is a plain LZW encoder whose table numbering matches the decoder.
func lzwCodes(s []byte, maxCode, firstCode int) []int {
	dict := map[string]int{}
	next := firstCode
	code := func(w string) int {
		if len(w) == 1 {
			return int(w[0])
		}
		return dict[w]
	}
	var out []int
	w := ""
	for i := range s {
		wc := w + string(s[i])
		if _, ok := dict[wc]; ok || len(wc) == 1 {
			w = wc
			continue
		}
		out = append(out, code(w))
		if next <= maxCode {
			dict[wc] = next
			next++
		}
		w = string(s[i])
	}
	if w != "" {
		out = append(out, code(w))
	}
	return out
}

// token is a literal byte, or a match when length is nonzero.
type token struct {
	lit              byte
	distance, length int
}

func lit(s string) []token {
	var t []token
	for i := range len(s) {
		t = append(t, token{lit: s[i]})
	}
	return t
}

func positionCode(top int) (code uint32, length int) {
	c, l, k := 0, 3, 0
	for _, g := range positionLengths {
		c <<= g.length - l
		l = g.length
		for range g.n {
			if k == top {
				return uint32(c), l
			}
			c++
			k++
		}
	}
	panic("position out of range")
}

func encodeLZHUF(tokens []token, symbols int, end bool) []byte {
	w := new(msbWriter)
	tree := huffman.NewDynamic(symbols, symbols)
	put := func(sym int) {
		code, n := tree.Code(sym)
		w.write(code, n)
		tree.Update(sym)
	}
	firstMatch := 256
	if end {
		firstMatch = 257
	}
	for _, tk := range tokens {
		if tk.length == 0 {
			put(int(tk.lit))
			continue
		}
		put(firstMatch + tk.length - 3)
		pos := tk.distance - 1
		code, n := positionCode(pos >> 6)
		w.write(code, n)
		w.write(uint32(pos&0x3f), 6)
	}
	if end {
		put(256)
	}
	return w.buf
}

// arithmeticEncoder is the encoder matching rangecoder.Decoder.
type arithmeticEncoder struct {
	low, high uint32
	pending   int
	w         msbWriter
}

func (e *arithmeticEncoder) emit(bit uint32) {
	e.w.bit(bit)
	for ; e.pending > 0; e.pending-- {
		e.w.bit(bit ^ 1)
	}
}

func (e *arithmeticEncoder) encode(low, high, total uint32) {
	span := e.high - e.low + 1
	e.high = e.low + span*high/total - 1
	e.low += span * low / total
	for {
		switch {
		case e.high < 0x8000:
			e.emit(0)
		case e.low >= 0x8000:
			e.emit(1)
			e.low -= 0x8000
			e.high -= 0x8000
		case e.low >= 0x4000 && e.high < 0xc000:
			e.pending++
			e.low -= 0x4000
			e.high -= 0x4000
		default:
			return
		}
		e.low <<= 1
		e.high = e.high<<1 | 1
	}
}

func (e *arithmeticEncoder) finish() []byte {
	e.pending++
	if e.low < 0x4000 {
		e.emit(0)
	} else {
		e.emit(1)
	}
	return e.w.buf
}

// encodeArithmetic codes one ARTM chunk, continuing model.
func encodeArithmetic(model *arithmeticModel, s []byte) []byte {
	e := &arithmeticEncoder{high: 0xffff}
	for _, b := range s {
		sym := int(b)
		low := uint32(0)
		for i := range sym {
			low += model.tree.Get(i)
		}
		e.encode(low, low+model.tree.Get(sym), model.tree.Total())
		model.update(sym)
	}
	return e.finish()
}

// encodePowerPacker lays out fields, given in stream order, as a
// PowerPacker body read backward from its end.
func encodePowerPacker(fields [][2]int, rawSize int) (body, trailer []byte) {
	var bits []uint8
	for _, f := range fields {
		v, n := f[0], f[1]
		for i := n - 1; i >= 0; i-- {
			bits = append(bits, uint8(v>>i&1))
		}
	}
	skip := (8 - len(bits)%8) % 8
	bits = append(make([]uint8, skip), bits...)
	body = make([]byte, len(bits)/8)
	for i, b := range bits {
		body[len(body)-1-i/8] |= b << (i % 8)
	}
	return body, be32(rawSize<<8 | skip)
}

// xpkChunk is one chunk for buildXPK. A stored chunk has no packed form.
type xpkChunk struct {
	typ    uint8
	packed []byte
	raw    []byte
}

func buildXPK(tag string, chunks []xpkChunk) []byte {
	var body []byte
	ulen := 0
	var initial []byte
	for _, c := range chunks {
		payload := c.packed
		if c.typ == chunkStored {
			payload = c.raw
		}
		padded := append([]byte(nil), payload...)
		for len(padded)%4 != 0 {
			padded = append(padded, 0)
		}
		hdr := cat([]byte{c.typ, 0}, be16(int(checksum.XOR16(padded))), be16(len(payload)), be16(len(c.raw)))
		hdr[1] = checksum.XOR8(hdr)
		body = append(body, hdr...)
		body = append(body, padded...)
		ulen += len(c.raw)
		initial = append(initial, c.raw...)
	}
	end := []byte{chunkEnd, 0, 0, 0, 0, 0, 0, 0}
	end[1] = checksum.XOR8(end)
	body = append(body, end...)

	initial = append(initial, make([]byte, 16)...)[:16]
	hdr := cat([]byte("XPKF"), be32(xpkHeaderSize+len(body)-8), []byte(tag), be32(ulen), initial, []byte{0, 0, 0, 0})
	hdr[33] = checksum.XOR8(hdr)
	return append(hdr, body...)
}

// decompressAll runs Create and Decompress the way a caller would.
func decompressAll(t *testing.T, packed []byte, exactSize bool) ([]byte, Decompressor) {
	t.Helper()
	d, err := Create(packed, exactSize, true)
	require.NoError(t, err)
	var raw *buffer.Buffer
	if n := d.RawSize(); n > 0 {
		raw = buffer.Wrap(make([]byte, n))
	} else {
		raw = buffer.New(0, MaxRawSize)
	}
	require.NoError(t, d.Decompress(raw, true))
	return raw.Bytes(), d
}
