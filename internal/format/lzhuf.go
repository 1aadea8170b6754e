package format

import (
	"sync"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/huffman"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

const (
	lzhufWindow   = 4096
	lzhufMaxMatch = 60
	lzhufFill     = ' '
)

// positionTable maps the first byte of an LZHUF position code to the
// top six bits of the position and the length of the prefix that encodes them.
type positionTable struct {
	code   [256]uint8
	length [256]uint8
}

// Prefix lengths of the 64 position codes, which are assigned canonically.
var positionLengths = [...]struct{ length, n int }{
	{3, 1}, {4, 3}, {5, 8}, {6, 12}, {7, 24}, {8, 16},
}

var lzhufPositions = sync.OnceValue(func() *positionTable {
	t := new(positionTable)
	code, length, k := 0, 3, 0
	for _, g := range positionLengths {
		code <<= g.length - length
		length = g.length
		for range g.n {
			lo := code << (8 - length)
			for i := lo; i < lo+1<<(8-length); i++ {
				t.code[i] = uint8(k)
				t.length[i] = uint8(length)
			}
			code++
			k++
		}
	}
	return t
})

// lzhufPosition reads a 12-bit window position: a prefix code for the top
// six bits and the low six bits verbatim.
func lzhufPosition(br *stream.MSBBitReader) int {
	t := lzhufPositions()
	i := br.ReadBits8(8)
	c := int(t.code[i]) << 6
	n := int(t.length[i]) - 2
	i = i<<n | br.ReadBits8(n)
	return c | int(i&0x3f)
}

// unlzhuf decodes adaptive-Huffman LZ77. Symbols below 256 are literals.
// With an end symbol, 256 ends the stream; otherwise the output size does.
// The remaining symbols are match lengths counting up from 3.
func unlzhuf(br *stream.MSBBitReader, out *stream.ForwardOutputStream, symbols int, end bool) {
	tree := huffman.NewDynamic(symbols, symbols)
	bit := huffman.BitFunc(br.ReadBit)
	firstMatch := 256
	if end {
		firstMatch = 257
	}
	for end || !out.EOF() {
		c := tree.Decode(bit)
		tree.Update(c)
		switch {
		case c < 256:
			out.WriteU8(uint8(c))
		case end && c == 256:
			return
		default:
			length := c - firstMatch + 3
			out.CopyWithFill(lzhufPosition(br)+1, length, lzhufFill)
		}
	}
}

func detectFreeze(hdr, footer uint32) bool {
	return hdr>>16 == 0x1f9e
}

// freeze is freeze 1.x: LZHUF with an end-of-stream symbol.
type freeze struct {
	sized
	packed *buffer.Buffer
}

const freezeSymbols = 256 + 1 + lzhufMaxMatch - 2

func newFreeze(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	if packed.ReadBE16(0) != 0x1f9e {
		errs.Throwf(errs.ErrInvalidFormat, "not a freeze 1 stream")
	}
	return &freeze{packed: packed}
}

func (f *freeze) Name() string { return "Freeze" }

func (f *freeze) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	in := stream.NewForwardInputStream(f.packed, 2, f.packed.Size())
	// encoders may stop short of the last byte the decoder reads ahead
	in.AllowOverrun(2)
	out := outputFor(raw)
	unlzhuf(stream.NewMSBBitReader(in), out, freezeSymbols, true)
	out.Finish()
	f.rawSize = len(out.Written())
	f.packedSize = min(in.Offset(), f.packed.Size())
	return nil
}

// LHLB chunks are LZHUF without an end symbol.
type xpkLHLB struct {
	packed *buffer.Buffer
}

const lhlbSymbols = 256 + lzhufMaxMatch - 2

func newXPKLHLB(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkLHLB{packed: packed}
}

func (d *xpkLHLB) SubName() string { return "XPK-LHLB" }

func (d *xpkLHLB) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	in := stream.NewForwardInputStream(d.packed, 0, d.packed.Size())
	in.AllowOverrun(2)
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())
	unlzhuf(stream.NewMSBBitReader(in), out, lhlbSymbols, false)
}
