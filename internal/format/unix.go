package format

import (
	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/huffman"
	"github.com/elliotnunn/unsqueeze/internal/lzw"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

const (
	compressBlockMode = 0x80
	compressBitsMask  = 0x1f
	compressClear     = 256
)

func detectCompress(hdr, footer uint32) bool {
	return hdr>>16 == 0x1f9d
}

// compress is a Unix .Z file.
type compress struct {
	sized
	packed    *buffer.Buffer
	maxBits   int
	blockMode bool
}

func newCompress(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	flags := packed.At(2)
	c := &compress{
		packed:    packed,
		maxBits:   int(flags & compressBitsMask),
		blockMode: flags&compressBlockMode != 0,
	}
	if c.maxBits < 9 || c.maxBits > 16 {
		errs.Throwf(errs.ErrInvalidFormat, "compress with %d-bit codes", c.maxBits)
	}
	if exactSize {
		c.packedSize = packed.Size()
	}
	return c
}

func (c *compress) Name() string { return "Compress" }

func (c *compress) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	in := stream.NewForwardInputStream(c.packed, 3, c.packed.Size())
	br := stream.NewLSBBitReader(in)
	out := outputFor(raw)

	first := 256
	if c.blockMode {
		first = 257
	}
	table := lzw.New(1<<c.maxBits-1, 256, 1<<c.maxBits, first)

	// Codes come in groups of eight of one width. A width change or a
	// clear abandons the rest of the group.
	nbits, count := 9, 0
	skip := func() {
		n := (8 - count%8) % 8 * nbits
		for n > 0 {
			k := min(n, 32, br.Available())
			if k == 0 {
				break
			}
			br.ReadBits8(k)
			n -= k
		}
		count = 0
	}

	for br.Available() >= nbits {
		code := int(br.ReadBits8(nbits))
		count++
		if c.blockMode && code == compressClear {
			skip()
			table.Reset(first)
			nbits = 9
			continue
		}
		table.Write(code, true, out.WriteU8)
		if table.Free() > 1<<nbits-1 && nbits < c.maxBits {
			skip()
			nbits++
		}
	}
	out.Finish()
	c.rawSize = len(out.Written())
	return nil
}

func detectPack(hdr, footer uint32) bool {
	return hdr>>16 == 0x1f1e
}

// pack is a System V packed file: one static Huffman code, given as
// leaf counts per level followed by the leaves in code order.
type pack struct {
	sized
	packed  *buffer.Buffer
	tree    *huffman.Decoder[int]
	leaves  []uint8
	dataOff int
}

const packMaxLevel = 24

func newPack(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	p := &pack{packed: packed}
	p.rawSize = int(packed.ReadBE32(2))
	checkSizes(0, p.rawSize)
	maxLev := int(packed.At(6))
	if maxLev < 1 || maxLev > packMaxLevel {
		errs.Throwf(errs.ErrInvalidFormat, "pack tree of %d levels", maxLev)
	}
	counts := make([]int, maxLev+1)
	for l := 1; l <= maxLev; l++ {
		counts[l] = int(packed.At(6 + l))
	}
	counts[maxLev] += 2 // stored less the end leaf and one more
	off := 7 + maxLev

	// a level's internal nodes are half the nodes of the level below
	intNodes := make([]int, maxLev+2)
	children := 0
	for l := maxLev; l >= 1; l-- {
		children /= 2
		intNodes[l] = children
		children += counts[l]
	}

	p.tree = new(huffman.Decoder[int])
	err := errs.Catch(func() {
		for l := 1; l <= maxLev; l++ {
			for j := range counts[l] {
				if l == maxLev && j == counts[l]-1 {
					p.tree.Insert(l, uint32(intNodes[l]+j), -1)
					break
				}
				p.tree.Insert(l, uint32(intNodes[l]+j), len(p.leaves))
				p.leaves = append(p.leaves, packed.At(off))
				off++
			}
		}
	})
	if err != nil {
		// the tree is part of the header
		errs.Throwf(errs.ErrInvalidFormat, "pack tree: %v", err)
	}
	p.dataOff = off
	return p
}

func (p *pack) Name() string { return "Pack" }

func (p *pack) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	checkRawSize(raw, p.rawSize)
	in := stream.NewForwardInputStream(p.packed, p.dataOff, p.packed.Size())
	br := stream.NewMSBBitReader(in)
	bit := huffman.BitFunc(br.ReadBit)
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())
	for {
		leaf := p.tree.Decode(bit)
		if leaf < 0 {
			break
		}
		out.WriteU8(p.leaves[leaf])
	}
	if !out.EOF() {
		errs.Throwf(errs.ErrDecompression, "pack stream ended after %d of %d bytes", out.Offset(), p.rawSize)
	}
	p.packedSize = in.Offset()
	return nil
}

func detectCompact(hdr, footer uint32) bool {
	return hdr>>16 == 0xff1f
}

// compact codes bytes with an adaptive Huffman tree that starts with only
// an escape symbol. The escape is followed by a new byte in 8 bits, which
// joins the tree.
type compact struct {
	sized
	packed *buffer.Buffer
}

const compactEscape = 0

func newCompact(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	c := &compact{packed: packed}
	c.rawSize = int(packed.ReadBE32(2))
	checkSizes(0, c.rawSize)
	return c
}

func (c *compact) Name() string { return "Compact" }

func (c *compact) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	checkRawSize(raw, c.rawSize)
	in := stream.NewForwardInputStream(c.packed, 6, c.packed.Size())
	br := stream.NewMSBBitReader(in)
	bit := huffman.BitFunc(br.ReadBit)
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())

	tree := huffman.NewDynamic(1, 257)
	symbols := []uint8{0} // byte for each symbol, the escape's unused
	var seen [256]bool
	for !out.EOF() {
		sym := tree.Decode(bit)
		tree.Update(sym)
		if sym != compactEscape {
			out.WriteU8(symbols[sym])
			continue
		}
		v := uint8(br.ReadBits8(8))
		if seen[v] {
			errs.Throwf(errs.ErrDecompression, "compact escape for known byte %#02x", v)
		}
		seen[v] = true
		tree.AddCode()
		symbols = append(symbols, v)
		out.WriteU8(v)
	}
	c.packedSize = in.Offset()
	return nil
}
