// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"math/bits"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/lzw"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

// FAST keeps literals and match words at the front of the chunk and the
// flag bits, in big-endian words, at the back. The two meet in the middle.
// A match word holds distance-1 in its top 12 bits and length-3 in the bottom 4,
// and may reach back into the previous chunk.
type xpkFast struct {
	packed *buffer.Buffer
}

const (
	fastMinMatch = 3
	fastWindow   = 4096
)

func newXPKFast(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkFast{packed: packed}
}

func (d *xpkFast) SubName() string { return "XPK-FAST" }

func (d *xpkFast) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	n := d.packed.Size()
	fwd := stream.NewForwardInputStream(d.packed, 0, n)
	back := stream.NewBackwardInputStream(d.packed, 0, n)
	stream.Link(fwd, back)
	flags := stream.NewMSBBitReader(back)
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())

	for !out.EOF() {
		if flags.ReadBitsBE16(1) == 0 {
			out.WriteU8(fwd.ReadU8())
			continue
		}
		w := int(fwd.ReadBE16())
		distance := w>>4 + 1
		count := w&15 + fastMinMatch
		if count > raw.Size()-out.Offset() {
			errs.Throwf(errs.ErrDecompression, "FAST match of %d bytes overflows chunk", count)
		}
		out.CopyWithPrevious(distance, count, previous)
	}
}

// BLZW is LZW with codes packed most significant bit first. The chunk
// starts with the largest code width as a big-endian word. Codes widen as
// soon as the next table entry needs another bit.
type xpkBLZW struct {
	packed *buffer.Buffer
}

func newXPKBLZW(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkBLZW{packed: packed}
}

func (d *xpkBLZW) SubName() string { return "XPK-BLZW" }

func (d *xpkBLZW) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	in := stream.NewForwardInputStream(d.packed, 0, d.packed.Size())
	maxBits := int(in.ReadBE16())
	if maxBits < 9 || maxBits > 16 {
		errs.Throwf(errs.ErrDecompression, "BLZW code width %d", maxBits)
	}
	table := lzw.New(1<<maxBits-1, 256, 1<<maxBits, 256)
	br := stream.NewMSBBitReader(in)
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())
	for !out.EOF() {
		width := min(max(9, bits.Len(uint(table.Free()))), maxBits)
		code := br.ReadBits8(width)
		table.Write(int(code), true, out.WriteU8)
	}
}
