// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"math/bits"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

const iceHeaderSize = 12

func detectICE(hdr, footer uint32) bool {
	return hdr == fourCC("ICE!") || hdr == fourCC("Ice!")
}

// ice is a Pack-Ice 2.x file. It is decoded from the end of both the
// packed data and the output, with literals taken from the same
// stream as the bits.
type ice struct {
	sized
	packed *buffer.Buffer
}

func newICE(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	i := &ice{packed: packed}
	i.packedSize = int(packed.ReadBE32(4))
	i.rawSize = int(packed.ReadBE32(8))
	checkSizes(i.packedSize, i.rawSize)
	if i.packedSize <= iceHeaderSize || i.packedSize > packed.Size() {
		errs.Throwf(errs.ErrInvalidFormat, "ICE stream of %d bytes in %d", i.packedSize, packed.Size())
	}
	return i
}

func (i *ice) Name() string { return "ICE" }

// literal run lengths: each field, when all ones, defers to the next
var iceLiteralFields = [...]struct{ bits, base int }{
	{2, 2}, {2, 5}, {3, 8}, {8, 15}, {15, 270},
}

func (i *ice) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	checkRawSize(raw, i.rawSize)
	in := stream.NewBackwardInputStream(i.packed, iceHeaderSize, i.packedSize)

	// the last byte is topped up with bits until its lowest set bit
	b := in.ReadU8()
	if b == 0 {
		errs.Throwf(errs.ErrDecompression, "ICE stream ends in a zero byte")
	}
	tz := bits.TrailingZeros8(b)
	br := stream.NewMSBBitReader(in)
	br.Reset(uint32(b>>(tz+1)), 7-tz)
	bit := func() uint32 { return br.ReadBits8(1) }

	out := stream.NewBackwardOutputStream(raw, 0, raw.Size())
	for {
		if bit() == 1 {
			n := 1
			if bit() == 1 {
				for k, f := range iceLiteralFields {
					v := int(br.ReadBits8(f.bits))
					if v != 1<<f.bits-1 || k == len(iceLiteralFields)-1 {
						n = v + f.base
						break
					}
				}
			}
			for range n {
				out.WriteU8(in.ReadU8())
			}
		}
		if out.EOF() {
			return nil
		}

		ones := 0
		for ones < 4 && bit() == 1 {
			ones++
		}
		var length int
		switch ones {
		case 0:
			length = 2
		case 1:
			length = 3
		case 2:
			length = 4 + int(br.ReadBits8(1))
		case 3:
			length = 6 + int(br.ReadBits8(2))
		default:
			length = 10 + int(br.ReadBits8(10))
		}

		var offset int
		if length == 2 {
			if bit() == 0 {
				offset = int(br.ReadBits8(6)) - 1
			} else {
				offset = int(br.ReadBits8(9)) + 0x3f
			}
		} else {
			ones := 0
			for ones < 2 && bit() == 1 {
				ones++
			}
			switch ones {
			case 0:
				offset = int(br.ReadBits8(8)) + 0x1f
			case 1:
				offset = int(br.ReadBits8(5)) - 1
			default:
				offset = int(br.ReadBits8(12)) + 0x11f
			}
		}
		distance := length + offset
		if offset < 0 {
			distance = 1
		}
		out.Copy(distance, length)
	}
}
