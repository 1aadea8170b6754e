package stream

import "github.com/elliotnunn/unsqueeze/internal/errs"

type unit int

const (
	unit8 unit = iota
	unitBE16
	unitBE32
	unitLE16
	unitLE32
)

func refill(src Source, u unit) (uint32, int) {
	switch u {
	case unitBE16:
		return uint32(src.ReadBE16()), 16
	case unitBE32:
		return src.ReadBE32(), 32
	case unitLE16:
		return uint32(src.ReadLE16()), 16
	case unitLE32:
		return src.ReadLE32(), 32
	default:
		return uint32(src.ReadU8()), 8
	}
}

func mask(n int) uint32 { return uint32(uint64(1)<<n - 1) }

func checkCount(n int) {
	if n < 0 || n > 32 {
		errs.Throwf(errs.ErrDecompression, "read of %d bits", n)
	}
}

// MSBBitReader takes bits from the top of each refilled word.
// The refill width is chosen per call, and the source may run either way.
type MSBBitReader struct {
	src     Source
	content uint32
	length  int
}

func NewMSBBitReader(src Source) *MSBBitReader { return &MSBBitReader{src: src} }

func (r *MSBBitReader) read(n int, u unit) uint32 {
	checkCount(n)
	var v uint32
	for n > 0 {
		if r.length == 0 {
			r.content, r.length = refill(r.src, u)
		}
		take := min(n, r.length)
		r.length -= take
		v = v<<take | (r.content>>r.length)&mask(take)
		n -= take
	}
	return v
}

func (r *MSBBitReader) ReadBits8(n int) uint32    { return r.read(n, unit8) }
func (r *MSBBitReader) ReadBitsBE16(n int) uint32 { return r.read(n, unitBE16) }
func (r *MSBBitReader) ReadBitsBE32(n int) uint32 { return r.read(n, unitBE32) }
func (r *MSBBitReader) ReadBitsLE16(n int) uint32 { return r.read(n, unitLE16) }
func (r *MSBBitReader) ReadBitsLE32(n int) uint32 { return r.read(n, unitLE32) }
func (r *MSBBitReader) ReadBit() uint32           { return r.read(1, unit8) }

// Available is the number of bits left in the accumulator and the source.
func (r *MSBBitReader) Available() int { return r.length + 8*r.src.Remaining() }

// Reset replaces the accumulator with the low length bits of content.
func (r *MSBBitReader) Reset(content uint32, length int) {
	checkCount(length)
	r.content, r.length = content&mask(length), length
}

// LSBBitReader takes bits from the bottom of each refilled word.
type LSBBitReader struct {
	src     Source
	content uint32
	length  int
}

func NewLSBBitReader(src Source) *LSBBitReader { return &LSBBitReader{src: src} }

func (r *LSBBitReader) read(n int, u unit) uint32 {
	checkCount(n)
	var v uint32
	pos := 0
	for n > 0 {
		if r.length == 0 {
			r.content, r.length = refill(r.src, u)
		}
		take := min(n, r.length)
		v |= (r.content & mask(take)) << pos
		r.content = uint32(uint64(r.content) >> take)
		r.length -= take
		pos += take
		n -= take
	}
	return v
}

func (r *LSBBitReader) ReadBits8(n int) uint32    { return r.read(n, unit8) }
func (r *LSBBitReader) ReadBitsBE16(n int) uint32 { return r.read(n, unitBE16) }
func (r *LSBBitReader) ReadBitsBE32(n int) uint32 { return r.read(n, unitBE32) }
func (r *LSBBitReader) ReadBitsLE16(n int) uint32 { return r.read(n, unitLE16) }
func (r *LSBBitReader) ReadBitsLE32(n int) uint32 { return r.read(n, unitLE32) }
func (r *LSBBitReader) ReadBit() uint32           { return r.read(1, unit8) }

func (r *LSBBitReader) Available() int { return r.length + 8*r.src.Remaining() }

func (r *LSBBitReader) Reset(content uint32, length int) {
	checkCount(length)
	r.content, r.length = content&mask(length), length
}

// AlignByte drops the bits left over from the current byte.
func (r *LSBBitReader) AlignByte() {
	r.ReadBits8(r.length % 8)
}
