// Package rangecoder holds the 16-bit arithmetic decoder and the
// cumulative frequency tree that adaptive models feed it from.
package rangecoder

import "github.com/elliotnunn/unsqueeze/internal/errs"

// BitSource supplies fresh bits during renormalisation.
// Each format decides how its bits are packed.
type BitSource interface {
	ReadBit() uint32
}

const (
	half    = 0x8000
	quarter = 0x4000
)

// Decoder keeps low <= stream <= high within a 16-bit window.
type Decoder struct {
	src             BitSource
	low, high, code uint32
}

// NewDecoder starts with the full window and the first 16 bits of the stream.
func NewDecoder(src BitSource, initial uint16) *Decoder {
	return &Decoder{src: src, high: 0xffff, code: uint32(initial)}
}

// Decode maps the stream position into [0, total).
func (d *Decoder) Decode(total uint16) uint16 {
	if total == 0 {
		errs.Throwf(errs.ErrDecompression, "arithmetic decode with empty model")
	}
	span := d.high - d.low + 1
	v := ((d.code-d.low+1)*uint32(total) - 1) / span
	if v >= uint32(total) {
		errs.Throwf(errs.ErrDecompression, "arithmetic stream outside its window")
	}
	return uint16(v)
}

// Scale narrows the window to [newLow, newHigh) out of newRange and
// renormalises, taking one fresh bit per doubling.
func (d *Decoder) Scale(newLow, newHigh, newRange uint16) {
	if newLow >= newHigh || newHigh > newRange {
		errs.Throwf(errs.ErrDecompression, "arithmetic interval %d..%d of %d", newLow, newHigh, newRange)
	}
	span := d.high - d.low + 1
	d.high = d.low + span*uint32(newHigh)/uint32(newRange) - 1
	d.low += span * uint32(newLow) / uint32(newRange)
	for {
		switch {
		case d.high < half:
		case d.low >= half:
			d.low -= half
			d.high -= half
			d.code -= half
		case d.low >= quarter && d.high < half+quarter:
			d.low -= quarter
			d.high -= quarter
			d.code -= quarter
		default:
			return
		}
		d.low <<= 1
		d.high = d.high<<1 | 1
		d.code = (d.code<<1 | d.src.ReadBit()&1) & 0xffff
	}
}

// Window exposes the current state for diagnostics.
func (d *Decoder) Window() (low, high, code uint16) {
	return uint16(d.low), uint16(d.high), uint16(d.code)
}
