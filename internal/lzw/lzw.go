// Package lzw holds the code table shared by the LZW family of formats.
package lzw

import "github.com/elliotnunn/unsqueeze/internal/errs"

const none = -1

// Decoder maps codes to byte strings. Codes below literalCodes stand for
// themselves; table entries run from the first code given to Reset up to
// maxCode. Codes in between are reserved for the format's control codes.
type Decoder struct {
	maxCode      int
	literalCodes int
	stackLength  int
	base, free   int
	prev         int
	prefix       []uint32
	suffix       []uint8
	first        []uint8
	stack        []uint8
}

func New(maxCode, literalCodes, stackLength, firstCode int) *Decoder {
	if literalCodes < 1 || literalCodes > 256 || maxCode < literalCodes {
		errs.Throwf(errs.ErrInvalidOperation, "lzw table %d..%d", literalCodes, maxCode)
	}
	n := maxCode + 1 - literalCodes
	d := &Decoder{
		maxCode:      maxCode,
		literalCodes: literalCodes,
		stackLength:  stackLength,
		prefix:       make([]uint32, n),
		suffix:       make([]uint8, n),
		first:        make([]uint8, n),
		stack:        make([]uint8, 0, min(stackLength, 4096)),
	}
	d.Reset(firstCode)
	return d
}

// Reset empties the table so the next entry gets firstCode,
// and forgets the previous code.
func (d *Decoder) Reset(firstCode int) {
	if firstCode < d.literalCodes || firstCode > d.maxCode+1 {
		errs.Throwf(errs.ErrInvalidOperation, "lzw first code %d", firstCode)
	}
	d.base, d.free = firstCode, firstCode
	d.prev = none
}

// Free is the code the next entry will get.
func (d *Decoder) Free() int { return d.free }

// Full reports whether Add has stopped growing the table.
func (d *Decoder) Full() bool { return d.free > d.maxCode }

func (d *Decoder) defined(code int) bool {
	return code >= 0 && code < d.literalCodes || code >= d.base && code < d.free
}

func (d *Decoder) firstOf(code int) uint8 {
	if code < d.literalCodes {
		return uint8(code)
	}
	return d.first[code-d.literalCodes]
}

// Add appends the entry (previous code, first byte of code).
// It does nothing before the first code or once the table is full.
// code may be the entry being created, whose first byte is that of the previous code.
func (d *Decoder) Add(code int) {
	if d.prev == none || d.free > d.maxCode {
		return
	}
	var c uint8
	switch {
	case code == d.free:
		c = d.firstOf(d.prev)
	case d.defined(code):
		c = d.firstOf(code)
	default:
		errs.Throwf(errs.ErrDecompression, "lzw code %d undefined (next %d)", code, d.free)
	}
	i := d.free - d.literalCodes
	d.prefix[i] = uint32(d.prev)
	d.suffix[i] = c
	d.first[i] = d.firstOf(d.prev)
	d.free++
}

// Write emits the bytes of code and makes it the previous code.
// With addNew, the table first gains the entry code completes, which is
// what lets a code refer to the entry it creates.
func (d *Decoder) Write(code int, addNew bool, emit func(uint8)) {
	if addNew {
		d.Add(code)
	}
	if !d.defined(code) {
		errs.Throwf(errs.ErrDecompression, "lzw code %d undefined (next %d)", code, d.free)
	}
	stack := d.stack[:0]
	c := code
	for c >= d.literalCodes {
		if len(stack) >= d.stackLength {
			errs.Throwf(errs.ErrDecompression, "lzw string longer than %d", d.stackLength)
		}
		i := c - d.literalCodes
		stack = append(stack, d.suffix[i])
		c = int(d.prefix[i])
	}
	emit(uint8(c))
	for i := len(stack) - 1; i >= 0; i-- {
		emit(stack[i])
	}
	d.stack = stack
	d.prev = code
}
