// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

// NONE stores the chunk as it is.
type xpkNone struct {
	packed *buffer.Buffer
}

func newXPKNone(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkNone{packed: packed}
}

func (d *xpkNone) SubName() string { return "XPK-NONE" }

func (d *xpkNone) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	checkRawSize(raw, d.packed.Size())
	copy(raw.Writable(), d.packed.Bytes())
}

// CBR0 is byte-oriented run length coding. A control byte below 128 is
// followed by that many plus one literals, any other by one byte repeated
// 257 minus the control times.
type xpkRunLength struct {
	tag    uint32
	packed *buffer.Buffer
}

func newXPKRunLength(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkRunLength{tag: tag, packed: packed}
}

func (d *xpkRunLength) SubName() string { return xpkName(d.tag) }

func (d *xpkRunLength) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	in := stream.NewForwardInputStream(d.packed, 0, d.packed.Size())
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())
	for !out.EOF() {
		c := int(in.ReadU8())
		if c < 128 {
			out.WriteBytes(in.Consume(c + 1))
		} else {
			v := in.ReadU8()
			for range 257 - c {
				out.WriteU8(v)
			}
		}
	}
}

// DLTA stores the difference between each byte and the one before.
type xpkDelta struct {
	packed *buffer.Buffer
}

func newXPKDelta(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkDelta{packed: packed}
}

func (d *xpkDelta) SubName() string { return "XPK-DLTA" }

func (d *xpkDelta) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	if raw.Size() != d.packed.Size() {
		errs.Throwf(errs.ErrDecompression, "delta chunk of %d bytes decodes to %d", d.packed.Size(), raw.Size())
	}
	src, dst := d.packed.Bytes(), raw.Writable()
	var v uint8
	for i, c := range src {
		v += c
		dst[i] = v
	}
}
