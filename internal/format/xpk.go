// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"io"
	"log/slog"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/checksum"
	"github.com/elliotnunn/unsqueeze/internal/decompressioncache"
	"github.com/elliotnunn/unsqueeze/internal/errs"
)

// MaxXPKLevel is the number of XPK containers that may nest inside one another.
const MaxXPKLevel = 4

const (
	xpkHeaderSize = 36

	xpkLongHeaders = 0x01
	xpkPassword    = 0x02
	xpkExtended    = 0x04

	chunkStored = 0
	chunkPacked = 1
	chunkEnd    = 15
)

// XPKDecompressor decodes the payload of one packed chunk.
// It unwinds with errs.Throw on failure.
type XPKDecompressor interface {
	SubName() string
	// Decompress fills raw, which is exactly the chunk's raw size.
	// previous is the raw output of the chunk before, if any.
	Decompress(raw *buffer.Buffer, previous []byte, verify bool)
}

// xpkModel is decoder state kept from one chunk to the next.
type xpkModel interface {
	clone() xpkModel
}

// XPKState holds the models of a container's sub-format, keyed by tag.
// Each container decode owns one.
type XPKState struct {
	models map[uint32]xpkModel
}

func newXPKState() *XPKState {
	return &XPKState{models: make(map[uint32]xpkModel)}
}

func (s *XPKState) clone() *XPKState {
	c := newXPKState()
	for k, m := range s.models {
		c.models[k] = m.clone()
	}
	return c
}

func detectXPK(hdr, footer uint32) bool {
	return hdr == fourCC("XPKF")
}

type xpk struct {
	sized
	packed      *buffer.Buffer
	subType     uint32
	sub         xpkEntry
	headerSize  int
	longHeaders bool
	level       int
}

func newXPK(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	return newXPKAt(packed, 0, verify)
}

func newXPKAt(packed *buffer.Buffer, level int, verify bool) *xpk {
	if level >= MaxXPKLevel {
		errs.Throwf(errs.ErrInvalidFormat, "XPK nested %d deep", level+1)
	}
	if packed.ReadBE32(0) != fourCC("XPKF") {
		errs.Throwf(errs.ErrInvalidFormat, "not an XPK container")
	}
	x := &xpk{
		packed:  packed,
		subType: packed.ReadBE32(8),
		level:   level,
	}
	x.packedSize = buffer.Sum(int(packed.ReadBE32(4)), 8)
	x.rawSize = int(packed.ReadBE32(12))
	checkSizes(x.packedSize, x.rawSize)
	if x.packedSize > packed.Size() {
		errs.Throwf(errs.ErrInvalidFormat, "XPK container of %d bytes truncated to %d", x.packedSize, packed.Size())
	}

	flags := packed.At(32)
	if flags&xpkPassword != 0 {
		errs.Throwf(errs.ErrInvalidFormat, "XPK container is password protected")
	}
	if verify && checksum.XOR8(packed.Slice(0, xpkHeaderSize)) != 0 {
		errs.Throwf(errs.ErrVerification, "XPK header check")
	}
	x.longHeaders = flags&xpkLongHeaders != 0
	x.headerSize = xpkHeaderSize
	if flags&xpkExtended != 0 {
		x.headerSize = buffer.Sum(xpkHeaderSize, 2, int(packed.ReadBE16(xpkHeaderSize)))
	}

	sub, ok := xpkRegistry()[x.subType]
	if !ok {
		errs.Throwf(errs.ErrInvalidFormat, "unknown XPK sub-format %q", fourCCString(x.subType))
	}
	x.sub = sub

	// walk the chunk headers so that a bad layout fails now
	for off := x.headerSize; ; {
		c := x.chunkAt(off, verify)
		if c.typ == chunkEnd {
			break
		}
		off = c.next
	}
	return x
}

func (x *xpk) Name() string    { return "XPK" }
func (x *xpk) SubName() string { return xpkName(x.subType) }

func xpkName(tag uint32) string { return "XPK-" + fourCCString(tag) }

type chunk struct {
	typ               uint8
	dataOff           int
	packedLen, rawLen int
	next              int
}

func (x *xpk) chunkAt(off int, verify bool) chunk {
	hs := 8
	if x.longHeaders {
		hs = 12
	}
	if buffer.Sum(off, hs) > x.packedSize {
		errs.Throwf(errs.ErrOutOfBounds, "XPK chunk header at %d past end %d", off, x.packedSize)
	}
	p := x.packed
	c := chunk{typ: p.At(off), dataOff: off + hs}
	if x.longHeaders {
		c.packedLen, c.rawLen = int(p.ReadBE32(off+4)), int(p.ReadBE32(off+8))
	} else {
		c.packedLen, c.rawLen = int(p.ReadBE16(off+4)), int(p.ReadBE16(off+6))
	}
	if verify && checksum.XOR8(p.Slice(off, hs)) != 0 {
		errs.Throwf(errs.ErrVerification, "XPK chunk header check at %d", off)
	}
	if buffer.Sum(c.dataOff, c.packedLen) > x.packedSize {
		errs.Throwf(errs.ErrOutOfBounds, "XPK chunk at %d overruns container", off)
	}
	padded := buffer.Sum(c.packedLen, 3) &^ 3
	c.next = c.dataOff + padded

	switch c.typ {
	case chunkEnd:
		return c
	case chunkStored:
		if c.packedLen != c.rawLen {
			errs.Throwf(errs.ErrInvalidFormat, "XPK stored chunk %d bytes packed, %d raw", c.packedLen, c.rawLen)
		}
	case chunkPacked:
	default:
		errs.Throwf(errs.ErrInvalidFormat, "XPK chunk type %d at %d", c.typ, off)
	}
	if verify {
		end := min(c.next, x.packedSize)
		if checksum.XOR16(p.Slice(c.dataOff, end-c.dataOff)) != p.ReadBE16(off+2) {
			errs.Throwf(errs.ErrVerification, "XPK chunk checksum at %d", off)
		}
	}
	return c
}

func (x *xpk) decodeChunk(c chunk, raw *buffer.Buffer, prev []byte, state *XPKState, verify bool) {
	payload := x.packed.Sub(c.dataOff, c.packedLen)
	switch c.typ {
	case chunkStored:
		copy(raw.Writable(), payload.Bytes())
	case chunkPacked:
		d := x.sub.create(x.subType, payload, x.level, state, verify)
		d.Decompress(raw, prev, verify)
	}
}

func (x *xpk) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	x.decompress(raw, verify)
	return nil
}

func (x *xpk) decompress(raw *buffer.Buffer, verify bool) {
	checkRawSize(raw, x.rawSize)
	state := newXPKState()
	var prev []byte
	pos := 0
	for off := x.headerSize; ; {
		c := x.chunkAt(off, verify)
		if c.typ == chunkEnd {
			break
		}
		if c.rawLen > x.rawSize-pos {
			errs.Throwf(errs.ErrDecompression, "XPK chunks exceed raw size %d", x.rawSize)
		}
		out := raw.Sub(pos, c.rawLen)
		x.decodeChunk(c, out, prev, state, verify)
		prev = out.Bytes()
		pos += c.rawLen
		off = c.next
	}
	x.checkEnd(pos)
}

// Steps decodes one chunk per step.
func (x *xpk) Steps(verify bool) decompressioncache.Stepper {
	return x.stepAt(x.headerSize, 0, nil, newXPKState(), verify)
}

// stepAt decodes the chunk at off, whose output starts at pos.
func (x *xpk) stepAt(off, pos int, prev []byte, state *XPKState, verify bool) decompressioncache.Stepper {
	return func() (next decompressioncache.Stepper, blob []byte, err error) {
		defer errs.Recover(&err, errs.ErrDecompression)
		st := state.clone()
		c := x.chunkAt(off, verify)
		if c.typ == chunkEnd {
			x.checkEnd(pos)
			return nil, nil, io.EOF
		}
		if c.rawLen > x.rawSize-pos {
			errs.Throwf(errs.ErrDecompression, "XPK chunks exceed raw size %d", x.rawSize)
		}
		blob = make([]byte, c.rawLen)
		x.decodeChunk(c, buffer.Wrap(blob), prev, st, verify)
		slog.Debug("xpkChunk", "offset", off, "packed", c.packedLen, "raw", c.rawLen)
		if x.chunkAt(c.next, false).typ == chunkEnd {
			x.checkEnd(pos + c.rawLen)
			return nil, blob, io.EOF
		}
		return x.stepAt(c.next, pos+c.rawLen, blob, st, verify), blob, nil
	}
}

func (x *xpk) checkEnd(pos int) {
	if pos != x.rawSize {
		errs.Throwf(errs.ErrDecompression, "XPK chunks decode to %d bytes, header says %d", pos, x.rawSize)
	}
}

// newXPKNested decodes a chunk holding a whole XPK container.
func newXPKNested(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkNested{inner: newXPKAt(packed, level+1, verify)}
}

type xpkNested struct {
	inner *xpk
}

func (d *xpkNested) SubName() string { return "XPK-XPKF" }

func (d *xpkNested) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	d.inner.decompress(raw, verify)
}
