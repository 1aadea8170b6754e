// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package stream provides bounded cursors over a buffer.Buffer:
// forward and backward byte input, forward and backward output with
// LZ77 back-references, and bit readers in both bit orders.
package stream

import (
	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
)

// Source is a byte stream a bit reader can refill from.
// Both input directions implement it.
type Source interface {
	ReadU8() uint8
	ReadBE16() uint16
	ReadBE32() uint32
	ReadLE16() uint16
	ReadLE32() uint32
	Remaining() int
}

// A fence joins a forward and a backward cursor walking toward each other
// over one buffer. Each cursor's position bounds the other.
type fence struct {
	front, back int
}

// Link makes f and b bound each other so that they can never cross.
func Link(f *ForwardInputStream, b *BackwardInputStream) {
	if f.buf != b.buf {
		errs.Throwf(errs.ErrInvalidOperation, "linked streams over different buffers")
	}
	fc := &fence{front: f.off, back: b.off}
	f.fence = fc
	b.fence = fc
}

// ForwardInputStream reads from start toward end.
type ForwardInputStream struct {
	buf      *buffer.Buffer
	off, end int
	overrun  int
	fence    *fence
}

func NewForwardInputStream(buf *buffer.Buffer, start, end int) *ForwardInputStream {
	if start < 0 || start > end || end > buf.Size() {
		errs.Throwf(errs.ErrOutOfBounds, "input stream [%d,%d) of %d bytes", start, end, buf.Size())
	}
	return &ForwardInputStream{buf: buf, off: start, end: end}
}

// AllowOverrun lets up to n reads past the end return zero instead of failing.
func (s *ForwardInputStream) AllowOverrun(n int) { s.overrun = n }

func (s *ForwardInputStream) limit() int {
	if s.fence != nil && s.fence.back < s.end {
		return s.fence.back
	}
	return s.end
}

func (s *ForwardInputStream) moved() {
	if s.fence != nil {
		s.fence.front = s.off
	}
}

func (s *ForwardInputStream) ReadU8() uint8 {
	if s.off >= s.limit() {
		if s.overrun > 0 {
			s.overrun--
			return 0
		}
		errs.Throwf(errs.ErrDecompression, "read past end of input at %d", s.off)
	}
	v := s.buf.At(s.off)
	s.off++
	s.moved()
	return v
}

func (s *ForwardInputStream) ReadBE16() uint16 {
	return uint16(s.ReadU8())<<8 | uint16(s.ReadU8())
}

func (s *ForwardInputStream) ReadBE32() uint32 {
	return uint32(s.ReadBE16())<<16 | uint32(s.ReadBE16())
}

func (s *ForwardInputStream) ReadLE16() uint16 {
	return uint16(s.ReadU8()) | uint16(s.ReadU8())<<8
}

func (s *ForwardInputStream) ReadLE32() uint32 {
	return uint32(s.ReadLE16()) | uint32(s.ReadLE16())<<16
}

// Consume returns the next n bytes without copying them.
func (s *ForwardInputStream) Consume(n int) []byte {
	if n < 0 || n > s.limit()-s.off {
		errs.Throwf(errs.ErrDecompression, "read of %d bytes past end of input at %d", n, s.off)
	}
	p := s.buf.Slice(s.off, n)
	s.off += n
	s.moved()
	return p
}

func (s *ForwardInputStream) Offset() int { return s.off }

func (s *ForwardInputStream) SetOffset(off int) {
	if off < 0 || off > s.limit() {
		errs.Throwf(errs.ErrDecompression, "seek to %d outside input", off)
	}
	s.off = off
	s.moved()
}

func (s *ForwardInputStream) End() int { return s.end }

func (s *ForwardInputStream) SetEnd(end int) {
	if end < s.off || end > s.buf.Size() {
		errs.Throwf(errs.ErrDecompression, "input end %d outside buffer", end)
	}
	s.end = end
}

func (s *ForwardInputStream) EOF() bool { return s.off >= s.limit() }

func (s *ForwardInputStream) Remaining() int { return s.limit() - s.off }

// BackwardInputStream reads from end toward start.
type BackwardInputStream struct {
	buf        *buffer.Buffer
	start, off int
	fence      *fence
}

func NewBackwardInputStream(buf *buffer.Buffer, start, end int) *BackwardInputStream {
	if start < 0 || start > end || end > buf.Size() {
		errs.Throwf(errs.ErrOutOfBounds, "input stream [%d,%d) of %d bytes", start, end, buf.Size())
	}
	return &BackwardInputStream{buf: buf, start: start, off: end}
}

func (s *BackwardInputStream) limit() int {
	if s.fence != nil && s.fence.front > s.start {
		return s.fence.front
	}
	return s.start
}

func (s *BackwardInputStream) take(n int) int {
	if s.off-s.limit() < n {
		errs.Throwf(errs.ErrDecompression, "read of %d bytes before start of input at %d", n, s.off)
	}
	s.off -= n
	if s.fence != nil {
		s.fence.back = s.off
	}
	return s.off
}

func (s *BackwardInputStream) ReadU8() uint8 { return s.buf.At(s.take(1)) }

// Multi-byte reads take the bytes just below the cursor, in memory order.
func (s *BackwardInputStream) ReadBE16() uint16 { return s.buf.ReadBE16(s.take(2)) }
func (s *BackwardInputStream) ReadBE32() uint32 { return s.buf.ReadBE32(s.take(4)) }
func (s *BackwardInputStream) ReadLE16() uint16 { return s.buf.ReadLE16(s.take(2)) }
func (s *BackwardInputStream) ReadLE32() uint32 { return s.buf.ReadLE32(s.take(4)) }

// Consume returns the n bytes just below the cursor, in memory order.
func (s *BackwardInputStream) Consume(n int) []byte {
	if n < 0 {
		errs.Throwf(errs.ErrDecompression, "negative read")
	}
	return s.buf.Slice(s.take(n), n)
}

func (s *BackwardInputStream) Offset() int { return s.off }

func (s *BackwardInputStream) SetOffset(off int) {
	if off < s.limit() || off > s.buf.Size() {
		errs.Throwf(errs.ErrDecompression, "seek to %d outside input", off)
	}
	s.off = off
	if s.fence != nil {
		s.fence.back = s.off
	}
}

func (s *BackwardInputStream) EOF() bool { return s.off <= s.limit() }

func (s *BackwardInputStream) Remaining() int { return s.off - s.limit() }
