// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package stream

import (
	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
)

// growth step of an auto-expanding output
const advance = 64 * 1024

// ForwardOutputStream writes from start toward end.
type ForwardOutputStream struct {
	buf             *buffer.Buffer
	start, off, end int
	expand          bool
}

func NewForwardOutputStream(buf *buffer.Buffer, start, end int) *ForwardOutputStream {
	if start < 0 || start > end || end > buf.Size() {
		errs.Throwf(errs.ErrOutOfBounds, "output stream [%d,%d) of %d bytes", start, end, buf.Size())
	}
	return &ForwardOutputStream{buf: buf, start: start, off: start, end: end}
}

// NewAutoExpandingOutputStream writes into a resizable buffer that grows
// as needed up to its limit. Call Finish to trim it to the bytes written.
func NewAutoExpandingOutputStream(buf *buffer.Buffer) *ForwardOutputStream {
	if !buf.Resizable() {
		errs.Throwf(errs.ErrInvalidOperation, "auto-expanding output over fixed buffer")
	}
	return &ForwardOutputStream{buf: buf, end: buf.Size(), expand: true}
}

func (s *ForwardOutputStream) ensure(n int) []byte {
	if n <= s.end-s.off {
		return s.buf.Writable()
	}
	if !s.expand {
		errs.Throwf(errs.ErrDecompression, "output overflow at %d", s.off)
	}
	need := buffer.Sum(s.off, n)
	if need > s.buf.Limit() {
		errs.Throwf(errs.ErrDecompression, "raw size exceeds %d bytes", s.buf.Limit())
	}
	size := max(need, s.end+max(s.end, advance))
	size = min(size, s.buf.Limit())
	s.buf.Resize(size)
	s.end = size
	return s.buf.Writable()
}

func (s *ForwardOutputStream) WriteU8(v uint8) {
	s.ensure(1)[s.off] = v
	s.off++
}

func (s *ForwardOutputStream) WriteBytes(p []byte) {
	copy(s.ensure(len(p))[s.off:], p)
	s.off += len(p)
}

// Copy repeats count bytes from distance bytes back, one byte at a time,
// so a distance shorter than count repeats a pattern. It returns the last byte written.
func (s *ForwardOutputStream) Copy(distance, count int) uint8 {
	if distance <= 0 || distance > s.off-s.start {
		errs.Throwf(errs.ErrDecompression, "copy distance %d at output %d", distance, s.off-s.start)
	}
	return s.copy(distance, count, nil)
}

// CopyWithPrevious is Copy that may reach back past the start of this
// output into prev, the output of the previous block.
func (s *ForwardOutputStream) CopyWithPrevious(distance, count int, prev []byte) uint8 {
	if distance <= 0 || distance > s.off-s.start+len(prev) {
		errs.Throwf(errs.ErrDecompression, "copy distance %d at output %d", distance, s.off-s.start)
	}
	return s.copy(distance, count, func(under int) uint8 { return prev[len(prev)-under] })
}

// CopyWithFill is Copy that reads fill for positions before the start of this output.
func (s *ForwardOutputStream) CopyWithFill(distance, count int, fill uint8) uint8 {
	if distance <= 0 {
		errs.Throwf(errs.ErrDecompression, "copy distance %d", distance)
	}
	return s.copy(distance, count, func(int) uint8 { return fill })
}

func (s *ForwardOutputStream) copy(distance, count int, before func(under int) uint8) uint8 {
	if count < 0 {
		errs.Throwf(errs.ErrDecompression, "copy count %d", count)
	}
	data := s.ensure(count)
	var v uint8
	for range count {
		src := s.off - distance
		if src < s.start {
			v = before(s.start - src)
		} else {
			v = data[src]
		}
		data[s.off] = v
		s.off++
	}
	return v
}

func (s *ForwardOutputStream) Offset() int { return s.off }

// EOF reports whether a fixed output is full. An expanding output never is.
func (s *ForwardOutputStream) EOF() bool { return !s.expand && s.off == s.end }

// Written returns the bytes output so far.
func (s *ForwardOutputStream) Written() []byte { return s.buf.Bytes()[s.start:s.off] }

// Finish trims an expanding output to the bytes written.
func (s *ForwardOutputStream) Finish() {
	if s.expand {
		s.buf.Resize(s.off)
		s.end = s.off
	}
}

// BackwardOutputStream writes from end toward start.
type BackwardOutputStream struct {
	buf             *buffer.Buffer
	start, off, end int
}

func NewBackwardOutputStream(buf *buffer.Buffer, start, end int) *BackwardOutputStream {
	if start < 0 || start > end || end > buf.Size() {
		errs.Throwf(errs.ErrOutOfBounds, "output stream [%d,%d) of %d bytes", start, end, buf.Size())
	}
	return &BackwardOutputStream{buf: buf, start: start, off: end, end: end}
}

func (s *BackwardOutputStream) WriteU8(v uint8) {
	if s.off <= s.start {
		errs.Throwf(errs.ErrDecompression, "output overflow")
	}
	s.off--
	s.buf.Writable()[s.off] = v
}

// Copy writes count bytes downward, each taken from distance bytes above it.
func (s *BackwardOutputStream) Copy(distance, count int) uint8 {
	if distance <= 0 || distance > s.end-s.off {
		errs.Throwf(errs.ErrDecompression, "copy distance %d at output %d", distance, s.end-s.off)
	}
	if count < 0 || count > s.off-s.start {
		errs.Throwf(errs.ErrDecompression, "copy of %d bytes overflows output", count)
	}
	data := s.buf.Writable()
	var v uint8
	for range count {
		s.off--
		v = data[s.off+distance]
		data[s.off] = v
	}
	return v
}

func (s *BackwardOutputStream) Offset() int { return s.off }

func (s *BackwardOutputStream) EOF() bool { return s.off == s.start }
