// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package buffer is the only way a decoder touches memory.
// Every access is bounds checked and a violation unwinds the decode
// with errs.ErrOutOfBounds.
package buffer

import (
	"encoding/binary"

	"github.com/elliotnunn/unsqueeze/internal/errs"
)

// Buffer is a contiguous byte range. It may own growable memory,
// wrap a caller's slice, or view part of another Buffer.
type Buffer struct {
	data      []byte
	readOnly  bool
	resizable bool
	limit     int // ceiling for Resize
}

// New returns an owned, resizable buffer of the given size that may grow up to limit bytes.
func New(size, limit int) *Buffer {
	if size < 0 || size > limit {
		errs.Throwf(errs.ErrOutOfBounds, "buffer of %d bytes exceeds %d", size, limit)
	}
	return &Buffer{data: make([]byte, size), resizable: true, limit: limit}
}

// Wrap views a caller-owned slice. The buffer is writable but not resizable.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: b}
}

// WrapReadOnly views a caller-owned slice that must never be written.
func WrapReadOnly(b []byte) *Buffer {
	return &Buffer{data: b, readOnly: true}
}

// Sub views length bytes from off. It shares memory with b and inherits its write protection.
func (b *Buffer) Sub(off, length int) *Buffer {
	b.check(off, length)
	return &Buffer{data: b.data[off : off+length : off+length], readOnly: b.readOnly}
}

func (b *Buffer) Size() int { return len(b.data) }

func (b *Buffer) ReadOnly() bool { return b.readOnly }

func (b *Buffer) Resizable() bool { return b.resizable }

// Limit is the largest size Resize accepts, or the current size of a fixed buffer.
func (b *Buffer) Limit() int {
	if !b.resizable {
		return len(b.data)
	}
	return b.limit
}

// Bytes returns the contents for reading.
func (b *Buffer) Bytes() []byte { return b.data }

// Writable returns the contents for writing.
func (b *Buffer) Writable() []byte {
	if b.readOnly {
		errs.Throwf(errs.ErrInvalidOperation, "write to read-only buffer")
	}
	return b.data
}

// Resize changes the size, keeping the existing prefix.
func (b *Buffer) Resize(size int) {
	if !b.resizable {
		errs.Throwf(errs.ErrInvalidOperation, "resize of fixed buffer")
	}
	if size < 0 || size > b.limit {
		errs.Throwf(errs.ErrOutOfBounds, "resize to %d exceeds %d", size, b.limit)
	}
	if size <= cap(b.data) {
		b.data = b.data[:size]
		return
	}
	grown := make([]byte, size)
	copy(grown, b.data)
	b.data = grown
}

func (b *Buffer) check(off, length int) {
	if off < 0 || length < 0 || off > len(b.data) || length > len(b.data)-off {
		errs.Throwf(errs.ErrOutOfBounds, "access [%d,+%d) of %d-byte buffer", off, length, len(b.data))
	}
}

// Slice returns length bytes from off for reading.
func (b *Buffer) Slice(off, length int) []byte {
	b.check(off, length)
	return b.data[off : off+length]
}

func (b *Buffer) At(off int) byte {
	b.check(off, 1)
	return b.data[off]
}

func (b *Buffer) Set(off int, v byte) {
	b.check(off, 1)
	b.Writable()[off] = v
}

func (b *Buffer) ReadBE16(off int) uint16 { return binary.BigEndian.Uint16(b.Slice(off, 2)) }
func (b *Buffer) ReadBE32(off int) uint32 { return binary.BigEndian.Uint32(b.Slice(off, 4)) }
func (b *Buffer) ReadBE64(off int) uint64 { return binary.BigEndian.Uint64(b.Slice(off, 8)) }
func (b *Buffer) ReadLE16(off int) uint16 { return binary.LittleEndian.Uint16(b.Slice(off, 2)) }
func (b *Buffer) ReadLE32(off int) uint32 { return binary.LittleEndian.Uint32(b.Slice(off, 4)) }
func (b *Buffer) ReadLE64(off int) uint64 { return binary.LittleEndian.Uint64(b.Slice(off, 8)) }
