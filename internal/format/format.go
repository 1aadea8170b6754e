// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package format holds every packed-file decoder and the registries that
// pick one for an unknown buffer.
//
// Decoders run under errs.Throw: a corrupt stream unwinds to the nearest
// exported entry point, which reports it as an error of the right kind.
package format

import (
	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/decompressioncache"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

const (
	MaxPackedSize = 1 << 30
	MaxRawSize    = 1 << 30
)

// Decompressor decodes one top-level packed stream.
// It is created by parsing only the header, and is good for one Decompress call.
type Decompressor interface {
	Name() string
	// PackedSize and RawSize are zero when the header does not record them.
	// RawSize becomes known after a successful Decompress.
	PackedSize() int
	RawSize() int
	// Decompress fills raw. When the raw size is known, raw must be exactly that size.
	// Otherwise a resizable raw grows to fit and a fixed one must be large enough.
	Decompress(raw *buffer.Buffer, verify bool) error
}

// SubNamer is implemented by containers, which also report their payload format.
type SubNamer interface {
	SubName() string
}

// Imager is implemented by disk image formats whose output is part of a larger image.
type Imager interface {
	ImageSize() int
	ImageOffset() int
}

// Stepper is implemented by formats that can decode a piece at a time.
type Stepper interface {
	Steps(verify bool) decompressioncache.Stepper
}

// fourCC packs a 4-character tag the way headers store it.
func fourCC(s string) uint32 {
	return uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])
}

func fourCCString(v uint32) string {
	b := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			b[i] = '?'
		}
	}
	return string(b)
}

func checkRawSize(raw *buffer.Buffer, want int) {
	if raw.Size() != want {
		errs.Throwf(errs.ErrDecompression, "raw buffer is %d bytes, stream decodes to %d", raw.Size(), want)
	}
}

func checkSizes(packed, raw int) {
	if packed > MaxPackedSize || raw > MaxRawSize || packed < 0 || raw < 0 {
		errs.Throwf(errs.ErrInvalidFormat, "sizes %d/%d exceed limits", packed, raw)
	}
}

// outputFor writes into raw, growing it if it can grow.
func outputFor(raw *buffer.Buffer) *stream.ForwardOutputStream {
	if raw.Resizable() && raw.Size() == 0 {
		return stream.NewAutoExpandingOutputStream(raw)
	}
	return stream.NewForwardOutputStream(raw, 0, raw.Size())
}

// sized is embedded by decompressors to report their sizes.
type sized struct {
	packedSize, rawSize int
}

func (s *sized) PackedSize() int { return s.packedSize }
func (s *sized) RawSize() int    { return s.rawSize }
