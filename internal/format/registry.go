// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
)

type entry struct {
	name string
	// detect sees the first and last 4 bytes of the packed data, big-endian.
	detect func(hdr, footer uint32) bool
	create func(packed *buffer.Buffer, exactSize, verify bool) Decompressor
}

// registry is fixed once built. Earlier entries win, so formats with weak
// detection come last.
var registry = sync.OnceValue(func() []entry {
	return []entry{
		{"BZip2", detectBZip2, newBZip2},
		{"Compact", detectCompact, newCompact},
		{"Compress", detectCompress, newCompress},
		{"DMS", detectDMS, newDMS},
		{"Freeze", detectFreeze, newFreeze},
		{"GZip", detectGZip, newGZip},
		{"ICE", detectICE, newICE},
		{"Pack", detectPack, newPack},
		{"PowerPacker", detectPowerPacker, newPowerPacker},
		{"XPK", detectXPK, newXPK},
		{"ZLib", detectZLib, newZLib},
	}
})

func headerWords(b []byte) (hdr, footer uint32) {
	n := len(b)
	for i := range min(n, 4) {
		hdr |= uint32(b[i]) << (24 - 8*i)
	}
	for i := range min(n, 4) {
		footer |= uint32(b[n-1-i]) << (8 * i)
	}
	return hdr, footer
}

// Create picks the first registered format that claims packed and parses its header.
// With exactSize, packed must hold the stream and nothing more.
// With verify, any header checksum is checked now.
func Create(packed []byte, exactSize, verify bool) (d Decompressor, err error) {
	defer errs.Recover(&err, errs.ErrInvalidFormat)
	if len(packed) > MaxPackedSize {
		errs.Throwf(errs.ErrInvalidFormat, "packed data of %d bytes", len(packed))
	}
	buf := buffer.WrapReadOnly(packed)
	hdr, footer := headerWords(packed)
	for _, e := range registry() {
		if !e.detect(hdr, footer) {
			continue
		}
		d := e.create(buf, exactSize, verify)
		if exactSize && d.PackedSize() != 0 && d.PackedSize() != len(packed) {
			errs.Throwf(errs.ErrInvalidFormat, "%s stream is %d bytes, given %d", e.name, d.PackedSize(), len(packed))
		}
		slog.Debug("detected", "format", d.Name(), "packed", d.PackedSize(), "raw", d.RawSize())
		return d, nil
	}
	errs.Throwf(errs.ErrInvalidFormat, "no format recognises header %08x", hdr)
	panic("unreachable")
}

// Detect reports whether any registered format claims the header of packed.
// It only looks at the header, so Create may still find the stream bad.
func Detect(packed []byte) (found bool) {
	errs.Catch(func() {
		hdr, footer := headerWords(packed)
		for _, e := range registry() {
			if e.detect(hdr, footer) {
				found = true
				return
			}
		}
	})
	return found
}

// Names lists the registered formats in detection order.
func Names() []string {
	var names []string
	for _, e := range registry() {
		names = append(names, e.name)
	}
	return names
}

type xpkEntry struct {
	tags   []string
	create func(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor
}

// xpkRegistry is set in init because XPKF chunks look it up again.
var xpkRegistry func() map[uint32]xpkEntry

func init() {
	xpkRegistry = sync.OnceValue(newXPKRegistry)
}

func newXPKRegistry() map[uint32]xpkEntry {
	entries := []xpkEntry{
		{[]string{"ARTM"}, newXPKArithmetic},
		{[]string{"BLZW"}, newXPKBLZW},
		{[]string{"BZP2"}, newXPKBZip2},
		{[]string{"CBR0", "CBR1"}, newXPKRunLength},
		{[]string{"DLTA"}, newXPKDelta},
		{[]string{"FAST"}, newXPKFast},
		{[]string{"GZIP"}, newXPKGZip},
		{[]string{"LHLB"}, newXPKLHLB},
		{[]string{"NONE"}, newXPKNone},
		{[]string{"PWPK"}, newXPKPowerPacker},
		{[]string{"XPKF"}, newXPKNested},
	}
	m := make(map[uint32]xpkEntry)
	for _, e := range entries {
		for _, t := range e.tags {
			m[fourCC(t)] = e
		}
	}
	return m
}

// XPKNames lists the sub-format tags an XPK container may carry.
func XPKNames() []string {
	var names []string
	for tag := range xpkRegistry() {
		names = append(names, fourCCString(tag))
	}
	slices.Sort(names)
	return names
}
