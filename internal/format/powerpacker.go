// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"log/slog"
	"math/bits"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

// KeySearchLimit is the number of candidate keys tried on an obfuscated
// PowerPacker file before giving up.
const KeySearchLimit = 65536

const ppTrailerSize = 4

func detectPowerPacker(hdr, footer uint32) bool {
	return hdr == fourCC("PP20") || hdr == fourCC("PX20")
}

// powerPacker is a PowerPacker 2.0 file. The bit stream runs backward from
// the trailer, which gives the raw size and the bits to skip.
type powerPacker struct {
	sized
	packed     *buffer.Buffer
	obfuscated bool
	keyCheck   uint16
	eff        [4]uint8
	body       *buffer.Buffer
	skip       int
}

func newPowerPacker(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	if !exactSize {
		errs.Throwf(errs.ErrInvalidFormat, "PowerPacker needs the exact file size")
	}
	p := &powerPacker{packed: packed, obfuscated: packed.ReadBE32(0) == fourCC("PX20")}
	off := 4
	if p.obfuscated {
		p.keyCheck = packed.ReadBE16(4)
		off = 6
	}
	p.eff = parseEfficiency(packed, off)
	p.body, p.skip, p.rawSize = parseTrailer(packed, off+4)
	p.packedSize = packed.Size()
	checkSizes(p.packedSize, p.rawSize)
	return p
}

func parseEfficiency(packed *buffer.Buffer, off int) (eff [4]uint8) {
	for i := range eff {
		eff[i] = packed.At(off + i)
		if eff[i] < 1 || eff[i] > 15 {
			errs.Throwf(errs.ErrInvalidFormat, "PowerPacker efficiency %d", eff[i])
		}
	}
	return eff
}

func parseTrailer(packed *buffer.Buffer, bodyOff int) (body *buffer.Buffer, skip, rawSize int) {
	end := packed.Size() - ppTrailerSize
	if end < bodyOff {
		errs.Throwf(errs.ErrOutOfBounds, "PowerPacker stream of %d bytes", packed.Size())
	}
	trailer := packed.ReadBE32(end)
	return packed.Sub(bodyOff, end-bodyOff), int(trailer & 0xff), int(trailer >> 8)
}

func (p *powerPacker) Name() string { return "PowerPacker" }

func (p *powerPacker) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	checkRawSize(raw, p.rawSize)
	if !p.obfuscated {
		unpowerpack(p.body, p.eff, p.skip, raw)
		return nil
	}
	key, ok := searchKey(p.body, p.keyCheck, func(body *buffer.Buffer) bool {
		var exact bool
		err := errs.Catch(func() { exact = unpowerpack(body, p.eff, p.skip, raw) })
		return err == nil && exact
	})
	if !ok {
		slog.Warn("ppKeySearchExhausted", "tries", KeySearchLimit)
		errs.Throwf(errs.ErrDecompression, "no PowerPacker key fits")
	}
	slog.Debug("ppKeyFound", "key", key)
	return nil
}

// unpowerpack decodes into raw, reporting whether every byte of body was used.
func unpowerpack(body *buffer.Buffer, eff [4]uint8, skip int, raw *buffer.Buffer) bool {
	in := stream.NewBackwardInputStream(body, 0, body.Size())
	lsb := stream.NewLSBBitReader(in)
	// fields are stored with their bits reversed
	read := func(n int) int {
		return int(bits.Reverse32(lsb.ReadBits8(n)) >> (32 - n))
	}
	if skip > 0 {
		lsb.ReadBits8(skip)
	}

	out := stream.NewBackwardOutputStream(raw, 0, raw.Size())
	for !out.EOF() {
		if read(1) == 0 {
			n := 1
			for {
				x := read(2)
				n += x
				if x != 3 {
					break
				}
			}
			for range n {
				out.WriteU8(uint8(read(8)))
			}
			if out.EOF() {
				break
			}
		}

		x := read(2)
		offBits := int(eff[x])
		n := x + 2
		var offset int
		if x == 3 {
			if read(1) == 0 {
				offBits = 7
			}
			offset = read(offBits)
			for {
				y := read(3)
				n += y
				if y != 7 {
					break
				}
			}
		} else {
			offset = read(offBits)
		}
		out.Copy(offset+1, n)
	}
	return in.Remaining() == 0
}

// decrypt XORs body with key as big-endian words from its start.
func decrypt(body []byte, key uint32) []byte {
	out := make([]byte, len(body))
	for i, b := range body {
		out[i] = b ^ byte(key>>(24-8*(i%4)))
	}
	return out
}

// searchKey walks the tree of low-half key bits depth first, top bit
// first and zero before one. The high half is fixed by the stored check.
// Each complete key is tried until one decodes. The walk stops after
// KeySearchLimit tries.
func searchKey(body *buffer.Buffer, check uint16, try func(*buffer.Buffer) bool) (uint32, bool) {
	type node struct {
		depth int
		bits  uint16
	}
	work := []node{{}}
	tries := 0
	for len(work) > 0 && tries < KeySearchLimit {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		if n.depth < 16 {
			work = append(work,
				node{n.depth + 1, n.bits | 0x8000>>n.depth},
				node{n.depth + 1, n.bits})
			continue
		}
		tries++
		key := uint32(check^n.bits)<<16 | uint32(n.bits)
		if try(buffer.WrapReadOnly(decrypt(body.Bytes(), key))) {
			return key, true
		}
	}
	return 0, false
}

// PWPK chunks are PowerPacker streams without the magic. Only the first
// packed chunk of a stream carries the efficiency table.
type xpkPowerPacker struct {
	packed  *buffer.Buffer
	eff     [4]uint8
	bodyOff int
}

type ppModel struct {
	eff [4]uint8
}

func (m *ppModel) clone() xpkModel {
	c := *m
	return &c
}

func newXPKPowerPacker(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	d := &xpkPowerPacker{packed: packed}
	if m, ok := state.models[tag].(*ppModel); ok {
		d.eff = m.eff
		return d
	}
	d.eff = parseEfficiency(packed, 0)
	d.bodyOff = 4
	state.models[tag] = &ppModel{eff: d.eff}
	return d
}

func (d *xpkPowerPacker) SubName() string { return "XPK-PWPK" }

func (d *xpkPowerPacker) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	body, skip, rawSize := parseTrailer(d.packed, d.bodyOff)
	checkRawSize(raw, rawSize)
	unpowerpack(body, d.eff, skip, raw)
}
