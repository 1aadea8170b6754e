// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"io"
	"log/slog"

	"github.com/boljen/go-bitmap"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/checksum"
	"github.com/elliotnunn/unsqueeze/internal/decompressioncache"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/huffman"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

const (
	dmsHeaderSize      = 56
	dmsTrackHeaderSize = 20
	dmsDiskTracks      = 80
	dmsMinTrackSize    = 2048 // anything shorter is a banner or text file
	dmsEncrypted       = 0x02

	dmsNone   = 0
	dmsSimple = 1
	dmsQuick  = 2
	dmsMedium = 3
	dmsDeep   = 4
	dmsHeavy1 = 5
	dmsHeavy2 = 6

	dmsKeepState = 0x01

	dmsQuickMask  = 0xff
	dmsWindowMask = 0x3fff
	dmsDeepSyms   = 314
)

func detectDMS(hdr, footer uint32) bool {
	return hdr == fourCC("DMS!")
}

type dmsTrack struct {
	number         int
	off            int
	pklen1, pklen2 int
	unpklen        int
	flags, mode    uint8
	usum, dcrc     uint16
}

// dms is an Amiga DiskMasher archive of consecutive floppy tracks.
type dms struct {
	sized
	packed    *buffer.Buffer
	from, to  int
	trackSize int
	tracks    []dmsTrack
}

func newDMS(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	if packed.ReadBE32(0) != fourCC("DMS!") {
		errs.Throwf(errs.ErrInvalidFormat, "not a DMS archive")
	}
	if verify && checksum.CRC16(packed.Slice(4, 50)) != packed.ReadBE16(54) {
		errs.Throwf(errs.ErrVerification, "DMS header CRC")
	}
	if packed.ReadBE16(10)&dmsEncrypted != 0 {
		errs.Throwf(errs.ErrInvalidFormat, "DMS archive is encrypted")
	}
	d := &dms{
		packed: packed,
		from:   int(packed.ReadBE16(16)),
		to:     int(packed.ReadBE16(18)),
	}
	if d.from > d.to || d.to >= dmsDiskTracks {
		errs.Throwf(errs.ErrInvalidFormat, "DMS tracks %d to %d", d.from, d.to)
	}

	off := dmsHeaderSize
	for off+dmsTrackHeaderSize <= packed.Size() && packed.ReadBE16(off) == 0x5452 { // TR
		if verify && checksum.CRC16(packed.Slice(off, 18)) != packed.ReadBE16(off+18) {
			errs.Throwf(errs.ErrVerification, "DMS track header CRC at %d", off)
		}
		t := dmsTrack{
			number:  int(packed.ReadBE16(off + 2)),
			off:     off + dmsTrackHeaderSize,
			pklen1:  int(packed.ReadBE16(off + 6)),
			pklen2:  int(packed.ReadBE16(off + 8)),
			unpklen: int(packed.ReadBE16(off + 10)),
			flags:   packed.At(off + 12),
			mode:    packed.At(off + 13),
			usum:    packed.ReadBE16(off + 14),
			dcrc:    packed.ReadBE16(off + 16),
		}
		if t.mode == dmsHeavy1 || t.mode == dmsHeavy2 {
			errs.Throwf(errs.ErrInvalidFormat, "DMS track %d uses HEAVY compression", t.number)
		} else if t.mode > dmsHeavy2 {
			errs.Throwf(errs.ErrInvalidFormat, "DMS track %d mode %d", t.number, t.mode)
		}
		off = buffer.Sum(t.off, t.pklen1)
		if off > packed.Size() {
			errs.Throwf(errs.ErrInvalidFormat, "DMS track %d truncated", t.number)
		}
		if t.isDisk() {
			if d.trackSize == 0 {
				d.trackSize = t.unpklen
			} else if t.unpklen != d.trackSize {
				errs.Throwf(errs.ErrInvalidFormat, "DMS track %d is %d bytes, not %d", t.number, t.unpklen, d.trackSize)
			}
		}
		d.tracks = append(d.tracks, t)
	}
	if d.trackSize == 0 {
		errs.Throwf(errs.ErrInvalidFormat, "DMS archive has no disk tracks")
	}
	d.packedSize = off
	d.rawSize = (d.to - d.from + 1) * d.trackSize
	checkSizes(d.packedSize, d.rawSize)
	return d
}

func (t *dmsTrack) isDisk() bool {
	return t.number < dmsDiskTracks && t.unpklen > dmsMinTrackSize
}

func (d *dms) Name() string     { return "DMS" }
func (d *dms) ImageSize() int   { return dmsDiskTracks * d.trackSize }
func (d *dms) ImageOffset() int { return d.from * d.trackSize }

func (d *dms) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	checkRawSize(raw, d.rawSize)
	dst := raw.Writable()
	filled := bitmap.New(d.to - d.from + 1)
	st := newDMSState()
	for i := range d.tracks {
		t := &d.tracks[i]
		data := d.decodeTrack(t, st, verify)
		if !t.isDisk() {
			continue
		}
		if t.number < d.from || t.number > d.to {
			slog.Warn("dmsTrackOutsideRange", "track", t.number, "from", d.from, "to", d.to)
			continue
		}
		copy(dst[(t.number-d.from)*d.trackSize:], data)
		filled.Set(t.number-d.from, true)
	}
	for i := range d.to - d.from + 1 {
		if !filled.Get(i) {
			slog.Warn("dmsTrackMissing", "track", d.from+i)
			clear(dst[i*d.trackSize : (i+1)*d.trackSize])
		}
	}
	return nil
}

// Steps decodes one archived track per step. Tracks must be stored in order.
func (d *dms) Steps(verify bool) decompressioncache.Stepper {
	return d.stepAt(0, d.from, newDMSState(), verify)
}

func (d *dms) stepAt(i, want int, state *dmsState, verify bool) decompressioncache.Stepper {
	return func() (next decompressioncache.Stepper, blob []byte, err error) {
		defer errs.Recover(&err, errs.ErrDecompression)
		st := state.clone()
		if i == len(d.tracks) {
			// zero tracks missing from the end
			return nil, make([]byte, (d.to+1-want)*d.trackSize), io.EOF
		}
		t := &d.tracks[i]
		data := d.decodeTrack(t, st, verify)
		if t.isDisk() && t.number >= d.from && t.number <= d.to {
			if t.number < want {
				errs.Throwf(errs.ErrDecompression, "DMS track %d stored out of order", t.number)
			}
			blob = make([]byte, (t.number-want)*d.trackSize, (t.number+1-want)*d.trackSize)
			blob = append(blob, data...)
			want = t.number + 1
		}
		return d.stepAt(i+1, want, st, verify), blob, nil
	}
}

// dmsState is the window and models that survive from track to track.
type dmsState struct {
	text                         [dmsWindowMask + 1]uint8
	quickLoc, mediumLoc, deepLoc int
	deep                         *huffman.Dynamic
}

func newDMSState() *dmsState {
	s := new(dmsState)
	s.reset()
	return s
}

func (s *dmsState) reset() {
	clear(s.text[:0x3fc8])
	s.quickLoc = 251
	s.mediumLoc = 0x3fbe
	s.deepLoc = 0x3fc4
	s.deep = nil
}

func (s *dmsState) clone() *dmsState {
	c := *s
	if s.deep != nil {
		c.deep = s.deep.Clone()
	}
	return &c
}

func (d *dms) decodeTrack(t *dmsTrack, st *dmsState, verify bool) []byte {
	packed := d.packed.Sub(t.off, t.pklen1)
	if verify && checksum.CRC16(packed.Bytes()) != t.dcrc {
		errs.Throwf(errs.ErrVerification, "DMS track %d data CRC", t.number)
	}
	out := make([]byte, t.unpklen)
	switch t.mode {
	case dmsNone:
		if t.pklen1 < t.unpklen {
			errs.Throwf(errs.ErrDecompression, "DMS stored track %d short", t.number)
		}
		copy(out, packed.Bytes())
	case dmsSimple:
		dmsRunLength(packed, out)
	default:
		mid := make([]byte, t.pklen2)
		br := stream.NewMSBBitReader(stream.NewForwardInputStream(packed, 0, packed.Size()))
		switch t.mode {
		case dmsQuick:
			st.quick(br, mid)
		case dmsMedium:
			st.medium(br, mid)
		case dmsDeep:
			st.deepTrack(br, mid)
		}
		dmsRunLength(buffer.WrapReadOnly(mid), out)
	}
	if t.flags&dmsKeepState == 0 {
		st.reset()
	}
	if verify && checksum.ByteSum16(out) != t.usum {
		errs.Throwf(errs.ErrVerification, "DMS track %d checksum", t.number)
	}
	return out
}

// dmsRunLength expands 0x90 escapes: 0x90 0x00 is a literal 0x90,
// 0x90 n v repeats v n times, and 0x90 0xff v hi lo repeats it a 16-bit count.
func dmsRunLength(packed *buffer.Buffer, dst []byte) {
	in := stream.NewForwardInputStream(packed, 0, packed.Size())
	o := 0
	for o < len(dst) {
		a := in.ReadU8()
		if a != 0x90 {
			dst[o] = a
			o++
			continue
		}
		b := in.ReadU8()
		if b == 0 {
			dst[o] = a
			o++
			continue
		}
		v := in.ReadU8()
		n := int(b)
		if b == 0xff {
			n = int(in.ReadBE16())
		}
		if n > len(dst)-o {
			errs.Throwf(errs.ErrDecompression, "DMS run of %d overflows track", n)
		}
		for range n {
			dst[o] = v
			o++
		}
	}
}

func (s *dmsState) put(loc *int, mask int, v uint8) uint8 {
	s.text[*loc&mask] = v
	*loc++
	return v
}

func (s *dmsState) copyMatch(dst []byte, o int, loc *int, mask, distance, n int) int {
	if n > len(dst)-o {
		errs.Throwf(errs.ErrDecompression, "DMS match of %d overflows track", n)
	}
	src := *loc - distance
	for range n {
		dst[o] = s.put(loc, mask, s.text[src&mask])
		src++
		o++
	}
	return o
}

func (s *dmsState) quick(br *stream.MSBBitReader, dst []byte) {
	for o := 0; o < len(dst); {
		if br.ReadBits8(1) != 0 {
			dst[o] = s.put(&s.quickLoc, dmsQuickMask, uint8(br.ReadBits8(8)))
			o++
			continue
		}
		n := int(br.ReadBits8(2)) + 2
		distance := int(br.ReadBits8(8)) + 1
		o = s.copyMatch(dst, o, &s.quickLoc, dmsQuickMask, distance, n)
	}
	s.quickLoc = (s.quickLoc + 5) & dmsQuickMask
}

// dmsPrefix decodes the prefix code at the top of the 8-bit window c and
// returns its value with the 8 bits that follow the prefix.
func dmsPrefix(br *stream.MSBBitReader, c uint32) (code int, low uint32) {
	t := lzhufPositions()
	n := int(t.length[c])
	return int(t.code[c]), (c<<n | br.ReadBits8(n)) & 0xff
}

func (s *dmsState) medium(br *stream.MSBBitReader, dst []byte) {
	for o := 0; o < len(dst); {
		if br.ReadBits8(1) != 0 {
			dst[o] = s.put(&s.mediumLoc, dmsWindowMask, uint8(br.ReadBits8(8)))
			o++
			continue
		}
		lenCode, c := dmsPrefix(br, br.ReadBits8(8))
		high, low := dmsPrefix(br, c)
		distance := (high<<8 | int(low)) + 1
		o = s.copyMatch(dst, o, &s.mediumLoc, dmsWindowMask, distance, lenCode+3)
	}
	s.mediumLoc = (s.mediumLoc + 66) & dmsWindowMask
}

func (s *dmsState) deepTrack(br *stream.MSBBitReader, dst []byte) {
	if s.deep == nil {
		s.deep = huffman.NewDynamic(dmsDeepSyms, dmsDeepSyms)
	}
	bit := huffman.BitFunc(br.ReadBit)
	for o := 0; o < len(dst); {
		c := s.deep.Decode(bit)
		s.deep.Update(c)
		if c < 256 {
			dst[o] = s.put(&s.deepLoc, dmsWindowMask, uint8(c))
			o++
			continue
		}
		high, low := dmsPrefix(br, br.ReadBits8(8))
		distance := (high<<8 | int(low)) + 1
		o = s.copyMatch(dst, o, &s.deepLoc, dmsWindowMask, distance, c-253)
	}
	s.deepLoc = (s.deepLoc + 60) & dmsWindowMask
}
