package format

import (
	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/checksum"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/huffman"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

const (
	bzBlockMagic = 0x314159265359
	bzEndMagic   = 0x177245385090
	bzGroupSize  = 50
	bzMaxGroups  = 6
	bzMaxCodeLen = 20
)

func detectBZip2(hdr, footer uint32) bool {
	return hdr>>8 == 0x425a68 && uint8(hdr) >= '1' && uint8(hdr) <= '9'
}

type bzip2 struct {
	sized
	packed    *buffer.Buffer
	blockSize int
}

func newBZip2(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	hdr := packed.ReadBE32(0)
	if !detectBZip2(hdr, 0) {
		errs.Throwf(errs.ErrInvalidFormat, "not a bzip2 stream")
	}
	b := &bzip2{packed: packed, blockSize: int(uint8(hdr)-'0') * 100000}
	if exactSize {
		b.packedSize = packed.Size()
	}
	return b
}

func (b *bzip2) Name() string { return "BZip2" }

func (b *bzip2) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	in := stream.NewForwardInputStream(b.packed, 4, b.packed.Size())
	out := outputFor(raw)
	unbzip2(stream.NewMSBBitReader(in), out, b.blockSize, verify)
	out.Finish()
	b.rawSize = len(out.Written())
	b.packedSize = in.Offset()
	return nil
}

func read48(br *stream.MSBBitReader) uint64 {
	return uint64(br.ReadBits8(24))<<24 | uint64(br.ReadBits8(24))
}

// unbzip2 decodes blocks from just after the "BZh" header to the end-of-stream marker.
func unbzip2(br *stream.MSBBitReader, out *stream.ForwardOutputStream, blockSize int, verify bool) {
	tt := make([]uint32, blockSize)
	var combined uint32
	for {
		switch magic := read48(br); magic {
		case bzBlockMagic:
		case bzEndMagic:
			want := br.ReadBits8(32)
			if verify && want != combined {
				errs.Throwf(errs.ErrVerification, "bzip2 stream CRC %08x, computed %08x", want, combined)
			}
			return
		default:
			errs.Throwf(errs.ErrDecompression, "bzip2 block magic %012x", magic)
		}

		want := br.ReadBits8(32)
		got := bzip2Block(br, out, tt)
		if verify && want != got {
			errs.Throwf(errs.ErrVerification, "bzip2 block CRC %08x, computed %08x", want, got)
		}
		combined = (combined<<1 | combined>>31) ^ got
	}
}

// bzip2Block decodes one block and returns the CRC of its output.
func bzip2Block(br *stream.MSBBitReader, out *stream.ForwardOutputStream, tt []uint32) uint32 {
	bit := huffman.BitFunc(br.ReadBit)
	if br.ReadBit() != 0 {
		errs.Throwf(errs.ErrDecompression, "bzip2 randomised blocks are not supported")
	}
	origPtr := int(br.ReadBits8(24))

	// symbol map: 16 ranges of 16 bytes
	var seqToUnseq []uint8
	used := br.ReadBits8(16)
	for i := range 16 {
		if used&(0x8000>>i) == 0 {
			continue
		}
		bitsUsed := br.ReadBits8(16)
		for j := range 16 {
			if bitsUsed&(0x8000>>j) != 0 {
				seqToUnseq = append(seqToUnseq, uint8(i*16+j))
			}
		}
	}
	if len(seqToUnseq) == 0 {
		errs.Throwf(errs.ErrDecompression, "bzip2 block uses no bytes")
	}
	alphaSize := len(seqToUnseq) + 2

	nGroups := int(br.ReadBits8(3))
	nSelectors := int(br.ReadBits8(15))
	if nGroups < 2 || nGroups > bzMaxGroups || nSelectors == 0 {
		errs.Throwf(errs.ErrDecompression, "bzip2 %d groups, %d selectors", nGroups, nSelectors)
	}
	mtfGroups := []uint8{0, 1, 2, 3, 4, 5}[:nGroups]
	selectors := make([]uint8, nSelectors)
	for i := range selectors {
		j := 0
		for br.ReadBit() == 1 {
			j++
			if j >= nGroups {
				errs.Throwf(errs.ErrDecompression, "bzip2 selector out of range")
			}
		}
		v := mtfGroups[j]
		copy(mtfGroups[1:j+1], mtfGroups[:j])
		mtfGroups[0] = v
		selectors[i] = v
	}

	tables := make([]*huffman.Decoder[uint32], nGroups)
	lengths := make([]uint8, alphaSize)
	for t := range tables {
		curr := int(br.ReadBits8(5))
		for i := range lengths {
			for {
				if curr < 1 || curr > bzMaxCodeLen {
					errs.Throwf(errs.ErrDecompression, "bzip2 code length %d", curr)
				}
				if br.ReadBit() == 0 {
					break
				}
				if br.ReadBit() == 0 {
					curr++
				} else {
					curr--
				}
			}
			lengths[i] = uint8(curr)
		}
		tables[t] = huffman.NewOrderly(lengths)
	}

	// MTF and RUNA/RUNB
	eob := uint32(alphaSize - 1)
	mtf := make([]uint8, len(seqToUnseq))
	for i := range mtf {
		mtf[i] = uint8(i)
	}
	var counts [256]int
	n := 0
	sel, left := 0, 0
	next := func() uint32 {
		if left == 0 {
			if sel >= nSelectors {
				errs.Throwf(errs.ErrDecompression, "bzip2 ran out of selectors")
			}
			sel++
			left = bzGroupSize
		}
		left--
		return tables[selectors[sel-1]].Decode(bit)
	}
	emit := func(c uint8, run int) {
		if run > len(tt)-n {
			errs.Throwf(errs.ErrDecompression, "bzip2 block larger than %d", len(tt))
		}
		counts[c] += run
		for range run {
			tt[n] = uint32(c)
			n++
		}
	}

	sym := next()
	for sym != eob {
		if sym <= 1 {
			run, weight := 0, 1
			for sym <= 1 {
				if weight > len(tt) {
					errs.Throwf(errs.ErrDecompression, "bzip2 run too long")
				}
				run += int(sym+1) * weight
				weight <<= 1
				sym = next()
			}
			emit(seqToUnseq[mtf[0]], run)
			continue
		}
		i := sym - 1
		v := mtf[i]
		copy(mtf[1:i+1], mtf[:i])
		mtf[0] = v
		emit(seqToUnseq[v], 1)
		sym = next()
	}

	if origPtr >= n {
		errs.Throwf(errs.ErrDecompression, "bzip2 origin %d in block of %d", origPtr, n)
	}

	// inverse Burrows-Wheeler
	var cftab [256]int
	sum := 0
	for c, k := range counts {
		cftab[c] = sum
		sum += k
	}
	for i := range n {
		c := tt[i] & 0xff
		tt[cftab[c]] |= uint32(i) << 8
		cftab[c]++
	}

	// undo the initial run length coding while computing the CRC
	crc := checksum.NewCRC32BE()
	pos := tt[origPtr] >> 8
	last, same := -1, 0
	for k := 0; k < n; k++ {
		pos = tt[pos]
		c := uint8(pos)
		pos >>= 8
		if same == 4 {
			for range c {
				out.WriteU8(uint8(last))
				crc.WriteByte(uint8(last))
			}
			last, same = -1, 0
			continue
		}
		if int(c) == last {
			same++
		} else {
			last, same = int(c), 1
		}
		out.WriteU8(c)
		crc.WriteByte(c)
	}
	return crc.Sum32()
}

// BZP2 chunks are whole bzip2 streams.
type xpkBZip2 struct {
	packed *buffer.Buffer
}

func newXPKBZip2(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	if !detectBZip2(packed.ReadBE32(0), 0) {
		errs.Throwf(errs.ErrDecompression, "BZP2 chunk is not a bzip2 stream")
	}
	return &xpkBZip2{packed: packed}
}

func (d *xpkBZip2) SubName() string { return "XPK-BZP2" }

func (d *xpkBZip2) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	blockSize := int(d.packed.At(3)-'0') * 100000
	in := stream.NewForwardInputStream(d.packed, 4, d.packed.Size())
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())
	unbzip2(stream.NewMSBBitReader(in), out, blockSize, verify)
	if !out.EOF() {
		errs.Throwf(errs.ErrDecompression, "bzip2 chunk short by %d bytes", raw.Size()-out.Offset())
	}
}
