package format

import (
	"sync"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/checksum"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/huffman"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

var (
	lengthBase  = [...]uint16{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
	lengthExtra = [...]uint8{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
	distBase    = [...]uint32{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
	distExtra   = [...]uint8{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

	codeLengthOrder = [...]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)

var fixedTables = sync.OnceValues(func() (lit, dist *huffman.Decoder[uint32]) {
	var lengths [288 + 30]uint8
	for i := range 288 {
		switch {
		case i < 144:
			lengths[i] = 8
		case i < 256:
			lengths[i] = 9
		case i < 280:
			lengths[i] = 7
		default:
			lengths[i] = 8
		}
	}
	for i := 288; i < len(lengths); i++ {
		lengths[i] = 5
	}
	return huffman.NewOrderly(lengths[:288]), huffman.NewOrderly(lengths[288:])
})

// inflate decodes RFC 1951 blocks until the final one. On return in is
// positioned at the first byte after the stream.
func inflate(in *stream.ForwardInputStream, out *stream.ForwardOutputStream) {
	br := stream.NewLSBBitReader(in)
	bit := huffman.BitFunc(br.ReadBit)
	for {
		final := br.ReadBits8(1)
		switch br.ReadBits8(2) {
		case 0:
			br.AlignByte()
			n := in.ReadLE16()
			if ^n != in.ReadLE16() {
				errs.Throwf(errs.ErrDecompression, "stored block length check")
			}
			out.WriteBytes(in.Consume(int(n)))
		case 1:
			lit, dist := fixedTables()
			inflateBlock(br, bit, out, lit, dist)
		case 2:
			lit, dist := dynamicTables(br, bit)
			inflateBlock(br, bit, out, lit, dist)
		default:
			errs.Throwf(errs.ErrDecompression, "reserved block type")
		}
		if final == 1 {
			return
		}
	}
}

func dynamicTables(br *stream.LSBBitReader, bit huffman.BitFunc) (lit, dist *huffman.Decoder[uint32]) {
	hlit := int(br.ReadBits8(5)) + 257
	hdist := int(br.ReadBits8(5)) + 1
	hclen := int(br.ReadBits8(4)) + 4
	if hlit > 286 || hdist > 30 {
		errs.Throwf(errs.ErrDecompression, "dynamic block with %d/%d codes", hlit, hdist)
	}

	var clen [19]uint8
	for _, i := range codeLengthOrder[:hclen] {
		clen[i] = uint8(br.ReadBits8(3))
	}
	cl := huffman.NewOrderly(clen[:])

	lengths := make([]uint8, hlit+hdist)
	for i := 0; i < len(lengths); {
		sym := cl.Decode(bit)
		var rep int
		var v uint8
		switch sym {
		case 16:
			if i == 0 {
				errs.Throwf(errs.ErrDecompression, "repeat with no previous length")
			}
			v = lengths[i-1]
			rep = 3 + int(br.ReadBits8(2))
		case 17:
			rep = 3 + int(br.ReadBits8(3))
		case 18:
			rep = 11 + int(br.ReadBits8(7))
		default:
			lengths[i] = uint8(sym)
			i++
			continue
		}
		if rep > len(lengths)-i {
			errs.Throwf(errs.ErrDecompression, "code lengths overrun table")
		}
		for range rep {
			lengths[i] = v
			i++
		}
	}
	if lengths[256] == 0 {
		errs.Throwf(errs.ErrDecompression, "no end-of-block code")
	}

	lit = huffman.NewOrderly(lengths[:hlit])
	for _, n := range lengths[hlit:] {
		if n != 0 {
			dist = huffman.NewOrderly(lengths[hlit:])
			break
		}
	}
	return lit, dist
}

func inflateBlock(br *stream.LSBBitReader, bit huffman.BitFunc, out *stream.ForwardOutputStream, lit, dist *huffman.Decoder[uint32]) {
	for {
		sym := lit.Decode(bit)
		switch {
		case sym < 256:
			out.WriteU8(uint8(sym))
		case sym == 256:
			return
		case sym <= 285:
			i := sym - 257
			length := int(lengthBase[i]) + int(br.ReadBits8(int(lengthExtra[i])))
			if dist == nil {
				errs.Throwf(errs.ErrDecompression, "match in block without distance codes")
			}
			d := dist.Decode(bit)
			if d >= 30 {
				errs.Throwf(errs.ErrDecompression, "distance code %d", d)
			}
			out.Copy(int(distBase[d])+int(br.ReadBits8(int(distExtra[d]))), length)
		default:
			errs.Throwf(errs.ErrDecompression, "literal/length code %d", sym)
		}
	}
}

const (
	gzipText     = 0x01
	gzipHCRC     = 0x02
	gzipExtra    = 0x04
	gzipName     = 0x08
	gzipComment  = 0x10
	gzipReserved = 0xe0
)

func detectGZip(hdr, footer uint32) bool {
	return hdr>>16 == 0x1f8b && uint8(hdr>>8) == 8
}

// gzip is a single RFC 1952 member.
type gzip struct {
	sized
	packed  *buffer.Buffer
	dataOff int
}

func newGZip(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	flags := packed.At(3)
	if flags&gzipReserved != 0 {
		errs.Throwf(errs.ErrInvalidFormat, "gzip reserved flags %#x", flags)
	}
	off := 10
	if flags&gzipExtra != 0 {
		off = buffer.Sum(off, 2, int(packed.ReadLE16(off)))
	}
	for _, f := range []uint8{gzipName, gzipComment} {
		if flags&f == 0 {
			continue
		}
		for packed.At(off) != 0 {
			off++
		}
		off++
	}
	if flags&gzipHCRC != 0 {
		if verify && uint16(checksum.CRC32(packed.Slice(0, off))) != packed.ReadLE16(off) {
			errs.Throwf(errs.ErrVerification, "gzip header CRC")
		}
		off += 2
	}
	g := &gzip{packed: packed, dataOff: off}
	if exactSize {
		g.packedSize = packed.Size()
		g.rawSize = int(packed.ReadLE32(packed.Size() - 4))
		checkSizes(g.packedSize, g.rawSize)
	}
	return g
}

func (g *gzip) Name() string { return "GZip" }

func (g *gzip) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	if g.rawSize != 0 {
		checkRawSize(raw, g.rawSize)
	}
	in := stream.NewForwardInputStream(g.packed, g.dataOff, g.packed.Size())
	out := outputFor(raw)
	inflate(in, out)
	out.Finish()
	crc, isize := in.ReadLE32(), in.ReadLE32()

	data := out.Written()
	if g.rawSize != 0 && len(data) != g.rawSize {
		errs.Throwf(errs.ErrDecompression, "gzip stream decodes to %d bytes, trailer says %d", len(data), g.rawSize)
	}
	if verify {
		if checksum.CRC32(data) != crc {
			errs.Throwf(errs.ErrVerification, "gzip CRC")
		}
		if uint32(len(data)) != isize {
			errs.Throwf(errs.ErrVerification, "gzip length %d, trailer says %d", len(data), isize)
		}
	}
	g.rawSize = len(data)
	g.packedSize = in.Offset()
	return nil
}

func detectZLib(hdr, footer uint32) bool {
	cmf, flg := hdr>>24, hdr>>16&0xff
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (cmf<<8|flg)%31 == 0 && flg&0x20 == 0
}

// zlib is an RFC 1950 stream without a preset dictionary.
type zlib struct {
	sized
	packed *buffer.Buffer
}

func newZLib(packed *buffer.Buffer, exactSize, verify bool) Decompressor {
	if !detectZLib(packed.ReadBE32(0), 0) {
		errs.Throwf(errs.ErrInvalidFormat, "not a zlib stream")
	}
	z := &zlib{packed: packed}
	if exactSize {
		z.packedSize = packed.Size()
	}
	return z
}

func (z *zlib) Name() string { return "ZLib" }

func (z *zlib) Decompress(raw *buffer.Buffer, verify bool) (err error) {
	defer errs.Recover(&err, errs.ErrDecompression)
	in := stream.NewForwardInputStream(z.packed, 2, z.packed.Size())
	out := outputFor(raw)
	inflate(in, out)
	out.Finish()
	sum := in.ReadBE32()
	data := out.Written()
	if verify && checksum.Adler32(data) != sum {
		errs.Throwf(errs.ErrVerification, "zlib Adler-32")
	}
	z.rawSize = len(data)
	z.packedSize = in.Offset()
	return nil
}

// GZIP chunks are bare deflate streams.
type xpkDeflate struct {
	packed *buffer.Buffer
}

func newXPKGZip(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	return &xpkDeflate{packed: packed}
}

func (d *xpkDeflate) SubName() string { return "XPK-GZIP" }

func (d *xpkDeflate) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	in := stream.NewForwardInputStream(d.packed, 0, d.packed.Size())
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())
	inflate(in, out)
	if !out.EOF() {
		errs.Throwf(errs.ErrDecompression, "deflate chunk short by %d bytes", raw.Size()-out.Offset())
	}
}
