package checksum

import (
	"hash/adler32"
	"hash/crc32"
)

// CRC32 is the reflected IEEE CRC of gzip and zip.
func CRC32(p []byte) uint32 { return crc32.ChecksumIEEE(p) }

func UpdateCRC32(crc uint32, p []byte) uint32 { return crc32.Update(crc, crc32.IEEETable, p) }

var crc32BETab [256]uint32

func init() {
	for i := range uint32(256) {
		k := i << 24
		for range 8 {
			if k&0x80000000 != 0 {
				k = k<<1 ^ 0x04c11db7
			} else {
				k <<= 1
			}
		}
		crc32BETab[i] = k
	}
}

// CRC32BE is the unreflected CRC of bzip2: same polynomial as CRC32,
// most significant bit first, initial value and final xor all ones.
type CRC32BE uint32

func NewCRC32BE() CRC32BE { return CRC32BE(0xffffffff) }

func (c *CRC32BE) WriteByte(b byte) error {
	*c = CRC32BE(uint32(*c)<<8 ^ crc32BETab[byte(uint32(*c)>>24)^b])
	return nil
}

func (c *CRC32BE) Write(p []byte) (int, error) {
	for _, b := range p {
		c.WriteByte(b)
	}
	return len(p), nil
}

func (c CRC32BE) Sum32() uint32 { return ^uint32(c) }

// Adler32 is the zlib check value.
func Adler32(p []byte) uint32 { return adler32.Checksum(p) }
