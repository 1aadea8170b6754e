// Package checksum holds the check values legacy formats embed.
package checksum

var crc16tab [256]uint16

func init() {
	for i := range uint16(256) {
		k := i
		for range 8 {
			if k&1 != 0 {
				k = (k >> 1) ^ 0xa001
			} else {
				k >>= 1
			}
		}
		crc16tab[i] = k
	}
}

// UpdateCRC16 continues a reflected CRC-16 (polynomial 0x8005, as in ARC) over p.
func UpdateCRC16(crc uint16, p []byte) uint16 {
	for _, ch := range p {
		crc = crc16tab[byte(crc)^ch] ^ crc>>8
	}
	return crc
}

// CRC16 is UpdateCRC16 from zero.
func CRC16(p []byte) uint16 { return UpdateCRC16(0, p) }
