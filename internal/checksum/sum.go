package checksum

// XOR8 folds p into one byte.
func XOR8(p []byte) uint8 {
	var x uint8
	for _, b := range p {
		x ^= b
	}
	return x
}

// XOR16 folds p as big-endian 16-bit words. An odd final byte is the high half of its word.
func XOR16(p []byte) uint16 {
	var x uint16
	for len(p) >= 2 {
		x ^= uint16(p[0])<<8 | uint16(p[1])
		p = p[2:]
	}
	if len(p) == 1 {
		x ^= uint16(p[0]) << 8
	}
	return x
}

// ByteSum16 adds the bytes of p modulo 65536.
func ByteSum16(p []byte) uint16 {
	var s uint16
	for _, b := range p {
		s += uint16(b)
	}
	return s
}
