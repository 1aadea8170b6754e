package checksum

import (
	"testing"
)

func TestKnownValues(t *testing.T) {
	check := []byte("123456789")
	if got := CRC16(check); got != 0xbb3d {
		t.Errorf("CRC16 = %#04x", got)
	}
	if got := UpdateCRC16(CRC16(check[:4]), check[4:]); got != 0xbb3d {
		t.Errorf("incremental CRC16 = %#04x", got)
	}
	if got := CRC32(check); got != 0xcbf43926 {
		t.Errorf("CRC32 = %#08x", got)
	}
	c := NewCRC32BE()
	c.Write(check)
	if got := c.Sum32(); got != 0xfc891918 {
		t.Errorf("CRC32BE = %#08x", got)
	}
	if got := Adler32([]byte("Wikipedia")); got != 0x11e60398 {
		t.Errorf("Adler32 = %#08x", got)
	}
}

func TestSums(t *testing.T) {
	cases := []struct {
		in    []byte
		xor8  uint8
		xor16 uint16
		sum   uint16
	}{
		{nil, 0, 0, 0},
		{[]byte{0x12}, 0x12, 0x1200, 0x12},
		{[]byte{0x12, 0x34, 0x56}, 0x70, 0x4434, 0x9c},
		{[]byte{0xff, 0xff, 0xff, 0xff}, 0, 0, 0x3fc},
	}
	for _, c := range cases {
		if got := XOR8(c.in); got != c.xor8 {
			t.Errorf("XOR8(%x) = %#x", c.in, got)
		}
		if got := XOR16(c.in); got != c.xor16 {
			t.Errorf("XOR16(%x) = %#x", c.in, got)
		}
		if got := ByteSum16(c.in); got != c.sum {
			t.Errorf("ByteSum16(%x) = %#x", c.in, got)
		}
	}
}
