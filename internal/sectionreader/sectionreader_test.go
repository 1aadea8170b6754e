package sectionreader

import (
	"io"
	"math"
	"strings"
	"testing"
)

func TestPlace(t *testing.T) {
	var abcd io.ReaderAt = strings.NewReader("abcd")
	var r io.ReaderAt

	r = Place(abcd, 2, 4, 8)
	expectRead(t, r, 0, 8, "\x00\x00abcd\x00\x00")
	expectRead(t, r, 0, 9, "\x00\x00abcd\x00\x00 EOF")
	expectRead(t, r, 3, 2, "bc")
	expectRead(t, r, 5, 2, "d\x00")
	expectRead(t, r, 7, 2, "\x00 EOF")
	expectRead(t, r, 8, 1, " EOF")
	expectRead(t, r, math.MaxInt64, 1, " EOF")
	expectRead(t, r, -1, 1, " EOF")

	r = Place(abcd, 0, 4, 4)
	expectRead(t, r, 0, 4, "abcd")
}

func TestPlaceOutside(t *testing.T) {
	var abcd io.ReaderAt = strings.NewReader("abcd")

	r := Place(abcd, 6, 4, 8)
	if at, n := r.Section(); at != 6 || n != 0 {
		t.Errorf("section overhanging the image kept as %d+%d", at, n)
	}
	expectRead(t, r, 0, 8, "\x00\x00\x00\x00\x00\x00\x00\x00")

	r = Place(abcd, math.MaxInt64, math.MaxInt64, 4)
	expectRead(t, r, 0, 4, "\x00\x00\x00\x00")
}

func TestShortBacking(t *testing.T) {
	r := Place(strings.NewReader("ab"), 1, 4, 6)
	expectRead(t, r, 0, 6, "\x00ab unexpected EOF")
}

func expectRead(t *testing.T, r io.ReaderAt, off int64, n int, expect string) {
	buf := make([]byte, n)
	gotn, err := r.ReadAt(buf, off)
	gots := string(buf[:gotn])
	if err != nil {
		gots += " " + err.Error()
	}
	if gots != expect {
		t.Errorf("ReadAt(%d bytes at offset %d) -> expected %q got %q", n, off, expect, gots)
	}
}
