// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package sectionreader places a partial disk image inside a blank one.
package sectionreader

import (
	"io"
)

// Place presents the n bytes of r at offset at within total bytes of zeros.
func Place(r io.ReaderAt, at, n, total int64) *ReaderAt {
	if at < 0 || n < 0 || at > total || n > total-at {
		// keep the section inside the image
		at, n = min(max(at, 0), max(total, 0)), 0
	}
	return &ReaderAt{r, at, n, max(total, 0)}
}

type ReaderAt struct {
	r            io.ReaderAt
	at, n, total int64
}

func (s *ReaderAt) Size() int64 { return s.total }

// Section reports where the backing data sits in the image.
func (s *ReaderAt) Section() (at, n int64) { return s.at, s.n }

func (s *ReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off >= s.total {
		return 0, io.EOF
	}
	if room := s.total - off; int64(len(p)) > room {
		p = p[:room]
		err = io.EOF
	}
	clear(p)

	// overlap of [off, off+len(p)) with [at, at+n)
	lo := max(off, s.at)
	hi := min(off+int64(len(p)), s.at+s.n)
	if lo < hi {
		got, rerr := s.r.ReadAt(p[lo-off:hi-off], lo-s.at)
		if int64(got) < hi-lo {
			if rerr == nil || rerr == io.EOF {
				rerr = io.ErrUnexpectedEOF
			}
			return int(lo - off + int64(got)), rerr
		}
	}
	return len(p), err
}
