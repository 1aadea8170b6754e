// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package mmapfile gives the whole of a file as a byte slice, mapped where
// the platform allows it.
package mmapfile

import (
	"errors"
	"fmt"
	"os"
)

// ErrTooLarge is returned for files that cannot be addressed as one slice.
var ErrTooLarge = errors.New("file too large to map")

// File is the read-only contents of an opened file.
// Bytes must not be used after Close.
type File struct {
	data   []byte
	unmap  func([]byte) error
	closed bool
}

func (f *File) Bytes() []byte { return f.data }

func (f *File) Len() int { return len(f.data) }

// Close releases the mapping. It is safe to call more than once.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	data := f.data
	f.data = nil
	if f.unmap == nil {
		return nil
	}
	return f.unmap(data)
}

// Open maps the named file, or reads it when mapping is unavailable.
func Open(name string, limit int64) (*File, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	st, err := fd.Stat()
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", name)
	}
	if st.Size() > limit {
		return nil, fmt.Errorf("%s: %w (%d bytes)", name, ErrTooLarge, st.Size())
	}
	if st.Size() == 0 {
		return &File{}, nil // zero-length mappings are an error
	}
	return mapFile(fd, int(st.Size()))
}

func readFile(fd *os.File, size int) (*File, error) {
	data := make([]byte, size)
	n, err := fd.ReadAt(data, 0)
	if n == size {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return &File{data: data}, nil
}
