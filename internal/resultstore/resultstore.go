// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package resultstore keeps decoded outputs on disk so that unpacking the
// same input twice does not decode it twice.
package resultstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	"github.com/pierrec/lz4/v4"
)

// Store maps packed inputs to their decoded output and format name.
// Values are lz4 frames, since decoded outputs compress well.
type Store struct {
	db *pebble.DB
}

// Open opens or creates the store in dir. A nil fs means the real filesystem.
func Open(dir string, fs vfs.FS) (*Store, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("result store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Key identifies packed data by content. The length guards against the
// unlikely hash collision between inputs of different sizes.
func Key(packed []byte) []byte {
	k := make([]byte, 0, 17)
	k = append(k, 'o')
	k = binary.BigEndian.AppendUint64(k, xxhash.Sum64(packed))
	k = binary.BigEndian.AppendUint64(k, uint64(len(packed)))
	return k
}

// Get returns the stored output for packed, or ok=false if there is none.
func (s *Store) Get(packed []byte) (name string, raw []byte, ok bool, err error) {
	val, closer, err := s.db.Get(Key(packed))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", nil, false, nil
	} else if err != nil {
		return "", nil, false, err
	}
	defer closer.Close()

	if len(val) < 1 || len(val) < 1+int(val[0]) {
		return "", nil, false, fmt.Errorf("result store: short record of %d bytes", len(val))
	}
	name = string(val[1 : 1+val[0]])
	raw, err = io.ReadAll(lz4.NewReader(bytes.NewReader(val[1+val[0]:])))
	if err != nil {
		return "", nil, false, fmt.Errorf("result store: %w", err)
	}
	return name, raw, true, nil
}

// Put records the output of packed. The name is truncated to 255 bytes.
func (s *Store) Put(packed []byte, name string, raw []byte) error {
	if len(name) > 255 {
		name = name[:255]
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(len(name)))
	buf.WriteString(name)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	slog.Debug("resultStored", "name", name, "raw", len(raw), "stored", buf.Len())
	return s.db.Set(Key(packed), buf.Bytes(), pebble.NoSync)
}

// Delete forgets the output of packed, if any.
func (s *Store) Delete(packed []byte) error {
	return s.db.Delete(Key(packed), pebble.NoSync)
}
