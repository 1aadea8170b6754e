// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/therootcompany/xz"

	"github.com/elliotnunn/unsqueeze"
	"github.com/elliotnunn/unsqueeze/internal/mmapfile"
)

const xzMagic = "\xfd7zXZ\x00"

// input is the packed contents of a file, with any xz wrapping removed.
type input struct {
	name string
	data []byte
	file *mmapfile.File
	xz   bool
}

func openInput(name string) (*input, error) {
	limit := unsqueeze.MemLimit()
	f, err := mmapfile.Open(name, int64(limit))
	if err != nil {
		return nil, err
	}
	in := &input{name: name, data: f.Bytes(), file: f}
	if !bytes.HasPrefix(in.data, []byte(xzMagic)) {
		return in, nil
	}

	r, err := xz.NewReader(bytes.NewReader(in.data), xz.DefaultDictMax)
	if err == nil {
		in.data, err = io.ReadAll(io.LimitReader(r, int64(limit)+1))
	}
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: xz: %w", name, err)
	}
	if len(in.data) > limit {
		return nil, fmt.Errorf("%s: xz content exceeds %d bytes", name, limit)
	}
	in.xz = true
	return in, nil
}

func (in *input) Close() error {
	return in.file.Close()
}
