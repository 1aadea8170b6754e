// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package unsqueeze decodes the packed file formats of 68000-era home
// computers: XPK containers and their sub-formats, PowerPacker, DMS disk
// images, Pack-Ice, and the Unix compress family.
//
// A Decompressor is created from the whole packed file:
//
//	d, err := unsqueeze.New(packed)
//	if err != nil {
//		return err
//	}
//	raw, err := d.Decompress()
package unsqueeze

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/decompressioncache"
	"github.com/elliotnunn/unsqueeze/internal/errs"
	"github.com/elliotnunn/unsqueeze/internal/format"
	"github.com/elliotnunn/unsqueeze/internal/sectionreader"
)

type options struct {
	exactSize  bool
	verify     bool
	maxRawSize int
}

// Option adjusts how New reads its input.
type Option func(*options)

// WithExactSize says whether packed holds exactly one stream and nothing after it.
// Some formats, such as PowerPacker, can only be read when it does.
// The default is true.
func WithExactSize(exact bool) Option {
	return func(o *options) { o.exactSize = exact }
}

// WithVerify turns checksum verification on or off. The default is on.
func WithVerify(verify bool) Option {
	return func(o *options) { o.verify = verify }
}

// WithMaxRawSize caps the output size. It defaults to, and may not exceed, MemLimit.
func WithMaxRawSize(n int) Option {
	return func(o *options) { o.maxRawSize = min(n, memLimit) }
}

func makeOptions(opts []Option) options {
	o := options{exactSize: true, verify: true, maxRawSize: min(memLimit, format.MaxRawSize)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Decompressor is a packed stream whose header has been read.
// It is safe for concurrent use.
type Decompressor struct {
	packed []byte
	opts   options
	fd     format.Decompressor

	mu       sync.Mutex
	rawSize  int
	rawKnown bool
}

// New parses the header of packed. The slice must not change while the
// Decompressor is in use.
func New(packed []byte, opts ...Option) (*Decompressor, error) {
	o := makeOptions(opts)
	fd, err := format.Create(packed, o.exactSize, o.verify)
	if err != nil {
		return nil, err
	}
	d := &Decompressor{packed: packed, opts: o, fd: fd}
	if n := fd.RawSize(); n > 0 {
		if n > o.maxRawSize {
			return nil, fmt.Errorf("%w: %s output of %d bytes exceeds limit of %d", ErrInvalidFormat, fd.Name(), n, o.maxRawSize)
		}
		d.rawSize, d.rawKnown = n, true
	}
	return d, nil
}

// Detect reports whether packed starts with a recognised format.
func Detect(packed []byte) bool {
	return format.Detect(packed)
}

// Names lists the recognised formats in the order they are tried.
func Names() []string {
	return format.Names()
}

// XPKNames lists the XPK sub-formats that can be decoded.
func XPKNames() []string {
	return format.XPKNames()
}

func (d *Decompressor) Name() string { return d.fd.Name() }

// SubName is the payload format of a container, such as "XPK-NONE",
// or the empty string.
func (d *Decompressor) SubName() string {
	if s, ok := d.fd.(format.SubNamer); ok {
		return s.SubName()
	}
	return ""
}

// PackedSize is the length of the stream, if the header records it.
func (d *Decompressor) PackedSize() (int, bool) {
	n := d.fd.PackedSize()
	return n, n > 0
}

// RawSize is the length of the output. It is always known after a
// successful Decompress.
func (d *Decompressor) RawSize() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rawSize, d.rawKnown
}

// ImageSize is the size of the whole disk image, for formats that hold
// only part of one.
func (d *Decompressor) ImageSize() (int, bool) {
	if i, ok := d.fd.(format.Imager); ok {
		return i.ImageSize(), true
	}
	return 0, false
}

// ImageOffset is where the output belongs in the disk image.
func (d *Decompressor) ImageOffset() (int, bool) {
	if i, ok := d.fd.(format.Imager); ok {
		return i.ImageOffset(), true
	}
	return 0, false
}

// Decompress returns the whole output in a new slice.
func (d *Decompressor) Decompress() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var raw *buffer.Buffer
	err := errs.Catch(func() {
		if d.rawKnown {
			raw = buffer.Wrap(make([]byte, d.rawSize))
		} else {
			raw = buffer.New(0, d.opts.maxRawSize)
		}
	})
	if err != nil {
		return nil, errs.Promote(err, ErrDecompression)
	}
	if err := d.fd.Decompress(raw, d.opts.verify); err != nil {
		slog.Debug("decompressFailed", "format", d.fd.Name(), "err", err)
		return nil, err
	}
	d.rawSize, d.rawKnown = raw.Size(), true
	return raw.Bytes(), nil
}

// WriteTo writes the output to w. Containers and disk images are decoded a
// piece at a time, so the whole output is never held in memory.
func (d *Decompressor) WriteTo(w io.Writer) (int64, error) {
	s, ok := d.fd.(format.Stepper)
	if !ok {
		raw, err := d.Decompress()
		if err != nil {
			return 0, err
		}
		n, err := w.Write(raw)
		return int64(n), err
	}

	var written int64
	step := s.Steps(d.opts.verify)
	for step != nil {
		next, blob, err := step()
		if err != nil && err != io.EOF {
			return written, err
		}
		n, werr := w.Write(blob)
		written += int64(n)
		if werr != nil {
			return written, werr
		}
		if err == io.EOF {
			break
		}
		step = next
	}
	return written, nil
}

// RandomAccess is the output as an io.ReaderAt of known size.
type RandomAccess interface {
	io.ReaderAt
	Size() int64
}

// ReaderAt gives random access to the output. Where the format allows,
// only the pieces around each read are decoded, and decoded pieces are
// shared through a process-wide cache.
func (d *Decompressor) ReaderAt() (RandomAccess, error) {
	size, known := d.RawSize()
	if !known {
		raw, err := d.Decompress()
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(raw), nil
	}

	var step decompressioncache.Stepper
	if s, ok := d.fd.(format.Stepper); ok {
		step = s.Steps(d.opts.verify)
	} else {
		step = func() (decompressioncache.Stepper, []byte, error) {
			raw, err := d.Decompress()
			if err != nil {
				return nil, nil, err
			}
			return nil, raw, io.EOF
		}
	}
	return decompressioncache.New(step, int64(size)), nil
}

// Image gives the whole disk image that the output belongs to, with
// zeros wherever the packed file holds no data. For formats that are not
// disk images it is the same as ReaderAt.
func (d *Decompressor) Image() (RandomAccess, error) {
	ra, err := d.ReaderAt()
	if err != nil {
		return nil, err
	}
	total, ok := d.ImageSize()
	if !ok {
		return ra, nil
	}
	at, _ := d.ImageOffset()
	return sectionreader.Place(ra, int64(at), ra.Size(), int64(total)), nil
}
