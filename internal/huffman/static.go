// Package huffman decodes prefix codes: static tables built from explicit
// codes or from canonical bit lengths, and a self-adjusting adaptive tree.
package huffman

import "github.com/elliotnunn/unsqueeze/internal/errs"

// MaxLength is the longest code Insert accepts.
const MaxLength = 32

type node[T any] struct {
	sub   [2]uint32 // 0 means absent; the root is never a child
	leaf  bool
	value T
}

// Decoder is a binary trie in a flat array, root at index 0.
type Decoder[T any] struct {
	table []node[T]
}

// BitFunc returns the next bit of the stream.
type BitFunc func() uint32

// Insert adds a code of the given length, most significant bit first.
// A code that runs into or through an existing leaf is a corrupt table.
func (h *Decoder[T]) Insert(length int, code uint32, value T) {
	if length <= 0 || length > MaxLength {
		errs.Throwf(errs.ErrDecompression, "huffman code length %d", length)
	}
	if len(h.table) == 0 {
		h.table = append(h.table, node[T]{})
	}
	i := uint32(0)
	for bit := length - 1; bit >= 0; bit-- {
		if h.table[i].leaf {
			errs.Throwf(errs.ErrDecompression, "huffman code %0*b extends a shorter code", length, code)
		}
		b := (code >> bit) & 1
		next := h.table[i].sub[b]
		if next == 0 {
			next = uint32(len(h.table))
			h.table[i].sub[b] = next
			h.table = append(h.table, node[T]{})
		}
		i = next
	}
	n := &h.table[i]
	if n.leaf || n.sub != [2]uint32{} {
		errs.Throwf(errs.ErrDecompression, "huffman code %0*b collides", length, code)
	}
	n.leaf = true
	n.value = value
}

// Decode walks the trie one bit at a time until it reaches a leaf.
func (h *Decoder[T]) Decode(bit BitFunc) T {
	if len(h.table) == 0 {
		errs.Throwf(errs.ErrDecompression, "empty huffman table")
	}
	i := uint32(0)
	for !h.table[i].leaf {
		i = h.table[i].sub[bit()&1]
		if i == 0 {
			errs.Throwf(errs.ErrDecompression, "undefined huffman code")
		}
	}
	return h.table[i].value
}

func (h *Decoder[T]) Reset() { h.table = h.table[:0] }

func (h *Decoder[T]) Empty() bool { return len(h.table) == 0 }

// NewOrderly builds the canonical code for a table of bit lengths:
// shorter codes first, ties broken by symbol index, counting up from zero.
// A zero length means the symbol is absent.
func NewOrderly(lengths []uint8) *Decoder[uint32] {
	var count [MaxLength + 1]int
	maxLen := 0
	for _, n := range lengths {
		if int(n) > MaxLength {
			errs.Throwf(errs.ErrDecompression, "huffman code length %d", n)
		}
		count[n]++
		maxLen = max(maxLen, int(n))
	}
	if maxLen == 0 {
		errs.Throwf(errs.ErrDecompression, "huffman table has no codes")
	}

	count[0] = 0
	var next [MaxLength + 1]uint64
	code := uint64(0)
	for n := 1; n <= maxLen; n++ {
		code = (code + uint64(count[n-1])) << 1
		next[n] = code
	}
	h := new(Decoder[uint32])
	for sym, n := range lengths {
		if n == 0 {
			continue
		}
		c := next[n]
		if c >= 1<<n {
			errs.Throwf(errs.ErrDecompression, "huffman table oversubscribed")
		}
		next[n]++
		h.Insert(int(n), uint32(c), uint32(sym))
	}
	return h
}

// Optional is a Decoder that may instead hold exactly one symbol,
// which it returns without reading any bits.
type Optional[T any] struct {
	Decoder[T]
	single    bool
	singleVal T
}

// SetSingle makes the decoder return v for every symbol.
func (h *Optional[T]) SetSingle(v T) {
	h.Decoder.Reset()
	h.single = true
	h.singleVal = v
}

func (h *Optional[T]) Insert(length int, code uint32, value T) {
	h.single = false
	h.Decoder.Insert(length, code, value)
}

func (h *Optional[T]) Decode(bit BitFunc) T {
	if h.single {
		return h.singleVal
	}
	return h.Decoder.Decode(bit)
}

func (h *Optional[T]) Reset() {
	h.single = false
	h.Decoder.Reset()
}
