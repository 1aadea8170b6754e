package huffman

import (
	"math"

	"github.com/elliotnunn/unsqueeze/internal/errs"
)

// DefaultMaxFrequency is the root frequency at which Update halves the tree.
const DefaultMaxFrequency = 0x8000

// Dynamic is an adaptive Huffman tree in the LZHUF arrangement.
// Nodes are kept in an array sorted by frequency, so the two children of
// an internal node are always adjacent. A child entry at or above leafBase
// is the leaf for symbol entry-leafBase. The root is the last node.
type Dynamic struct {
	count, maxCount int
	leafBase        int
	maxFreq         uint32
	freq            []uint32
	son             []int
	parent          []int
}

// NewDynamic returns a tree over count symbols of equal frequency,
// which AddCode may grow to maxCount symbols.
func NewDynamic(count, maxCount int) *Dynamic {
	if count < 1 || count > maxCount {
		errs.Throwf(errs.ErrInvalidOperation, "dynamic huffman of %d/%d symbols", count, maxCount)
	}
	leafBase := 2*maxCount - 1
	d := &Dynamic{
		maxCount: maxCount,
		leafBase: leafBase,
		maxFreq:  DefaultMaxFrequency,
		freq:     make([]uint32, 2*maxCount),
		son:      make([]int, 2*maxCount-1),
		parent:   make([]int, leafBase+maxCount),
	}
	d.Reset(count)
	return d
}

// SetMaxFrequency changes the root frequency that triggers Halve.
func (d *Dynamic) SetMaxFrequency(f uint32) { d.maxFreq = f }

func (d *Dynamic) Count() int { return d.count }

func (d *Dynamic) root() int { return 2*d.count - 2 }

// Reset returns to count symbols of frequency one.
func (d *Dynamic) Reset(count int) {
	if count < 1 || count > d.maxCount {
		errs.Throwf(errs.ErrInvalidOperation, "dynamic huffman of %d/%d symbols", count, d.maxCount)
	}
	d.count = count
	for i := range count {
		d.freq[i] = 1
		d.son[i] = d.leafBase + i
		d.parent[d.leafBase+i] = i
	}
	d.rebuild()
}

// rebuild pairs the leaves in positions 0..count-1 into internal nodes,
// inserting each where it keeps the array sorted.
func (d *Dynamic) rebuild() {
	n := 2*d.count - 1
	for i, j := 0, d.count; j < n; i, j = i+2, j+1 {
		f := d.freq[i] + d.freq[i+1]
		k := j - 1
		for k >= 0 && f < d.freq[k] {
			k--
		}
		k++
		copy(d.freq[k+1:j+1], d.freq[k:j])
		d.freq[k] = f
		copy(d.son[k+1:j+1], d.son[k:j])
		d.son[k] = i
	}
	for i := range n {
		k := d.son[i]
		d.parent[k] = i
		if k < d.leafBase {
			d.parent[k+1] = i
		}
	}
	d.freq[n] = math.MaxUint32
	d.parent[d.root()] = 0
}

// Decode reads one symbol.
func (d *Dynamic) Decode(bit BitFunc) int {
	c := d.son[d.root()]
	for c < d.leafBase {
		c = d.son[c+int(bit()&1)]
	}
	return c - d.leafBase
}

// Update counts one more occurrence of sym, moving its leaf and ancestors
// past any node of lower frequency.
func (d *Dynamic) Update(sym int) {
	if sym < 0 || sym >= d.count {
		errs.Throwf(errs.ErrDecompression, "dynamic huffman symbol %d of %d", sym, d.count)
	}
	if d.freq[d.root()] >= d.maxFreq {
		d.Halve()
	}
	c := d.parent[d.leafBase+sym]
	for {
		d.freq[c]++
		k := d.freq[c]
		if l := c + 1; k > d.freq[l] {
			for k > d.freq[l+1] {
				l++
			}
			d.freq[c] = d.freq[l]
			d.freq[l] = k

			i := d.son[c]
			d.parent[i] = l
			if i < d.leafBase {
				d.parent[i+1] = l
			}
			j := d.son[l]
			d.son[l] = i
			d.parent[j] = c
			if j < d.leafBase {
				d.parent[j+1] = c
			}
			d.son[c] = j
			c = l
		}
		c = d.parent[c]
		if c == 0 {
			break
		}
	}
}

// Halve divides every leaf frequency by two, rounding up, and rebuilds the tree.
func (d *Dynamic) Halve() {
	j := 0
	for i := range 2*d.count - 1 {
		if d.son[i] >= d.leafBase {
			d.freq[j] = (d.freq[i] + 1) / 2
			d.son[j] = d.son[i]
			j++
		}
	}
	d.rebuild()
}

// AddCode introduces the next unused symbol with frequency one and returns it.
func (d *Dynamic) AddCode() int {
	if d.count == d.maxCount {
		errs.Throwf(errs.ErrDecompression, "dynamic huffman alphabet full at %d", d.maxCount)
	}
	j := 0
	for i := range 2*d.count - 1 {
		if d.son[i] >= d.leafBase {
			d.freq[j] = d.freq[i]
			d.son[j] = d.son[i]
			j++
		}
	}
	copy(d.freq[1:d.count+1], d.freq[:d.count])
	copy(d.son[1:d.count+1], d.son[:d.count])
	d.freq[0] = 1
	d.son[0] = d.leafBase + d.count
	d.count++
	d.rebuild()
	return d.count - 1
}

// Code returns the bits the next Decode would read for sym,
// first bit in the most significant position.
func (d *Dynamic) Code(sym int) (code uint32, length int) {
	if sym < 0 || sym >= d.count {
		errs.Throwf(errs.ErrInvalidOperation, "dynamic huffman symbol %d of %d", sym, d.count)
	}
	root := d.root()
	for k := d.parent[d.leafBase+sym]; k != root; {
		p := d.parent[k]
		code |= uint32(k-d.son[p]) << length
		length++
		if length > MaxLength {
			errs.Throwf(errs.ErrInvalidOperation, "dynamic huffman code too long")
		}
		k = p
	}
	return code, length
}

// Frequency returns the current weight of sym.
func (d *Dynamic) Frequency(sym int) uint32 {
	return d.freq[d.parent[d.leafBase+sym]]
}

// Clone returns an independent copy of d.
func (d *Dynamic) Clone() *Dynamic {
	c := *d
	c.freq = append([]uint32(nil), d.freq...)
	c.son = append([]int(nil), d.son...)
	c.parent = append([]int(nil), d.parent...)
	return &c
}
