package rangecoder

import "github.com/elliotnunn/unsqueeze/internal/errs"

// FrequencyTree is a complete binary tree of subtree sums over n leaves.
// levels[0] holds the leaves, the last level holds the root.
type FrequencyTree struct {
	n      int
	levels [][]uint32
}

func NewFrequencyTree(n int) *FrequencyTree {
	if n < 1 {
		errs.Throwf(errs.ErrInvalidOperation, "frequency tree of %d symbols", n)
	}
	t := &FrequencyTree{n: n}
	for size := n; ; size = (size + 1) / 2 {
		t.levels = append(t.levels, make([]uint32, size))
		if size == 1 {
			break
		}
	}
	return t
}

func (t *FrequencyTree) Len() int { return t.n }

func (t *FrequencyTree) check(sym int) {
	if sym < 0 || sym >= t.n {
		errs.Throwf(errs.ErrDecompression, "symbol %d of %d", sym, t.n)
	}
}

// Add changes the frequency of sym by delta and every ancestor with it.
func (t *FrequencyTree) Add(sym int, delta int32) {
	t.check(sym)
	for _, level := range t.levels {
		level[sym] = uint32(int64(level[sym]) + int64(delta))
		sym >>= 1
	}
}

func (t *FrequencyTree) Set(sym int, freq uint32) {
	t.check(sym)
	t.Add(sym, int32(int64(freq)-int64(t.levels[0][sym])))
}

func (t *FrequencyTree) Get(sym int) uint32 {
	t.check(sym)
	return t.levels[0][sym]
}

func (t *FrequencyTree) Total() uint32 { return t.levels[len(t.levels)-1][0] }

// Decode finds the symbol whose cumulative interval contains value,
// returning it with the interval's low bound and its frequency.
func (t *FrequencyTree) Decode(value uint32) (sym int, low, freq uint32) {
	if value >= t.Total() {
		errs.Throwf(errs.ErrDecompression, "cumulative frequency %d past total %d", value, t.Total())
	}
	for l := len(t.levels) - 2; l >= 0; l-- {
		sym <<= 1
		left := t.levels[l][sym]
		if value >= left {
			value -= left
			low += left
			sym++
		}
	}
	return sym, low, t.levels[0][sym]
}

// OnNotZero calls fn for every symbol with a nonzero frequency, skipping empty subtrees.
func (t *FrequencyTree) OnNotZero(fn func(sym int)) {
	t.walk(len(t.levels)-1, 0, fn)
}

func (t *FrequencyTree) walk(l, i int, fn func(int)) {
	if i >= len(t.levels[l]) || t.levels[l][i] == 0 {
		return
	}
	if l == 0 {
		fn(i)
		return
	}
	t.walk(l-1, 2*i, fn)
	t.walk(l-1, 2*i+1, fn)
}

// OnNotOne calls fn for every symbol whose frequency is not one.
func (t *FrequencyTree) OnNotOne(fn func(sym int)) {
	for sym, f := range t.levels[0] {
		if f != 1 {
			fn(sym)
		}
	}
}

// Clone returns an independent copy of t.
func (t *FrequencyTree) Clone() *FrequencyTree {
	c := &FrequencyTree{n: t.n, levels: make([][]uint32, len(t.levels))}
	for i, level := range t.levels {
		c.levels[i] = append([]uint32(nil), level...)
	}
	return c
}
