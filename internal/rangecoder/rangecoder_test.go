package rangecoder

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/elliotnunn/unsqueeze/internal/errs"
)

type bitSlice struct {
	bits []uint32
	pos  int
}

func (b *bitSlice) ReadBit() uint32 {
	if b.pos >= len(b.bits) {
		return 0
	}
	b.pos++
	return b.bits[b.pos-1]
}

// encoder is the matching three-case arithmetic encoder.
type encoder struct {
	low, high uint32
	pending   int
	out       []uint32
}

func (e *encoder) emit(bit uint32) {
	e.out = append(e.out, bit)
	for ; e.pending > 0; e.pending-- {
		e.out = append(e.out, bit^1)
	}
}

func (e *encoder) encode(low, high, total uint32) {
	span := e.high - e.low + 1
	e.high = e.low + span*high/total - 1
	e.low += span * low / total
	for {
		switch {
		case e.high < half:
			e.emit(0)
		case e.low >= half:
			e.emit(1)
			e.low -= half
			e.high -= half
		case e.low >= quarter && e.high < half+quarter:
			e.pending++
			e.low -= quarter
			e.high -= quarter
		default:
			return
		}
		e.low <<= 1
		e.high = e.high<<1 | 1
	}
}

func (e *encoder) finish() {
	e.pending++
	if e.low < quarter {
		e.emit(0)
	} else {
		e.emit(1)
	}
}

func TestAdaptiveRoundTrip(t *testing.T) {
	const nsym = 37
	model := func() *FrequencyTree {
		ft := NewFrequencyTree(nsym)
		for i := range nsym {
			ft.Set(i, 1)
		}
		return ft
	}
	bump := func(ft *FrequencyTree, sym int) {
		ft.Add(sym, 16)
		if ft.Total() > 0x3fff-16 {
			for i := range nsym {
				ft.Set(i, (ft.Get(i)+1)/2)
			}
		}
	}

	rng := rand.New(rand.NewPCG(7, 7))
	syms := make([]int, 5000)
	enc := &encoder{high: 0xffff}
	ft := model()
	for i := range syms {
		syms[i] = min(nsym-1, int(rng.ExpFloat64()*4))
		low := uint32(0)
		for s := range syms[i] {
			low += ft.Get(s)
		}
		enc.encode(low, low+ft.Get(syms[i]), ft.Total())
		bump(ft, syms[i])
	}
	enc.finish()

	src := &bitSlice{bits: enc.out}
	initial := uint16(0)
	for range 16 {
		initial = initial<<1 | uint16(src.ReadBit())
	}
	dec := NewDecoder(src, initial)
	ft = model()
	err := errs.Catch(func() {
		for i, want := range syms {
			total := uint16(ft.Total())
			sym, low, freq := ft.Decode(uint32(dec.Decode(total)))
			if sym != want {
				t.Fatalf("symbol %d decoded as %d, want %d", i, sym, want)
			}
			dec.Scale(uint16(low), uint16(low+freq), total)
			lo, hi, code := dec.Window()
			if lo > code || code > hi {
				t.Fatalf("window [%#x,%#x] lost the stream %#x", lo, hi, code)
			}
			if hi-lo < quarter {
				t.Fatalf("window collapsed to [%#x,%#x]", lo, hi)
			}
			bump(ft, sym)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFrequencyTree(t *testing.T) {
	ft := NewFrequencyTree(5)
	for i, f := range []uint32{3, 0, 2, 0, 4} {
		ft.Set(i, f)
	}
	if ft.Total() != 9 {
		t.Errorf("total %d", ft.Total())
	}
	cases := []struct {
		value     uint32
		sym       int
		low, freq uint32
	}{
		{0, 0, 0, 3},
		{2, 0, 0, 3},
		{3, 2, 3, 2},
		{4, 2, 3, 2},
		{5, 4, 5, 4},
		{8, 4, 5, 4},
	}
	for _, c := range cases {
		sym, low, freq := ft.Decode(c.value)
		if sym != c.sym || low != c.low || freq != c.freq {
			t.Errorf("Decode(%d) = %d,%d,%d, want %d,%d,%d", c.value, sym, low, freq, c.sym, c.low, c.freq)
		}
	}

	var nonzero, notone []int
	ft.OnNotZero(func(s int) { nonzero = append(nonzero, s) })
	ft.Set(2, 1)
	ft.OnNotOne(func(s int) { notone = append(notone, s) })
	if len(nonzero) != 3 || nonzero[0] != 0 || nonzero[1] != 2 || nonzero[2] != 4 {
		t.Errorf("OnNotZero visited %v", nonzero)
	}
	if len(notone) != 4 || notone[1] != 1 {
		t.Errorf("OnNotOne visited %v", notone)
	}

	if err := errs.Catch(func() { ft.Decode(ft.Total()) }); !errors.Is(err, errs.ErrDecompression) {
		t.Errorf("decode past total: %v", err)
	}
	if err := errs.Catch(func() { ft.Add(5, 1) }); !errors.Is(err, errs.ErrDecompression) {
		t.Errorf("add past end: %v", err)
	}
}
