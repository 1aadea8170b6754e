// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package format

import (
	"github.com/elliotnunn/unsqueeze/internal/buffer"
	"github.com/elliotnunn/unsqueeze/internal/rangecoder"
	"github.com/elliotnunn/unsqueeze/internal/stream"
)

const (
	arithmeticStep  = 24
	arithmeticLimit = 0x3fff
)

// arithmeticModel is an order-0 byte model shared by every chunk of a container.
type arithmeticModel struct {
	tree *rangecoder.FrequencyTree
}

func newArithmeticModel() *arithmeticModel {
	t := rangecoder.NewFrequencyTree(256)
	for i := range 256 {
		t.Set(i, 1)
	}
	return &arithmeticModel{tree: t}
}

func (m *arithmeticModel) clone() xpkModel {
	return &arithmeticModel{tree: m.tree.Clone()}
}

func (m *arithmeticModel) update(sym int) {
	m.tree.Add(sym, arithmeticStep)
	if m.tree.Total() > arithmeticLimit-arithmeticStep {
		m.tree.OnNotOne(func(i int) {
			m.tree.Set(i, (m.tree.Get(i)+1)/2)
		})
	}
}

// ARTM is adaptive arithmetic coding of single bytes.
// Each chunk starts a fresh coder but continues the model.
type xpkArithmetic struct {
	packed *buffer.Buffer
	model  *arithmeticModel
}

func newXPKArithmetic(tag uint32, packed *buffer.Buffer, level int, state *XPKState, verify bool) XPKDecompressor {
	m, ok := state.models[tag].(*arithmeticModel)
	if !ok {
		m = newArithmeticModel()
		state.models[tag] = m
	}
	return &xpkArithmetic{packed: packed, model: m}
}

func (d *xpkArithmetic) SubName() string { return "XPK-ARTM" }

func (d *xpkArithmetic) Decompress(raw *buffer.Buffer, previous []byte, verify bool) {
	in := stream.NewForwardInputStream(d.packed, 0, d.packed.Size())
	// the coder looks up to 16 bits past the last one written
	in.AllowOverrun(2)
	br := stream.NewMSBBitReader(in)
	dec := rangecoder.NewDecoder(br, uint16(br.ReadBits8(16)))
	out := stream.NewForwardOutputStream(raw, 0, raw.Size())
	for !out.EOF() {
		total := uint16(d.model.tree.Total())
		sym, low, freq := d.model.tree.Decode(uint32(dec.Decode(total)))
		dec.Scale(uint16(low), uint16(low+freq), total)
		out.WriteU8(uint8(sym))
		d.model.update(sym)
	}
}
