package resnet

import (
	"github.com/neurlang/transfer/layer"
	"github.com/neurlang/transfer/layer/conv2d"
)

// Block is a basic residual block: relu(conv2(relu(conv1(x))) + shortcut(x)).
// Proj is the 1x1 projection shortcut, nil when the shortcut is the identity.
type Block struct {
	Conv1, Conv2, Proj *conv2d.Conv2D
}

// NewBlock creates a zeroed block mapping in channels to out channels.
func NewBlock(in, out, stride int) *Block {
	b := &Block{
		Conv1: conv2d.MustNew(in, out, 3, stride, 1),
		Conv2: conv2d.MustNew(out, out, 3, 1, 1),
	}
	if stride != 1 || in != out {
		b.Proj = conv2d.MustNew(in, out, 1, stride, 0)
	}
	return b
}

// OutShape implements layer.Layer.
func (b *Block) OutShape(in layer.Shape) layer.Shape {
	return b.Conv2.OutShape(b.Conv1.OutShape(in))
}

// Forward implements layer.Layer.
func (b *Block) Forward(in []float32, s layer.Shape) []float32 {
	h := b.Conv1.Forward(in, s)
	layer.ReLU(h)
	out := b.Conv2.Forward(h, b.Conv1.OutShape(s))

	shortcut := in
	if b.Proj != nil {
		shortcut = b.Proj.Forward(in, s)
	}
	for i := range out {
		out[i] += shortcut[i]
	}
	layer.ReLU(out)
	return out
}

// Parameters implements layer.Parameterized.
func (b *Block) Parameters() (o [][]float32) {
	o = append(o, b.Conv1.Parameters()...)
	o = append(o, b.Conv2.Parameters()...)
	if b.Proj != nil {
		o = append(o, b.Proj.Parameters()...)
	}
	return o
}
