package pool

import (
	"testing"

	"github.com/neurlang/transfer/layer"
	"github.com/stretchr/testify/assert"
)

func TestGlobalAverage(t *testing.T) {
	var p GlobalAverage
	s := layer.Shape{C: 2, H: 2, W: 2}
	assert.Equal(t, layer.Shape{C: 2, H: 1, W: 1}, p.OutShape(s))
	out := p.Forward([]float32{1, 2, 3, 4, -1, -1, -1, -1}, s)
	assert.InDeltaSlice(t, []float32{2.5, -1}, out, 1e-6)
}

func TestReLU(t *testing.T) {
	x := []float32{-1, 0, 2}
	layer.ReLU(x)
	assert.Equal(t, []float32{0, 0, 2}, x)
}
