// Package pool implements global average pooling
package pool

import "github.com/neurlang/transfer/layer"

// GlobalAverage averages every channel plane down to a single value.
type GlobalAverage struct{}

// OutShape is (C, 1, 1).
func (GlobalAverage) OutShape(in layer.Shape) layer.Shape {
	return layer.Shape{C: in.C, H: 1, W: 1}
}

// Forward returns the per-channel means of in.
func (GlobalAverage) Forward(in []float32, s layer.Shape) []float32 {
	out := make([]float32, s.C)
	plane := s.H * s.W
	if plane == 0 {
		return out
	}
	for c := 0; c < s.C; c++ {
		var sum float64
		for _, v := range in[c*plane : (c+1)*plane] {
			sum += float64(v)
		}
		out[c] = float32(sum / float64(plane))
	}
	return out
}
