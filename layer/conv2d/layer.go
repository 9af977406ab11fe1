// Package conv2d implements a 2D convolution layer over CHW feature maps
package conv2d

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Conv2D is a square-kernel convolution with stride, zero padding and bias.
// Weight is laid out (Out, In, Kernel, Kernel).
type Conv2D struct {
	In, Out, Kernel, Stride, Pad int

	Weight []float32
	Bias   []float32
}

// MustNew creates a new Conv2D layer, panicking on invalid geometry
func MustNew(in, out, kernel, stride, pad int) *Conv2D {
	o, err := New(in, out, kernel, stride, pad)
	if err != nil {
		panic(err.Error())
	}
	return o
}

// New creates a new zeroed Conv2D layer
func New(in, out, kernel, stride, pad int) (*Conv2D, error) {
	if in <= 0 || out <= 0 {
		return nil, errors.Errorf("conv2d: channels must be positive, got in=%d out=%d", in, out)
	}
	if kernel <= 0 || stride <= 0 || pad < 0 {
		return nil, errors.Errorf("conv2d: bad geometry kernel=%d stride=%d pad=%d", kernel, stride, pad)
	}
	return &Conv2D{
		In:     in,
		Out:    out,
		Kernel: kernel,
		Stride: stride,
		Pad:    pad,
		Weight: make([]float32, out*in*kernel*kernel),
		Bias:   make([]float32, out),
	}, nil
}

// HeInit draws weights from N(0, 2/fan_in) and zeroes the bias.
func (c *Conv2D) HeInit(rng *rand.Rand) {
	std := math.Sqrt(2 / float64(c.In*c.Kernel*c.Kernel))
	for i := range c.Weight {
		c.Weight[i] = float32(rng.NormFloat64() * std)
	}
	for i := range c.Bias {
		c.Bias[i] = 0
	}
}

// Parameters returns weight and bias, in checkpoint order.
func (c *Conv2D) Parameters() [][]float32 {
	return [][]float32{c.Weight, c.Bias}
}
