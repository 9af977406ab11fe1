// Package layer defines the forward-only layer interface of the frozen backbone
package layer

// Shape is the size of a CHW feature map.
type Shape struct {
	C, H, W int
}

// Len is the number of values in a feature map of this shape.
func (s Shape) Len() int {
	return s.C * s.H * s.W
}

// Layer transforms one CHW feature map into another.
type Layer interface {

	// OutShape reports the shape Forward produces for an input of shape in.
	OutShape(in Shape) Shape

	// Forward computes the layer output. The input is not modified.
	Forward(in []float32, s Shape) []float32
}

// Parameterized is a layer holding learned values, in checkpoint order.
type Parameterized interface {
	Parameters() [][]float32
}

// ReLU clamps negative values to zero in place.
func ReLU(x []float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}
