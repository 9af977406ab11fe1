// Package full implements the fully connected classification head
package full

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear computes y = x Wᵀ + b for a batch of row vectors x.
type Linear struct {
	In, Out int

	W *mat.Dense    // (Out, In)
	B *mat.VecDense // (Out)
}

// New creates a zeroed Linear layer
func New(in, out int) *Linear {
	return &Linear{
		In:  in,
		Out: out,
		W:   mat.NewDense(out, in, nil),
		B:   mat.NewVecDense(out, nil),
	}
}

// Reset draws weights and bias from U(-1/sqrt(in), 1/sqrt(in)).
func (l *Linear) Reset(rng *rand.Rand) {
	bound := 1 / math.Sqrt(float64(l.In))
	for i := 0; i < l.Out; i++ {
		row := l.W.RawRowView(i)
		for j := range row {
			row[j] = (2*rng.Float64() - 1) * bound
		}
		l.B.SetVec(i, (2*rng.Float64()-1)*bound)
	}
}

// Forward maps x (batch, In) to logits (batch, Out).
func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	r, _ := x.Dims()
	y := mat.NewDense(r, l.Out, nil)
	y.Mul(x, l.W.T())
	bias := l.B.RawVector().Data
	for i := 0; i < r; i++ {
		floats.Add(y.RawRowView(i), bias)
	}
	return y
}

// Backward returns the parameter gradients for input x and output gradient dy.
func (l *Linear) Backward(x, dy *mat.Dense) (dW *mat.Dense, db *mat.VecDense) {
	r, _ := dy.Dims()
	dW = mat.NewDense(l.Out, l.In, nil)
	dW.Mul(dy.T(), x)
	db = mat.NewVecDense(l.Out, nil)
	sum := db.RawVector().Data
	for i := 0; i < r; i++ {
		floats.Add(sum, dy.RawRowView(i))
	}
	return dW, db
}
