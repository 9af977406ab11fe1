// Package learning implements the loss and the optimizer that train the classification head
package learning

import (
	"github.com/neurlang/transfer/layer/full"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultLearningRate is the SGD step size used when none is configured.
const DefaultLearningRate = 0.01

// Optimizer applies gradients to a layer.
type Optimizer interface {
	Step(l *full.Linear, dW *mat.Dense, db *mat.VecDense) error
}

// SGD is plain stochastic gradient descent without momentum or weight decay.
type SGD struct {
	LearningRate float64
}

// NewSGD creates an SGD optimizer
func NewSGD(lr float64) (*SGD, error) {
	if !(lr > 0) {
		return nil, errors.Errorf("learning rate must be positive, got %v", lr)
	}
	return &SGD{LearningRate: lr}, nil
}

// Step updates w -= lr*dW and b -= lr*db. The gradients are consumed.
func (o *SGD) Step(l *full.Linear, dW *mat.Dense, db *mat.VecDense) error {
	wr, wc := l.W.Dims()
	gr, gc := dW.Dims()
	if wr != gr || wc != gc || db.Len() != l.B.Len() {
		return errors.Errorf("gradient shape (%d,%d)+%d does not match layer (%d,%d)+%d",
			gr, gc, db.Len(), wr, wc, l.B.Len())
	}
	dW.Scale(o.LearningRate, dW)
	l.W.Sub(l.W, dW)
	db.ScaleVec(o.LearningRate, db)
	l.B.SubVec(l.B, db)
	return nil
}
