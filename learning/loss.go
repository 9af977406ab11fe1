package learning

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CrossEntropy is softmax followed by the negative log likelihood, averaged over the batch.
type CrossEntropy struct{}

// Forward returns the mean loss of logits (batch, classes) against labels and
// the softmax probabilities.
func (CrossEntropy) Forward(logits *mat.Dense, labels []int) (float64, *mat.Dense, error) {
	r, c := logits.Dims()
	if r != len(labels) {
		return 0, nil, errors.Errorf("%d logit rows for %d labels", r, len(labels))
	}
	probs := mat.NewDense(r, c, nil)
	var loss float64
	for i := 0; i < r; i++ {
		if labels[i] < 0 || labels[i] >= c {
			return 0, nil, errors.Errorf("label %d out of range [0,%d)", labels[i], c)
		}
		row := logits.RawRowView(i)
		loss += softmaxRow(probs.RawRowView(i), row) - row[labels[i]]
	}
	return loss / float64(r), probs, nil
}

// Backward returns the gradient of the mean loss with respect to the logits.
func (CrossEntropy) Backward(probs *mat.Dense, labels []int) *mat.Dense {
	r, c := probs.Dims()
	grad := mat.NewDense(r, c, nil)
	grad.Copy(probs)
	for i, label := range labels {
		grad.Set(i, label, grad.At(i, label)-1)
	}
	grad.Scale(1/float64(r), grad)
	return grad
}

// Softmax returns the row-wise softmax of logits (batch, classes).
func Softmax(logits *mat.Dense) *mat.Dense {
	r, c := logits.Dims()
	probs := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		softmaxRow(probs.RawRowView(i), logits.RawRowView(i))
	}
	return probs
}

// softmaxRow writes the softmax of row into dst and returns log(sum(exp(row))).
func softmaxRow(dst, row []float64) float64 {
	lse := floats.LogSumExp(row)
	for j, v := range row {
		dst[j] = math.Exp(v - lse)
	}
	return lse
}

// Argmax returns the index of the largest entry of every row.
func Argmax(m *mat.Dense) []int {
	r, _ := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return out
}
