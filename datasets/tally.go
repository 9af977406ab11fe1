package datasets

import "sync"

// Tally counts predictions against their true labels. It is safe for
// concurrent use.
type Tally struct {
	mut sync.Mutex

	// matrix[label][predicted] is the number of votes
	matrix [][]int
	total  int
}

// NewTally creates a tally over the given number of classes.
func NewTally(classes int) *Tally {
	t := &Tally{matrix: make([][]int, classes)}
	for i := range t.matrix {
		t.matrix[i] = make([]int, classes)
	}
	return t
}

// Add records one prediction. Out of range classes only count towards the total.
func (t *Tally) Add(label, predicted int) {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.total++
	if label < 0 || label >= len(t.matrix) || predicted < 0 || predicted >= len(t.matrix) {
		return
	}
	t.matrix[label][predicted]++
}

// Total is the number of predictions recorded.
func (t *Tally) Total() int {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.total
}

// Correct is the number of predictions that matched the label.
func (t *Tally) Correct() (n int) {
	t.mut.Lock()
	defer t.mut.Unlock()
	for i := range t.matrix {
		n += t.matrix[i][i]
	}
	return n
}

// Accuracy is Correct over Total, 0 for an empty tally.
func (t *Tally) Accuracy() float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	return float64(t.Correct()) / float64(total)
}

// ClassAccuracy is the recall of every class, 0 for classes never seen.
func (t *Tally) ClassAccuracy() []float64 {
	t.mut.Lock()
	defer t.mut.Unlock()
	out := make([]float64, len(t.matrix))
	for i, row := range t.matrix {
		var n int
		for _, v := range row {
			n += v
		}
		if n != 0 {
			out[i] = float64(row[i]) / float64(n)
		}
	}
	return out
}

// Matrix returns a copy of the confusion matrix indexed [label][predicted].
func (t *Tally) Matrix() [][]int {
	t.mut.Lock()
	defer t.mut.Unlock()
	out := make([][]int, len(t.matrix))
	for i := range t.matrix {
		out[i] = append([]int(nil), t.matrix[i]...)
	}
	return out
}
