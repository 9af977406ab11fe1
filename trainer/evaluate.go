package trainer

import (
	"github.com/neurlang/transfer/datasets"
	"github.com/neurlang/transfer/net/resnet"
	"k8s.io/klog/v2"
)

// Checkpoint tracks the best validation accuracy of a run.
type Checkpoint struct {
	Best float64
}

// Improve records acc and reports whether it strictly beats the best so far.
func (c *Checkpoint) Improve(acc float64) bool {
	if acc > c.Best {
		c.Best = acc
		return true
	}
	return false
}

// Evaluate returns the fraction of samples of the loader the model
// classifies correctly, with the per class tally. The progress label is
// logged per batch at V(1).
func Evaluate(m *resnet.Model, val *datasets.Loader, replicas int, progress string) (float64, *datasets.Tally, error) {
	tally := datasets.NewTally(m.Config.Classes)
	for b := 0; b < val.Len(); b++ {
		batch, err := val.Batch(b)
		if err != nil {
			return 0, nil, err
		}
		predict, err := m.Predict(batch.Images, replicas)
		if err != nil {
			return 0, nil, err
		}
		for i, label := range batch.Labels {
			tally.Add(label, predict[i])
		}
		klog.V(1).Info(progress)
	}
	return float64(tally.Correct()) / float64(val.Samples()), tally, nil
}
