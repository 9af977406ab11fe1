package trainer

import (
	"fmt"

	"github.com/neurlang/transfer/datasets"
	"github.com/neurlang/transfer/learning"
	"github.com/neurlang/transfer/net/resnet"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Trainer fits the head of Model on Train and checkpoints it to SavePath
// whenever the accuracy on Val improves.
type Trainer struct {
	Model     *resnet.Model
	Train     *datasets.Loader
	Val       *datasets.Loader
	Optimizer learning.Optimizer
	Loss      learning.CrossEntropy
	Epochs    int
	SavePath  string
	Replicas  int

	// Logf receives the per epoch summary lines, klog.Infof when nil.
	Logf func(format string, args ...interface{})
}

// EpochStats is the outcome of one epoch.
type EpochStats struct {
	Epoch       int
	TrainLoss   float64
	ValAccuracy float64
	Saved       bool
}

// Result summarises a run. BestEpoch is 0 when nothing was saved.
type Result struct {
	Epochs       []EpochStats
	BestAccuracy float64
	BestEpoch    int
	Saves        int
}

func (t *Trainer) logf(format string, args ...interface{}) {
	if t.Logf != nil {
		t.Logf(format, args...)
		return
	}
	klog.Infof(format, args...)
}

func (t *Trainer) check() error {
	switch {
	case t.Model == nil:
		return errors.New("trainer: no model")
	case t.Train == nil || t.Val == nil:
		return errors.New("trainer: missing train or val loader")
	case t.SavePath == "":
		return errors.New("trainer: no save path")
	case t.Epochs < 0:
		return errors.Errorf("trainer: negative epoch count %d", t.Epochs)
	}
	if t.Optimizer == nil {
		sgd, err := learning.NewSGD(learning.DefaultLearningRate)
		if err != nil {
			return err
		}
		t.Optimizer = sgd
	}
	return nil
}

// Run trains for exactly Epochs epochs. Any error aborts the run.
func (t *Trainer) Run() (*Result, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.logf("Start Training")

	var best Checkpoint
	result := &Result{}
	for epoch := 0; epoch < t.Epochs; epoch++ {
		loss, err := t.trainEpoch(epoch)
		if err != nil {
			return result, errors.Wrapf(err, "train epoch %d", epoch+1)
		}

		t.Val.Epoch(epoch)
		acc, tally, err := Evaluate(t.Model, t.Val, t.Replicas, fmt.Sprintf("valid epoch[%d/%d]", epoch+1, t.Epochs))
		if err != nil {
			return result, errors.Wrapf(err, "validate epoch %d", epoch+1)
		}
		klog.V(1).Infof("valid epoch[%d/%d] class accuracy: %.3f", epoch+1, t.Epochs, tally.ClassAccuracy())
		t.logf("[epoch %d] train_loss: %.3f, val_accuracy: %.3f", epoch+1, loss, acc)

		stats := EpochStats{Epoch: epoch + 1, TrainLoss: loss, ValAccuracy: acc}
		if best.Improve(acc) {
			if err := t.Model.Save(t.SavePath); err != nil {
				return result, err
			}
			stats.Saved = true
			result.Saves++
			result.BestAccuracy, result.BestEpoch = acc, epoch+1
		}
		result.Epochs = append(result.Epochs, stats)
	}

	t.logf("Finished Training")
	t.logf("The model has been saved in : %s", t.SavePath)
	return result, nil
}

// trainEpoch returns the mean batch loss of one pass over the training set.
func (t *Trainer) trainEpoch(epoch int) (float64, error) {
	t.Train.Epoch(epoch)
	steps := t.Train.Len()
	var running float64
	for b := 0; b < steps; b++ {
		batch, err := t.Train.Batch(b)
		if err != nil {
			return 0, err
		}
		features, err := t.Model.Features(batch.Images, t.Replicas)
		if err != nil {
			return 0, err
		}
		loss, probs, err := t.Loss.Forward(t.Model.Logits(features), batch.Labels)
		if err != nil {
			return 0, err
		}
		dW, db := t.Model.Head.Backward(features, t.Loss.Backward(probs, batch.Labels))
		if err := t.Optimizer.Step(t.Model.Head, dW, db); err != nil {
			return 0, err
		}
		running += loss
		klog.V(1).Infof("train epoch[%d/%d] loss:%.3f", epoch+1, t.Epochs, loss)
	}
	return running / float64(steps), nil
}
