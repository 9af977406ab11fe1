// Package inference classifies image files with a trained model
package inference

import (
	"github.com/neurlang/transfer/datasets"
	"github.com/neurlang/transfer/datasets/imagefolder"
	"github.com/neurlang/transfer/learning"
	"github.com/neurlang/transfer/net/resnet"
	"github.com/neurlang/transfer/parallel"
	"github.com/neurlang/transfer/transforms"
	"gorgonia.org/tensor"
)

// Prediction is the most likely class of one image.
type Prediction struct {
	Path        string
	Class       int
	Probability float64
}

// Classify decodes the images with the validation transform at the given
// crop size and runs them through m as one batch.
func Classify(m *resnet.Model, paths []string, size, replicas int) ([]Prediction, error) {
	val := transforms.Val(size)
	samples := make([]tensor.Tensor, len(paths))
	err := parallel.ForEachErr(len(paths), replicas, func(i int) error {
		img, err := imagefolder.Load(paths[i])
		if err != nil {
			return err
		}
		samples[i], err = val.Apply(img, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	batch, err := datasets.Stack(samples)
	if err != nil {
		return nil, err
	}
	probs, err := m.Probabilities(batch, replicas)
	if err != nil {
		return nil, err
	}
	out := make([]Prediction, len(paths))
	for i, class := range learning.Argmax(probs) {
		out[i] = Prediction{Path: paths[i], Class: class, Probability: probs.At(i, class)}
	}
	return out, nil
}
