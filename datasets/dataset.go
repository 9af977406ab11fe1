// Package datasets implements the dataset interface and the batch loader
// that feeds decoded, augmented samples to the trainer.
package datasets

import (
	"math/rand"

	"github.com/neurlang/transfer/hash"
	"github.com/neurlang/transfer/parallel"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Dataset is an indexable set of (image, label) samples.
type Dataset interface {
	Len() int

	// Get returns the i-th sample as a (3,H,W) float32 tensor. Random
	// augmentation draws from rng only.
	Get(i int, rng *rand.Rand) (tensor.Tensor, int, error)
}

// Batch is a stack of samples, Images has shape (B,3,H,W).
type Batch struct {
	Images tensor.Tensor
	Labels []int
}

// Size is the number of samples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Loader splits a dataset into batches, optionally reshuffled every epoch.
// The last batch may be short.
type Loader struct {
	ds        Dataset
	batchSize int
	shuffle   bool
	workers   int
	seed      uint32

	epoch uint32
	order []int
}

// NewLoader creates a loader positioned at epoch 0
func NewLoader(ds Dataset, batchSize int, shuffle bool, workers int, seed uint32) (*Loader, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if ds.Len() == 0 {
		return nil, errors.New("dataset is empty")
	}
	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		workers:   workers,
		seed:      seed,
	}
	l.Epoch(0)
	return l, nil
}

// Len is the number of batches per epoch.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Samples is the number of samples per epoch.
func (l *Loader) Samples() int {
	return l.ds.Len()
}

// Epoch sets the sample order for epoch e.
func (l *Loader) Epoch(e int) {
	l.epoch = uint32(e)
	l.order = make([]int, l.ds.Len())
	for i := range l.order {
		l.order[i] = i
	}
	if l.shuffle {
		rng := rand.New(rand.NewSource(hash.Seed(l.seed, l.epoch, ^uint32(0))))
		rng.Shuffle(len(l.order), func(i, j int) { l.order[i], l.order[j] = l.order[j], l.order[i] })
	}
}

// Order returns the sample indices of the current epoch.
func (l *Loader) Order() []int {
	return append([]int(nil), l.order...)
}

// Batch decodes batch b of the current epoch.
func (l *Loader) Batch(b int) (*Batch, error) {
	if b < 0 || b >= l.Len() {
		return nil, errors.Errorf("batch %d out of range [0,%d)", b, l.Len())
	}
	end := (b + 1) * l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	indices := l.order[b*l.batchSize : end]

	samples := make([]tensor.Tensor, len(indices))
	labels := make([]int, len(indices))
	err := parallel.ForEachErr(len(indices), l.workers, func(i int) error {
		rng := rand.New(rand.NewSource(hash.Seed(l.seed, l.epoch, uint32(indices[i]))))
		t, label, err := l.ds.Get(indices[i], rng)
		if err != nil {
			return err
		}
		samples[i], labels[i] = t, label
		return nil
	})
	if err != nil {
		return nil, err
	}
	images, err := Stack(samples)
	if err != nil {
		return nil, err
	}
	return &Batch{Images: images, Labels: labels}, nil
}

// Stack joins equally shaped (3,H,W) tensors into one (N,3,H,W) tensor.
func Stack(samples []tensor.Tensor) (tensor.Tensor, error) {
	if len(samples) == 0 {
		return nil, errors.New("stack: no samples")
	}
	shape := samples[0].Shape().Clone()
	if len(shape) != 3 {
		return nil, errors.Errorf("stack: want (C,H,W) samples, got %v", shape)
	}
	size := shape.TotalSize()
	backing := make([]float32, 0, size*len(samples))
	for i, s := range samples {
		if !s.Shape().Eq(shape) {
			return nil, errors.Errorf("stack: sample %d has shape %v, want %v", i, s.Shape(), shape)
		}
		data, ok := s.Data().([]float32)
		if !ok {
			return nil, errors.Errorf("stack: sample %d is %T, want []float32", i, s.Data())
		}
		backing = append(backing, data...)
	}
	return tensor.New(tensor.Of(tensor.Float32),
		tensor.WithShape(len(samples), shape[0], shape[1], shape[2]),
		tensor.WithBacking(backing)), nil
}
