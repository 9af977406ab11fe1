// Package resnet implements the residual image classifier: a frozen
// convolutional backbone followed by a trainable fully connected head.
package resnet

import (
	"fmt"
	"math/rand"

	"github.com/neurlang/transfer/layer"
	"github.com/neurlang/transfer/layer/conv2d"
	"github.com/neurlang/transfer/layer/full"
	"github.com/neurlang/transfer/layer/pool"
	"github.com/neurlang/transfer/learning"
	"github.com/neurlang/transfer/parallel"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// MaxStages is the largest number of stages a checkpoint header can describe.
const MaxStages = 8

// Config is the architecture of a model. Stage 0 keeps the stem resolution,
// every later stage halves it.
type Config struct {
	Stem    int   // channels of the stride 2 stem convolution
	Widths  []int // channels per stage
	Blocks  []int // residual blocks per stage
	Classes int   // outputs of the head
}

// Validate checks the architecture is buildable.
func (c Config) Validate() error {
	if c.Stem <= 0 {
		return errors.Errorf("resnet: stem width must be positive, got %d", c.Stem)
	}
	if len(c.Widths) == 0 || len(c.Widths) > MaxStages {
		return errors.Errorf("resnet: need 1 to %d stages, got %d", MaxStages, len(c.Widths))
	}
	if len(c.Widths) != len(c.Blocks) {
		return errors.Errorf("resnet: %d stage widths but %d block counts", len(c.Widths), len(c.Blocks))
	}
	for i := range c.Widths {
		if c.Widths[i] <= 0 || c.Blocks[i] <= 0 {
			return errors.Errorf("resnet: stage %d has width %d and %d blocks", i, c.Widths[i], c.Blocks[i])
		}
	}
	if c.Classes <= 0 {
		return errors.Errorf("resnet: classes must be positive, got %d", c.Classes)
	}
	return nil
}

// FeatureDim is the length of the pooled feature vector fed to the head.
func (c Config) FeatureDim() int {
	return c.Widths[len(c.Widths)-1]
}

// NumParameters counts the values of the backbone and head of this
// architecture without allocating them.
func (c Config) NumParameters() int64 {
	conv := func(in, out, kernel int) int64 {
		return int64(in)*int64(out)*int64(kernel*kernel) + int64(out)
	}
	n := conv(3, c.Stem, 3)
	in := c.Stem
	for s, width := range c.Widths {
		for b := 0; b < c.Blocks[s]; b++ {
			n += conv(in, width, 3) + conv(width, width, 3)
			if (s > 0 && b == 0) || in != width {
				n += conv(in, width, 1)
			}
			in = width
		}
	}
	return n + int64(c.FeatureDim())*int64(c.Classes) + int64(c.Classes)
}

// Model is the network. The backbone (Stem, Blocks) is never updated by training.
type Model struct {
	Config Config
	Stem   *conv2d.Conv2D
	Blocks []*Block
	Pool   pool.GlobalAverage
	Head   *full.Linear
}

// New creates a randomly initialised model. Convolutions use He init, the
// head uses the default linear init.
func New(cfg Config, rng *rand.Rand) (*Model, error) {
	m, err := build(cfg)
	if err != nil {
		return nil, err
	}
	m.Stem.HeInit(rng)
	for _, b := range m.Blocks {
		b.Conv1.HeInit(rng)
		b.Conv2.HeInit(rng)
		if b.Proj != nil {
			b.Proj.HeInit(rng)
		}
	}
	m.Head.Reset(rng)
	return m, nil
}

// build allocates a zeroed model.
func build(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Widths = append([]int(nil), cfg.Widths...)
	cfg.Blocks = append([]int(nil), cfg.Blocks...)
	m := &Model{
		Config: cfg,
		Stem:   conv2d.MustNew(3, cfg.Stem, 3, 2, 1),
		Head:   full.New(cfg.FeatureDim(), cfg.Classes),
	}
	in := cfg.Stem
	for s, width := range cfg.Widths {
		for b := 0; b < cfg.Blocks[s]; b++ {
			stride := 1
			if s > 0 && b == 0 {
				stride = 2
			}
			m.Blocks = append(m.Blocks, NewBlock(in, width, stride))
			in = width
		}
	}
	return m, nil
}

// ReplaceHead discards the current head and installs a freshly initialised
// one with the given number of outputs.
func (m *Model) ReplaceHead(classes int, rng *rand.Rand) error {
	if classes <= 0 {
		return errors.Errorf("resnet: classes must be positive, got %d", classes)
	}
	m.Head = full.New(m.Config.FeatureDim(), classes)
	m.Head.Reset(rng)
	m.Config.Classes = classes
	return nil
}

// Parameters returns the backbone parameters in checkpoint order.
func (m *Model) Parameters() (o [][]float32) {
	layers := []layer.Parameterized{m.Stem}
	for _, b := range m.Blocks {
		layers = append(layers, b)
	}
	for _, l := range layers {
		o = append(o, l.Parameters()...)
	}
	return o
}

// NumParameters counts backbone and head values.
func (m *Model) NumParameters() (n int) {
	for _, p := range m.Parameters() {
		n += len(p)
	}
	return n + m.Head.In*m.Head.Out + m.Head.Out
}

// Features runs the frozen backbone over a (B,3,H,W) batch, split into
// replicas contiguous shards computed concurrently. Row i is sample i.
func (m *Model) Features(batch tensor.Tensor, replicas int) (*mat.Dense, error) {
	shape := batch.Shape()
	if len(shape) != 4 || shape[1] != 3 || shape[2] <= 0 || shape[3] <= 0 {
		return nil, errors.Errorf("resnet: want a (B,3,H,W) batch, got %v", shape)
	}
	data, ok := batch.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("resnet: want float32 batch, got %T", batch.Data())
	}
	n := shape[0]
	in := layer.Shape{C: 3, H: shape[2], W: shape[3]}
	if replicas <= 0 {
		replicas = 1
	}
	if replicas > n {
		replicas = n
	}

	out := mat.NewDense(n, m.Config.FeatureDim(), nil)
	per := (n + replicas - 1) / replicas
	parallel.ForEach(replicas, replicas, func(r int) {
		for i := r * per; i < (r+1)*per && i < n; i++ {
			f := m.forward(data[i*in.Len():(i+1)*in.Len()], in)
			row := out.RawRowView(i)
			for j, v := range f {
				row[j] = float64(v)
			}
		}
	})
	return out, nil
}

func (m *Model) forward(x []float32, s layer.Shape) []float32 {
	x = m.Stem.Forward(x, s)
	s = m.Stem.OutShape(s)
	layer.ReLU(x)
	for _, b := range m.Blocks {
		x, s = b.Forward(x, s), b.OutShape(s)
	}
	return m.Pool.Forward(x, s)
}

// Logits applies the head to backbone features.
func (m *Model) Logits(features *mat.Dense) *mat.Dense {
	return m.Head.Forward(features)
}

// Probabilities is the softmax of the logits of a batch.
func (m *Model) Probabilities(batch tensor.Tensor, replicas int) (*mat.Dense, error) {
	features, err := m.Features(batch, replicas)
	if err != nil {
		return nil, err
	}
	return learning.Softmax(m.Logits(features)), nil
}

// Predict returns the most likely class of every sample of a batch.
func (m *Model) Predict(batch tensor.Tensor, replicas int) ([]int, error) {
	features, err := m.Features(batch, replicas)
	if err != nil {
		return nil, err
	}
	return learning.Argmax(m.Logits(features)), nil
}

func (m *Model) String() string {
	var s string
	s += "[ResNet]\n"
	s += fmt.Sprintf("stem: %d\n", m.Config.Stem)
	s += fmt.Sprintf("widths: %v\n", m.Config.Widths)
	s += fmt.Sprintf("blocks: %v\n", m.Config.Blocks)
	s += fmt.Sprintf("classes: %d\n", m.Config.Classes)
	s += fmt.Sprintf("num_parameters: %d\n", m.NumParameters())
	return s
}
