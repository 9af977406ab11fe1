package datasets

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// fake returns 1x1 images whose pixels hold the sample index and a random draw.
type fake struct {
	n    int
	fail int
}

func (f fake) Len() int { return f.n }

func (f fake) Get(i int, rng *rand.Rand) (tensor.Tensor, int, error) {
	if i == f.fail {
		return nil, 0, errors.Errorf("sample %d is broken", i)
	}
	data := []float32{float32(i), rng.Float32(), 0}
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(3, 1, 1), tensor.WithBacking(data)), i % 2, nil
}

func TestLoaderBatches(t *testing.T) {
	l, err := NewLoader(fake{n: 10, fail: -1}, 4, false, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 10, l.Samples())

	sizes := []int{4, 4, 2}
	for b, want := range sizes {
		batch, err := l.Batch(b)
		require.NoError(t, err)
		assert.Equal(t, want, batch.Size())
		assert.Equal(t, tensor.Shape{want, 3, 1, 1}, batch.Images.Shape())
		data := batch.Images.Data().([]float32)
		for i := 0; i < want; i++ {
			idx := b*4 + i
			assert.Equal(t, float32(idx), data[i*3], "unshuffled order keeps dataset order")
			assert.Equal(t, idx%2, batch.Labels[i])
		}
	}
	_, err = l.Batch(3)
	assert.Error(t, err)
}

func TestLoaderShuffleIsAPermutationPerEpoch(t *testing.T) {
	l, err := NewLoader(fake{n: 50, fail: -1}, 8, true, 4, 42)
	require.NoError(t, err)

	first := l.Order()
	l.Epoch(1)
	second := l.Order()
	assert.NotEqual(t, first, second)

	for _, order := range [][]int{first, second} {
		sorted := append([]int(nil), order...)
		sort.Ints(sorted)
		for i, v := range sorted {
			assert.Equal(t, i, v)
		}
	}

	again, err := NewLoader(fake{n: 50, fail: -1}, 8, true, 1, 42)
	require.NoError(t, err)
	again.Epoch(1)
	assert.Equal(t, second, again.Order(), "same seed and epoch give the same order")
}

func TestLoaderAugmentationIndependentOfWorkers(t *testing.T) {
	a, err := NewLoader(fake{n: 12, fail: -1}, 6, true, 1, 7)
	require.NoError(t, err)
	b, err := NewLoader(fake{n: 12, fail: -1}, 6, true, 6, 7)
	require.NoError(t, err)
	for batch := 0; batch < a.Len(); batch++ {
		x, err := a.Batch(batch)
		require.NoError(t, err)
		y, err := b.Batch(batch)
		require.NoError(t, err)
		assert.Equal(t, x.Images.Data(), y.Images.Data())
	}
}

func TestLoaderErrors(t *testing.T) {
	_, err := NewLoader(fake{n: 0}, 4, false, 1, 0)
	assert.Error(t, err)
	_, err = NewLoader(fake{n: 3}, 0, false, 1, 0)
	assert.Error(t, err)

	l, err := NewLoader(fake{n: 6, fail: 4}, 3, false, 2, 0)
	require.NoError(t, err)
	_, err = l.Batch(0)
	assert.NoError(t, err)
	_, err = l.Batch(1)
	assert.EqualError(t, err, "sample 4 is broken")
}

func TestStackRejectsMismatchedShapes(t *testing.T) {
	a := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(3, 1, 1), tensor.WithBacking([]float32{1, 2, 3}))
	b := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(3, 1, 2), tensor.WithBacking([]float32{1, 2, 3, 4, 5, 6}))
	_, err := Stack([]tensor.Tensor{a, b})
	assert.Error(t, err)
	_, err = Stack(nil)
	assert.Error(t, err)
}
