// Package transforms implements the image augmentation pipelines applied
// before an image enters the backbone: resizing, cropping, flipping,
// conversion to a CHW float32 tensor and per-channel normalization.
package transforms

import (
	"image"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ImageNet channel statistics the pretrained backbone expects.
var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// ImageOp is a geometric step working on decoded images.
type ImageOp interface {
	Image(img image.Image, rng *rand.Rand) image.Image
}

// TensorOp is an in-place step working on (3,H,W) float32 tensors.
type TensorOp interface {
	Tensor(t tensor.Tensor) error
}

// Transform turns a decoded image into a model input.
type Transform interface {
	Apply(img image.Image, rng *rand.Rand) (tensor.Tensor, error)
}

// Pipeline runs image ops, converts with ToTensor, then runs tensor ops.
type Pipeline struct {
	Images  []ImageOp
	Tensors []TensorOp
}

// Apply implements Transform.
func (p Pipeline) Apply(img image.Image, rng *rand.Rand) (tensor.Tensor, error) {
	for _, op := range p.Images {
		img = op.Image(img, rng)
	}
	t := ToTensor(img)
	for _, op := range p.Tensors {
		if err := op.Tensor(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Train is the augmentation used for training samples.
func Train(size int) Pipeline {
	return Pipeline{
		Images: []ImageOp{
			NewRandomResizedCrop(size),
			RandomHorizontalFlip{P: 0.5},
		},
		Tensors: []TensorOp{Normalize{Mean: Mean, Std: Std}},
	}
}

// Val is the deterministic pipeline used for validation and inference.
func Val(size int) Pipeline {
	return Pipeline{
		Images: []ImageOp{
			Resize{Size: size * 256 / 224},
			CenterCrop{Size: size},
		},
		Tensors: []TensorOp{Normalize{Mean: Mean, Std: Std}},
	}
}

// ToTensor converts img to a (3,H,W) float32 tensor scaled to [0,1].
func ToTensor(img image.Image) tensor.Tensor {
	rgba := toRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			px := row[4*x:]
			data[y*w+x] = float32(px[0]) / 255
			data[plane+y*w+x] = float32(px[1]) / 255
			data[2*plane+y*w+x] = float32(px[2]) / 255
		}
	}
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(3, h, w), tensor.WithBacking(data))
}

// Normalize maps every channel c to (v - Mean[c]) / Std[c].
type Normalize struct {
	Mean, Std [3]float32
}

// Tensor implements TensorOp.
func (n Normalize) Tensor(t tensor.Tensor) error {
	shape := t.Shape()
	if len(shape) != 3 || shape[0] != 3 {
		return errors.Errorf("normalize: want a (3,H,W) tensor, got %v", shape)
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return errors.Errorf("normalize: want float32 data, got %T", t.Data())
	}
	plane := shape[1] * shape[2]
	for c := 0; c < 3; c++ {
		if n.Std[c] == 0 {
			return errors.Errorf("normalize: zero std for channel %d", c)
		}
		ch := data[c*plane : (c+1)*plane]
		for i, v := range ch {
			ch[i] = (v - n.Mean[c]) / n.Std[c]
		}
	}
	return nil
}
