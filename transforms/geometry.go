package transforms

import (
	"image"
	"image/draw"
	"math"
	"math/rand"

	xdraw "golang.org/x/image/draw"
)

// RandomResizedCrop crops a random area and aspect ratio, then resizes to Size x Size.
type RandomResizedCrop struct {
	Size               int
	MinScale, MaxScale float64
	MinRatio, MaxRatio float64
	Attempts           int
}

// NewRandomResizedCrop uses scale (0.08, 1) and ratio (3/4, 4/3).
func NewRandomResizedCrop(size int) RandomResizedCrop {
	return RandomResizedCrop{
		Size:     size,
		MinScale: 0.08,
		MaxScale: 1,
		MinRatio: 3.0 / 4.0,
		MaxRatio: 4.0 / 3.0,
		Attempts: 10,
	}
}

// Params picks the crop rectangle, relative to the image origin, for a w x h image.
func (c RandomResizedCrop) Params(w, h int, rng *rand.Rand) image.Rectangle {
	area := float64(w * h)
	logMin, logMax := math.Log(c.MinRatio), math.Log(c.MaxRatio)
	for i := 0; i < c.Attempts; i++ {
		target := area * (c.MinScale + rng.Float64()*(c.MaxScale-c.MinScale))
		aspect := math.Exp(logMin + rng.Float64()*(logMax-logMin))
		cw := int(math.Round(math.Sqrt(target * aspect)))
		ch := int(math.Round(math.Sqrt(target / aspect)))
		if cw > 0 && cw <= w && ch > 0 && ch <= h {
			top := rng.Intn(h - ch + 1)
			left := rng.Intn(w - cw + 1)
			return image.Rect(left, top, left+cw, top+ch)
		}
	}
	// fallback to a central crop clamped to the ratio range
	cw, ch := w, h
	ratio := float64(w) / float64(h)
	if ratio < c.MinRatio {
		ch = int(math.Round(float64(cw) / c.MinRatio))
	} else if ratio > c.MaxRatio {
		cw = int(math.Round(float64(ch) * c.MaxRatio))
	}
	top, left := (h-ch)/2, (w-cw)/2
	return image.Rect(left, top, left+cw, top+ch)
}

// Image implements ImageOp.
func (c RandomResizedCrop) Image(img image.Image, rng *rand.Rand) image.Image {
	b := img.Bounds()
	r := c.Params(b.Dx(), b.Dy(), rng).Add(b.Min)
	return scale(img, r, c.Size, c.Size)
}

// RandomHorizontalFlip mirrors the image with probability P.
type RandomHorizontalFlip struct {
	P float64
}

// Image implements ImageOp.
func (f RandomHorizontalFlip) Image(img image.Image, rng *rand.Rand) image.Image {
	if rng.Float64() >= f.P {
		return img
	}
	return FlipHorizontal(img)
}

// FlipHorizontal returns a mirrored copy of img.
func FlipHorizontal(img image.Image) *image.RGBA {
	src := toRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		s := src.Pix[y*src.Stride:]
		d := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			copy(d[4*(w-1-x):4*(w-x)], s[4*x:4*x+4])
		}
	}
	return dst
}

// Resize scales the shorter side to Size, keeping the aspect ratio.
type Resize struct {
	Size int
}

// Image implements ImageOp.
func (r Resize) Image(img image.Image, _ *rand.Rand) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= h {
		if w == r.Size {
			return img
		}
		return scale(img, b, r.Size, r.Size*h/w)
	}
	if h == r.Size {
		return img
	}
	return scale(img, b, r.Size*w/h, r.Size)
}

// CenterCrop cuts the central Size x Size square, zero padding smaller images.
type CenterCrop struct {
	Size int
}

// Image implements ImageOp.
func (c CenterCrop) Image(img image.Image, _ *rand.Rand) image.Image {
	b := img.Bounds()
	top := int(math.Round(float64(b.Dy()-c.Size) / 2))
	left := int(math.Round(float64(b.Dx()-c.Size) / 2))
	dst := image.NewRGBA(image.Rect(0, 0, c.Size, c.Size))
	draw.Draw(dst, dst.Bounds(), img, b.Min.Add(image.Pt(left, top)), draw.Src)
	return dst
}

func scale(img image.Image, r image.Rectangle, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, r, xdraw.Src, nil)
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
