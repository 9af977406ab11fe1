package conv2d

import "github.com/neurlang/transfer/layer"

// OutShape reports the output shape for an input of shape in.
func (c *Conv2D) OutShape(in layer.Shape) layer.Shape {
	return layer.Shape{
		C: c.Out,
		H: (in.H+2*c.Pad-c.Kernel)/c.Stride + 1,
		W: (in.W+2*c.Pad-c.Kernel)/c.Stride + 1,
	}
}

// Forward convolves in (shape s, s.C must equal c.In) and returns the output map.
func (c *Conv2D) Forward(in []float32, s layer.Shape) []float32 {
	if s.C != c.In {
		panic("conv2d: input channel mismatch")
	}
	o := c.OutShape(s)
	out := make([]float32, o.Len())
	k := c.Kernel
	plane := s.H * s.W

	for oc := 0; oc < c.Out; oc++ {
		wOC := c.Weight[oc*c.In*k*k:]
		dst := out[oc*o.H*o.W:]
		for oy := 0; oy < o.H; oy++ {
			for ox := 0; ox < o.W; ox++ {
				sum := c.Bias[oc]
				for ic := 0; ic < c.In; ic++ {
					src := in[ic*plane:]
					w := wOC[ic*k*k:]
					for ky := 0; ky < k; ky++ {
						iy := oy*c.Stride - c.Pad + ky
						if iy < 0 || iy >= s.H {
							continue
						}
						row := src[iy*s.W:]
						wr := w[ky*k:]
						for kx := 0; kx < k; kx++ {
							ix := ox*c.Stride - c.Pad + kx
							if ix < 0 || ix >= s.W {
								continue
							}
							sum += row[ix] * wr[kx]
						}
					}
				}
				dst[oy*o.W+ox] = sum
			}
		}
	}
	return out
}
