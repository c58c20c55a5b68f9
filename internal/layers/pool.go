package layers

import (
	"math"

	"rachis/internal/tensor"
)

// MaxPool2d takes the maximum over each pooling window. Padded positions
// never contribute to the maximum.
type MaxPool2d struct {
	Kernel  int
	Stride  int
	Padding int
}

func NewMaxPool2d(kernel, stride, padding int) *MaxPool2d {
	return &MaxPool2d{Kernel: kernel, Stride: stride, Padding: padding}
}

func (p *MaxPool2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	oh := convOutDim(h, p.Kernel, p.Stride, p.Padding, 1)
	ow := convOutDim(w, p.Kernel, p.Stride, p.Padding, 1)
	out := tensor.New(n, c, oh, ow)
	xv, ov := x.Values(), out.Values()
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * h * w
			obase := (b*c + ch) * oh * ow
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					best := math.Inf(-1)
					for ky := 0; ky < p.Kernel; ky++ {
						iy := oy*p.Stride - p.Padding + ky
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < p.Kernel; kx++ {
							ix := ox*p.Stride - p.Padding + kx
							if ix < 0 || ix >= w {
								continue
							}
							if v := xv[base+iy*w+ix]; v > best {
								best = v
							}
						}
					}
					ov[obase+oy*ow+ox] = best
				}
			}
		}
	}
	return out
}

func (p *MaxPool2d) Parameters() []*tensor.Tensor { return nil }

// AvgPool2d averages each pooling window; out-of-bounds positions are
// excluded from the divisor.
type AvgPool2d struct {
	Kernel  int
	Stride  int
	Padding int
}

func NewAvgPool2d(kernel, stride, padding int) *AvgPool2d {
	return &AvgPool2d{Kernel: kernel, Stride: stride, Padding: padding}
}

func (p *AvgPool2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	oh := convOutDim(h, p.Kernel, p.Stride, p.Padding, 1)
	ow := convOutDim(w, p.Kernel, p.Stride, p.Padding, 1)
	out := tensor.New(n, c, oh, ow)
	xv, ov := x.Values(), out.Values()
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * h * w
			obase := (b*c + ch) * oh * ow
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					sum, cnt := 0.0, 0
					for ky := 0; ky < p.Kernel; ky++ {
						iy := oy*p.Stride - p.Padding + ky
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < p.Kernel; kx++ {
							ix := ox*p.Stride - p.Padding + kx
							if ix < 0 || ix >= w {
								continue
							}
							sum += xv[base+iy*w+ix]
							cnt++
						}
					}
					ov[obase+oy*ow+ox] = sum / float64(cnt)
				}
			}
		}
	}
	return out
}

func (p *AvgPool2d) Parameters() []*tensor.Tensor { return nil }

// GlobalAvgPool reduces each channel to its spatial mean, returning an
// [n, c, 1, 1] tensor.
func GlobalAvgPool(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	out := tensor.New(n, c, 1, 1)
	xv, ov := x.Values(), out.Values()
	area := h * w
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * area
			sum := 0.0
			for i := 0; i < area; i++ {
				sum += xv[base+i]
			}
			ov[b*c+ch] = sum / float64(area)
		}
	}
	return out
}
