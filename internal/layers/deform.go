package layers

import (
	"fmt"
	"math"
	"math/rand"

	"rachis/internal/tensor"
)

// DeformConv2d is a deformable 2-D convolution: a companion convolution
// predicts a per-location, per-tap sampling offset, and the main weights
// are applied to bilinearly interpolated samples. The modulated variant
// additionally predicts a sigmoid-gated scalar per tap.
//
// Offset and mask predictors are zero-initialized: a fresh non-modulated
// layer behaves exactly like a standard Conv2d with the same main weights,
// and a fresh modulated layer like one scaled by sigmoid(0).
type DeformConv2d struct {
	InChannels       int
	OutChannels      int
	Kernel           int
	Stride           int
	Padding          int
	Dilation         int
	Groups           int
	DeformableGroups int
	Modulated        bool

	Weight *tensor.Tensor // [out, in/groups, k, k]
	offset *Conv2d        // [2 * dg * k * k] offset channels
	mask   *Conv2d        // [dg * k * k] mask channels, modulated only
}

func NewDeformConv2d(rng *rand.Rand, in, out, kernel, stride, padding, dilation, groups, deformableGroups int, modulated bool) *DeformConv2d {
	if groups < 1 || in%groups != 0 || out%groups != 0 {
		panic(fmt.Sprintf("layers: deform conv channels (%d in, %d out) not divisible by %d groups", in, out, groups))
	}
	if deformableGroups < 1 || in%deformableGroups != 0 {
		panic(fmt.Sprintf("layers: %d input channels not divisible by %d deformable groups", in, deformableGroups))
	}
	d := &DeformConv2d{
		InChannels:       in,
		OutChannels:      out,
		Kernel:           kernel,
		Stride:           stride,
		Padding:          padding,
		Dilation:         dilation,
		Groups:           groups,
		DeformableGroups: deformableGroups,
		Modulated:        modulated,
		Weight:           tensor.New(out, in/groups, kernel, kernel),
		offset:           NewConv2d(in, 2*deformableGroups*kernel*kernel, kernel, stride, padding, dilation, 1, true),
	}
	if modulated {
		d.mask = NewConv2d(in, deformableGroups*kernel*kernel, kernel, stride, padding, dilation, 1, true)
	}
	shape := d.Weight.Shape()
	fanIn := shape[1] * shape[2] * shape[3]
	bound := math.Sqrt(6.0 / (2.0 * float64(fanIn)))
	d.Weight.UniformInit(ensureRNG(rng), bound)
	return d
}

func (d *DeformConv2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, in, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	if in != d.InChannels {
		panic(fmt.Sprintf("layers: deform conv expects %d input channels, got %d", d.InChannels, in))
	}
	offsets := d.offset.Forward(x)
	var masks *tensor.Tensor
	if d.Modulated {
		masks = d.mask.Forward(x)
	}

	oh, ow := offsets.Dim(2), offsets.Dim(3)
	out := tensor.New(n, d.OutChannels, oh, ow)
	xv, wv, ov := x.Values(), d.Weight.Values(), out.Values()

	inPerG := d.InChannels / d.Groups
	outPerG := d.OutChannels / d.Groups
	dgSize := d.InChannels / d.DeformableGroups
	taps := d.Kernel * d.Kernel

	sample := func(b, ch int, y, x0 float64) float64 {
		y0, x1 := int(math.Floor(y)), int(math.Floor(x0))
		fy, fx := y-float64(y0), x0-float64(x1)
		base := (b*in + ch) * h * w
		read := func(iy, ix int) float64 {
			if iy < 0 || iy >= h || ix < 0 || ix >= w {
				return 0
			}
			return xv[base+iy*w+ix]
		}
		return read(y0, x1)*(1-fy)*(1-fx) +
			read(y0, x1+1)*(1-fy)*fx +
			read(y0+1, x1)*fy*(1-fx) +
			read(y0+1, x1+1)*fy*fx
	}

	for b := 0; b < n; b++ {
		for oc := 0; oc < d.OutChannels; oc++ {
			g := oc / outPerG
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					sum := 0.0
					for ic := 0; ic < inPerG; ic++ {
						inc := g*inPerG + ic
						dg := inc / dgSize
						for ky := 0; ky < d.Kernel; ky++ {
							for kx := 0; kx < d.Kernel; kx++ {
								tap := ky*d.Kernel + kx
								offY := offsets.At(b, (dg*taps+tap)*2, oy, ox)
								offX := offsets.At(b, (dg*taps+tap)*2+1, oy, ox)
								py := float64(oy*d.Stride-d.Padding+ky*d.Dilation) + offY
								px := float64(ox*d.Stride-d.Padding+kx*d.Dilation) + offX
								v := sample(b, inc, py, px)
								if masks != nil {
									v *= sigmoid(masks.At(b, dg*taps+tap, oy, ox))
								}
								sum += v * wv[((oc*inPerG+ic)*d.Kernel+ky)*d.Kernel+kx]
							}
						}
					}
					ov[((b*d.OutChannels+oc)*oh+oy)*ow+ox] = sum
				}
			}
		}
	}
	return out
}

func (d *DeformConv2d) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{d.Weight}
	params = append(params, d.offset.Parameters()...)
	if d.mask != nil {
		params = append(params, d.mask.Parameters()...)
	}
	return params
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
