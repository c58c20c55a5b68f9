package layers

import (
	"fmt"

	"rachis/internal/tensor"
)

// Conv2d is a standard 2-D convolution over NCHW input with optional
// grouped computation and dilation. Weight layout is
// [out_channels, in_channels/groups, kernel, kernel].
type Conv2d struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Stride      int
	Padding     int
	Dilation    int
	Groups      int

	Weight *tensor.Tensor
	Bias   *tensor.Tensor // nil when constructed without bias
}

// NewConv2d builds an uninitialized convolution. Weights start at zero;
// initialization is applied explicitly by the module that owns the layer.
func NewConv2d(in, out, kernel, stride, padding, dilation, groups int, bias bool) *Conv2d {
	if groups < 1 || in%groups != 0 || out%groups != 0 {
		panic(fmt.Sprintf("layers: conv channels (%d in, %d out) not divisible by %d groups", in, out, groups))
	}
	if kernel < 1 || stride < 1 || dilation < 1 || padding < 0 {
		panic(fmt.Sprintf("layers: invalid conv geometry k=%d s=%d p=%d d=%d", kernel, stride, padding, dilation))
	}
	c := &Conv2d{
		InChannels:  in,
		OutChannels: out,
		Kernel:      kernel,
		Stride:      stride,
		Padding:     padding,
		Dilation:    dilation,
		Groups:      groups,
		Weight:      tensor.New(out, in/groups, kernel, kernel),
	}
	if bias {
		c.Bias = tensor.New(out)
	}
	return c
}

// convOutDim computes the output spatial extent of a convolution.
func convOutDim(in, kernel, stride, padding, dilation int) int {
	return (in+2*padding-dilation*(kernel-1)-1)/stride + 1
}

func (c *Conv2d) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, in, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	if in != c.InChannels {
		panic(fmt.Sprintf("layers: conv expects %d input channels, got %d", c.InChannels, in))
	}
	oh := convOutDim(h, c.Kernel, c.Stride, c.Padding, c.Dilation)
	ow := convOutDim(w, c.Kernel, c.Stride, c.Padding, c.Dilation)
	out := tensor.New(n, c.OutChannels, oh, ow)

	inPerG := c.InChannels / c.Groups
	outPerG := c.OutChannels / c.Groups
	xv, wv, ov := x.Values(), c.Weight.Values(), out.Values()

	for b := 0; b < n; b++ {
		for oc := 0; oc < c.OutChannels; oc++ {
			g := oc / outPerG
			bias := 0.0
			if c.Bias != nil {
				bias = c.Bias.Values()[oc]
			}
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					sum := bias
					for ic := 0; ic < inPerG; ic++ {
						inc := g*inPerG + ic
						for ky := 0; ky < c.Kernel; ky++ {
							iy := oy*c.Stride - c.Padding + ky*c.Dilation
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < c.Kernel; kx++ {
								ix := ox*c.Stride - c.Padding + kx*c.Dilation
								if ix < 0 || ix >= w {
									continue
								}
								sum += xv[((b*in+inc)*h+iy)*w+ix] *
									wv[((oc*inPerG+ic)*c.Kernel+ky)*c.Kernel+kx]
							}
						}
					}
					ov[((b*c.OutChannels+oc)*oh+oy)*ow+ox] = sum
				}
			}
		}
	}
	return out
}

func (c *Conv2d) Parameters() []*tensor.Tensor {
	if c.Bias != nil {
		return []*tensor.Tensor{c.Weight, c.Bias}
	}
	return []*tensor.Tensor{c.Weight}
}
