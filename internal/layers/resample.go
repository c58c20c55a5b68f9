package layers

import (
	"fmt"

	"rachis/internal/tensor"
)

// Upsample enlarges each feature map spatially by an integer factor using
// nearest-neighbor replication. Channel count is preserved.
type Upsample struct {
	Scale int
}

func NewUpsample(scale int) *Upsample {
	if scale < 2 {
		panic(fmt.Sprintf("layers: upsample scale must be >= 2, got %d", scale))
	}
	return &Upsample{Scale: scale}
}

func (u *Upsample) Forward(x *tensor.Tensor) *tensor.Tensor {
	n, c, h, w := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	oh, ow := h*u.Scale, w*u.Scale
	out := tensor.New(n, c, oh, ow)
	xv, ov := x.Values(), out.Values()
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * h * w
			obase := (b*c + ch) * oh * ow
			for oy := 0; oy < oh; oy++ {
				iy := oy / u.Scale
				for ox := 0; ox < ow; ox++ {
					ov[obase+oy*ow+ox] = xv[base+iy*w+ox/u.Scale]
				}
			}
		}
	}
	return out
}

func (u *Upsample) Parameters() []*tensor.Tensor { return nil }
