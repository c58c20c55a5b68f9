package layers

import (
	"math"
	"math/rand"
	"time"
)

// KaimingUniform fills w with samples from U(-bound, bound) where
// bound = sqrt(6 / ((1 + a^2) * fan_in)) and fan_in is the product of the
// weight's non-leading dimensions. The backbone applies it with a=1 to
// every convolution weight, once, at construction.
func KaimingUniform(rng *rand.Rand, c *Conv2d, a float64) {
	rng = ensureRNG(rng)
	shape := c.Weight.Shape()
	fanIn := 1
	for _, dim := range shape[1:] {
		fanIn *= dim
	}
	bound := math.Sqrt(6.0 / ((1.0 + a*a) * float64(fanIn)))
	c.Weight.UniformInit(rng, bound)
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
