package backbone

import (
	"fmt"

	"rachis/internal/layers"
)

// Resolution-adapter modes applied to every exported feature
// map after the body.
const (
	ResRegOff   = "off"
	ResRegUp2   = "up2"
	ResRegUp4   = "up4"
	ResRegDown2 = "down2"
	ResRegKeep1 = "keep1"
)

// resRegActive reports whether a mode changes the stride schedule. "off"
// and the empty string leave the schedule to the anchor-stride table.
func resRegActive(mode string) bool {
	return mode != "" && mode != ResRegOff
}

// newResReg builds the adapter for a mode. Off maps to nil (no adapter).
// An unrecognized mode is a configuration error, never a process exit.
func newResReg(mode string) (layers.Layer, error) {
	switch mode {
	case "", ResRegOff:
		return nil, nil
	case ResRegUp2:
		return layers.NewUpsample(2), nil
	case ResRegUp4:
		return layers.NewUpsample(4), nil
	case ResRegDown2:
		return layers.NewAvgPool2d(2, 2, 0), nil
	case ResRegKeep1:
		return layers.Identity{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownResReg, mode)
	}
}
