package backbone

import "errors"

var (
	// ErrComponentExists signals a duplicate registry registration; the
	// component sets are enumerated once at load time, so a collision is
	// a definition bug.
	ErrComponentExists = errors.New("component already registered")

	// ErrUnknownComponent signals a registry lookup miss.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrConfigMismatch signals a configuration axis whose length or
	// value is inconsistent with the selected architecture.
	ErrConfigMismatch = errors.New("configuration mismatch")

	// ErrInvalidAnchorStride signals an anchor stride outside the
	// supported schedule table (4, 8, 16, 32).
	ErrInvalidAnchorStride = errors.New("invalid anchor stride")

	// ErrUnknownResReg signals an unrecognized resolution-adapter mode.
	ErrUnknownResReg = errors.New("unknown resreg mode")
)
