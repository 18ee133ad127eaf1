// Package gpio reads the start and abort push buttons.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// ErrUnsupported is returned by NewRealReader where the GPIO character
// device is unavailable.
var ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Reader reads button states.
type Reader interface {
	// Read returns whether the start and abort buttons are held down.
	// Returns (startDown, abortDown, error).
	Read() (bool, bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Default pin assignments (BCM numbering).
const (
	DefaultPinStart = 17
	DefaultPinAbort = 27
)
