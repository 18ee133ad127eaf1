//go:build !linux

package gpio

import "fmt"

// RealReader is a placeholder so the daemon builds off the Pi.
type RealReader struct{}

// NewRealReader always fails with ErrUnsupported.
func NewRealReader(chip string, pinStart, pinAbort int) (*RealReader, error) {
	return nil, fmt.Errorf("%w: buttons on %s pins %d/%d", ErrUnsupported, chip, pinStart, pinAbort)
}

func (r *RealReader) Read() (bool, bool, error) {
	return false, false, ErrUnsupported
}

func (r *RealReader) Close() error {
	return nil
}
