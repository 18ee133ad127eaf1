//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the buttons from hardware using the GPIO character device.
// Buttons are wired between the pin and ground, so the lines use the internal
// pull-up and are requested active-low: a held button reads as 1.
type RealReader struct {
	chip  *gpiocdev.Chip
	start *gpiocdev.Line
	abort *gpiocdev.Line
}

// NewRealReader requests the two button lines on the named chip.
func NewRealReader(chip string, pinStart, pinAbort int) (*RealReader, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	start, err := c.RequestLine(pinStart, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request start pin %d: %w", pinStart, err)
	}

	abort, err := c.RequestLine(pinAbort, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		start.Close()
		c.Close()
		return nil, fmt.Errorf("request abort pin %d: %w", pinAbort, err)
	}

	return &RealReader{chip: c, start: start, abort: abort}, nil
}

// Read returns whether each button is held down.
func (r *RealReader) Read() (bool, bool, error) {
	s, err := r.start.Value()
	if err != nil {
		return false, false, fmt.Errorf("read start pin: %w", err)
	}
	a, err := r.abort.Value()
	if err != nil {
		return false, false, fmt.Errorf("read abort pin: %w", err)
	}
	return s == 1, a == 1, nil
}

// Close releases the lines and the chip. Lines are left as inputs with
// pull-down, matching the Pi boot defaults.
func (r *RealReader) Close() error {
	var errs []error
	for name, l := range map[string]*gpiocdev.Line{"start": r.start, "abort": r.abort} {
		if l == nil {
			continue
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
