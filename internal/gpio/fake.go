package gpio

import "errors"

// FakeReader is a test double that returns scripted button states.
type FakeReader struct {
	// Samples contains scripted states. Each Read consumes the next one;
	// once exhausted the last sample repeats.
	Samples []Sample

	index int

	// Closed tracks if Close was called.
	Closed bool

	// ReadError, if set, will be returned by Read.
	ReadError error
}

// Sample is one reading of both buttons.
type Sample struct {
	Start bool // true = held down
	Abort bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() (bool, bool, error) {
	if f.ReadError != nil {
		return false, false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Start, s.Abort, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}
