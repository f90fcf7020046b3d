//go:build linux

package hw

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Relay drives a Grove relay through the Linux GPIO character device.
//
// The line is requested as-is, so opening, reading and closing never change
// the relay; only Set drives it.
type Relay struct {
	chip   string
	offset int
	line   *gpiocdev.Line
}

// NewRelay creates a relay on the given chip and BCM offset. The line is
// requested on Init.
func NewRelay(chip string, offset int) *Relay {
	return &Relay{chip: chip, offset: offset}
}

// Init requests the line without changing its direction or value.
func (r *Relay) Init() error {
	if r.line != nil {
		r.line.Close()
		r.line = nil
	}
	line, err := gpiocdev.RequestLine(r.chip, r.offset, gpiocdev.AsIs)
	if err != nil {
		return fmt.Errorf("request relay pin %d: %w", r.offset, err)
	}
	r.line = line
	return nil
}

// Read returns the level currently on the line.
func (r *Relay) Read() (bool, error) {
	if r.line == nil {
		return false, fmt.Errorf("read relay pin %d: line not requested", r.offset)
	}
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read relay pin %d: %w", r.offset, err)
	}
	return v == 1, nil
}

// Set drives the relay on or off, switching the line to output if needed.
func (r *Relay) Set(on bool) error {
	if r.line == nil {
		return fmt.Errorf("set relay pin %d: line not requested", r.offset)
	}
	v := 0
	if on {
		v = 1
	}
	if err := r.line.Reconfigure(gpiocdev.AsOutput(v)); err != nil {
		return fmt.Errorf("set relay pin %d: %w", r.offset, err)
	}
	return nil
}

// Close releases the line. The kernel keeps the last driven level.
func (r *Relay) Close() error {
	if r.line == nil {
		return nil
	}
	err := r.line.Close()
	r.line = nil
	if err != nil {
		return fmt.Errorf("close relay pin %d: %w", r.offset, err)
	}
	return nil
}
