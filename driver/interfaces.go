package driver

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

// SPI represents a generic SPI connection. Chip select is asserted for the
// duration of each Tx.
type SPI interface {
	// Tx sends w and reads into r.
	// len(r) must be >= len(w).
	Tx(w, r []byte) error
}

// Pin represents a generic GPIO pin.
type Pin interface {
	// Out sets the pin as output with the given level.
	Out(l gpio.Level) error
	// In sets the pin as input with the given pull mode and edge detection.
	In(pull gpio.Pull, edge gpio.Edge) error
	// Read returns the current level of the pin.
	Read() gpio.Level
	// Watch configures an interrupt/callback on the specified edge.
	// The handler should be called when the edge is detected.
	Watch(edge gpio.Edge, handler func()) error
	// Unwatch removes the interrupt/callback.
	Unwatch() error
}

// Clock provides the delays the driver waits on. Simulated machines
// implement it to advance emulated time instead of sleeping.
type Clock interface {
	Sleep(d time.Duration)
}

type wallClock struct{}

func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }
