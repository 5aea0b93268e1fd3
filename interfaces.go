package cc2420

import (
	"fmt"
	"time"
)

// Peripheral is the pin-level contract every emulated chip exposes to the
// machine that owns it.
type Peripheral interface {
	// Read reports which of the masked output pins changed since the last
	// Read and their current levels. The changed flags of masked pins are
	// cleared.
	Read(mask Pin) (changed, value Pin)
	// Write drives the masked input pins to the levels in value.
	Write(mask, value Pin)
	// Update advances the peripheral to simulated time now and reports
	// whether any state or output pin changed.
	Update(now time.Duration) bool
	// Reset performs a power-on reset.
	Reset()
}

// Transmitter is the outbound radio collaborator.
type Transmitter interface {
	Transmit(b RadioByte)
}

// Receiver accepts one inbound radio byte and returns the air time it
// consumed.
type Receiver interface {
	Receive(b RadioByte) time.Duration
}

// Modulation identifies the modulation of a RadioByte.
type Modulation uint8

const (
	ModulationNone Modulation = iota
	// ModulationOQPSK is the IEEE 802.15.4 2.4 GHz O-QPSK DSSS PHY.
	ModulationOQPSK
)

func (m Modulation) String() string {
	switch m {
	case ModulationOQPSK:
		return "O-QPSK"
	default:
		return "none"
	}
}

// RadioByte is one byte on the air.
type RadioByte struct {
	Data         byte
	FrequencyMHz float64
	Modulation   Modulation
	PowerDBm     float64
	// Start is the simulated time at which the first symbol leaves the
	// antenna.
	Start    time.Duration
	Duration time.Duration
	// SNR is filled in by the medium for inbound bytes.
	SNR float64
}

func (b RadioByte) String() string {
	return fmt.Sprintf("0x%02X @%.0fMHz %s %.1fdBm +%v", b.Data, b.FrequencyMHz, b.Modulation, b.PowerDBm, b.Duration)
}
