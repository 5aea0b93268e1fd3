//go:build tinygo

package driver

import (
	"machine"

	"periph.io/x/conn/v3/gpio"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin machine.Pin
}

func (p *tinygoPin) Out(l gpio.Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

func (p *tinygoPin) In(pull gpio.Pull, _ gpio.Edge) error {
	mode := machine.PinInput
	switch pull {
	case gpio.PullUp:
		mode = machine.PinInputPullup
	case gpio.PullDown:
		mode = machine.PinInputPulldown
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *tinygoPin) Read() gpio.Level {
	return gpio.Level(p.pin.Get())
}

func (p *tinygoPin) Watch(edge gpio.Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case gpio.RisingEdge:
		change = machine.PinRising
	case gpio.FallingEdge:
		change = machine.PinFalling
	case gpio.BothEdges:
		change = machine.PinToggle
	default:
		return nil
	}
	return p.pin.SetInterrupt(change, func(machine.Pin) {
		handler()
	})
}

func (p *tinygoPin) Unwatch() error {
	return p.pin.SetInterrupt(0, nil)
}

// tinygoSPI wraps a machine.SPI to satisfy the SPI interface.
type tinygoSPI struct {
	spi *machine.SPI
	cs  machine.Pin
}

func (s *tinygoSPI) Tx(w, r []byte) error {
	s.cs.Low()
	err := s.spi.Tx(w, r)
	s.cs.High()
	return err
}

// TinyGoPins lists the CC2420 lines wired to the microcontroller. Use
// machine.NoPin for lines that are not connected.
type TinyGoPins struct {
	CS, FIFOP, SFD, CCA, VREG, RESET machine.Pin
}

// NewTinyGo creates a new CC2420 driver for TinyGo systems.
func NewTinyGo(c RadioConfig, spi *machine.SPI, pins TinyGoPins) (*Device, error) {
	// Configure CS pin as output and set high (inactive)
	pins.CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pins.CS.High()

	wrap := func(p machine.Pin) Pin {
		if p == machine.NoPin {
			return nil
		}
		return &tinygoPin{pin: p}
	}

	hw := HardwareConfig{
		RadioConfig: c,
		FIFOP:       wrap(pins.FIFOP),
		SFD:         wrap(pins.SFD),
		CCA:         wrap(pins.CCA),
		VREG:        wrap(pins.VREG),
		RESET:       wrap(pins.RESET),
	}
	return NewWithHardware(hw, &tinygoSPI{spi: spi, cs: pins.CS})
}
