//go:build !tinygo

package driver

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// realPin wraps a gpio.PinIO to satisfy the Pin interface.
type realPin struct {
	gpio.PinIO
	stopWatch chan struct{}
}

func (p *realPin) Watch(edge gpio.Edge, handler func()) error {
	// Ensure we are in input mode with the correct edge detection
	if err := p.PinIO.In(gpio.Float, edge); err != nil {
		return err
	}

	stop := make(chan struct{})
	p.stopWatch = stop

	go func() {
		for {
			// Wait for edge with -1 (infinite timeout)
			edged := p.PinIO.WaitForEdge(-1)
			select {
			case <-stop:
				return
			default:
			}
			if edged {
				handler()
			}
		}
	}()
	return nil
}

func (p *realPin) Unwatch() error {
	if p.stopWatch != nil {
		close(p.stopWatch)
		p.stopWatch = nil
	}
	// Disable edge detection
	return p.PinIO.In(gpio.Float, gpio.NoEdge)
}

// Config holds the configuration for the Linux/periph.io driver.
type Config struct {
	RadioConfig
	// SpiBusPath is the path or name of the SPI port (e.g., "/dev/spidev0.0").
	// Any port registered with spireg works, including emulated ones.
	// Defaults to "/dev/spidev0.0" if not provided.
	SpiBusPath string
	// SpiClock is the SPI clock frequency.
	// Defaults to 1MHz if not provided.
	SpiClock physic.Frequency
	// FIFOPPin is the GPIO name of the FIFOP pin (e.g., "GPIO25").
	// Defaults to "GPIO25" if not provided.
	FIFOPPin string
	// SFDPin is the GPIO name of the SFD pin.
	// Optional.
	SFDPin string
	// CCAPin is the GPIO name of the CCA pin.
	// Optional.
	CCAPin string
	// VREGPin is the GPIO name of the VREG_EN pin.
	// Optional.
	VREGPin string
	// RESETPin is the GPIO name of the RESETn pin.
	// Optional.
	RESETPin string
}

func openPin(name string) (Pin, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to open pin %s", name)
	}
	return &realPin{PinIO: p}, nil
}

// New creates and initializes a new CC2420 driver for Linux systems.
// It applies configuration defaults, initializes the GPIO and SPI interfaces using periph.io,
// and configures the radio module.
// It returns the initialized driver or an error if hardware initialization fails.
func New(c Config) (*Device, error) {
	// 1. Initialize periph.io host (Required for both SPI and GPIO)
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}

	if c.SpiBusPath == "" {
		c.SpiBusPath = "/dev/spidev0.0"
	}
	p, err := spireg.Open(c.SpiBusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}

	if c.SpiClock == 0 {
		c.SpiClock = physic.MegaHertz
	}
	// Mode 0, 8 bits, MSB first
	conn, err := p.Connect(c.SpiClock, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create SPI connection: %w", err)
	}

	if c.FIFOPPin == "" {
		c.FIFOPPin = "GPIO25"
	}
	hw := HardwareConfig{RadioConfig: c.RadioConfig}
	pins := []struct {
		name string
		dst  *Pin
	}{
		{c.FIFOPPin, &hw.FIFOP},
		{c.SFDPin, &hw.SFD},
		{c.CCAPin, &hw.CCA},
		{c.VREGPin, &hw.VREG},
		{c.RESETPin, &hw.RESET},
	}
	for _, pin := range pins {
		if *pin.dst, err = openPin(pin.name); err != nil {
			p.Close()
			return nil, err
		}
	}

	dev, err := NewWithHardware(hw, conn)
	if err != nil {
		p.Close()
		return nil, err
	}

	// Store the port closer so we can close it later
	dev.port = p
	return dev, nil
}
