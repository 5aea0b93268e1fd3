//go:build !tinygo

package cc2420

import (
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// MaxSPIClock is the fastest SCLK the chip supports.
const MaxSPIClock = 10 * physic.MegaHertz

// Bus exposes an emulated device as a periph.io SPI port, so drivers
// written against spi.Conn talk to it unchanged. Transfers are
// instantaneous in simulated time.
type Bus struct {
	dev    *Device
	name   string
	limit  physic.Frequency
	freq   physic.Frequency
	closed bool
}

var (
	_ spi.PortCloser = (*Bus)(nil)
	_ spi.Conn       = (*Bus)(nil)
)

// NewBus returns an SPI port wired to d.
func NewBus(name string, d *Device) *Bus {
	return &Bus{dev: d, name: name, limit: MaxSPIClock}
}

func (b *Bus) String() string { return fmt.Sprintf("%s(%s)", b.name, b.dev.cfg.Name) }

// Connect implements spi.Port. Only mode 0 with 8 bit words is supported.
func (b *Bus) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if b.closed {
		return nil, fmt.Errorf("%w: %s is closed", ErrPkg, b.name)
	}
	if mode != spi.Mode0 {
		return nil, fmt.Errorf("%w: mode %v", ErrBusMode, mode)
	}
	if bits != 8 {
		return nil, fmt.Errorf("%w: %d bits per word", ErrBusMode, bits)
	}
	if f > b.limit {
		f = b.limit
	}
	b.freq = f
	return b, nil
}

// LimitSpeed implements spi.PortCloser.
func (b *Bus) LimitSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("%w: invalid speed %s", ErrPkg, f)
	}
	if f > MaxSPIClock {
		f = MaxSPIClock
	}
	b.limit = f
	return nil
}

// Close implements io.Closer.
func (b *Bus) Close() error {
	b.closed = true
	return nil
}

// Duplex implements conn.Conn.
func (b *Bus) Duplex() conn.Duplex { return conn.Full }

// Halt implements conn.Resource. Any open transaction is aborted.
func (b *Bus) Halt() error {
	b.dev.Write(PinCSn, PinCSn)
	return nil
}

// Tx implements conn.Conn: CSn is held low for the whole of w.
func (b *Bus) Tx(w, r []byte) error {
	return b.TxPackets([]spi.Packet{{W: w, R: r}})
}

// TxPackets implements spi.Conn. CSn is raised after each packet unless
// the packet sets KeepCS.
func (b *Bus) TxPackets(pkts []spi.Packet) error {
	if b.closed {
		return fmt.Errorf("%w: %s is closed", ErrPkg, b.name)
	}
	for i := range pkts {
		p := &pkts[i]
		if p.BitsPerWord != 0 && p.BitsPerWord != 8 {
			return fmt.Errorf("%w: %d bits per word", ErrBusMode, p.BitsPerWord)
		}
		if len(p.R) != 0 && len(p.R) < len(p.W) {
			return fmt.Errorf("%w: read buffer %d < write buffer %d", ErrShortBuffer, len(p.R), len(p.W))
		}
		b.dev.Write(PinCSn, 0)
		for j, w := range p.W {
			b.dev.Write(PinData, Pin(w))
			if len(p.R) != 0 {
				_, v := b.dev.Read(PinData)
				p.R[j] = byte(v & PinData)
			}
		}
		if !p.KeepCS {
			b.dev.Write(PinCSn, PinCSn)
		}
	}
	return nil
}

// Register makes d available to spireg.Open under name.
func Register(name string, d *Device) error {
	return spireg.Register(name, nil, -1, func() (spi.PortCloser, error) {
		return NewBus(name, d), nil
	})
}

// Unregister removes a port added with Register.
func Unregister(name string) error {
	return spireg.Unregister(name)
}
