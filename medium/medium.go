// Package medium is an in-memory radio channel connecting emulated
// transceivers. Each byte a port transmits reaches every other port at the
// end of its air time, attenuated by the link loss between the two.
package medium

import (
	"errors"
	"fmt"
	"sort"
	"time"

	cc2420 "github.com/michcald/cc2420sim"
)

var (
	ErrPkg       = errors.New("medium")
	ErrDuplicate = errors.New("port name already attached")
	ErrUnknown   = errors.New("unknown port")
)

// Radio is a transceiver that can be attached to the air.
type Radio interface {
	cc2420.Receiver
	SetTransmitter(t cc2420.Transmitter)
}

// Config configures the air.
type Config struct {
	// PathLossDB is the attenuation of links without an explicit SetLoss.
	// Defaults to 40 if not provided.
	PathLossDB float64
	// NoiseFloorDBm is the noise power the SNR is computed against.
	// Defaults to -100 if not provided.
	NoiseFloorDBm float64
	// Logger receives delivery traces at debug level.
	// Defaults to the global logger if not provided.
	Logger cc2420.Logger
}

type delivery struct {
	from *Port
	b    cc2420.RadioByte
	at   time.Duration
	seq  uint64
}

// Air is the shared channel. It is not safe for concurrent use; the
// machine that owns the devices drives it through Update.
type Air struct {
	cfg     Config
	log     cc2420.Logger
	ports   []*Port
	loss    map[[2]string]float64
	pending []delivery
	seq     uint64
	now     time.Duration
	monitor func(from string, b cc2420.RadioByte)
}

// New returns an empty air.
func New(c Config) *Air {
	if c.PathLossDB == 0 {
		c.PathLossDB = 40
	}
	if c.NoiseFloorDBm == 0 {
		c.NoiseFloorDBm = -100
	}
	if c.Logger == nil {
		c.Logger = cc2420.DefaultLogger()
	}
	return &Air{cfg: c, log: c.Logger, loss: make(map[[2]string]float64)}
}

// Port is one antenna on the air. It implements cc2420.Transmitter.
type Port struct {
	name  string
	air   *Air
	radio Radio
	sent  int
	recvd int
}

var _ cc2420.Transmitter = (*Port)(nil)

// Attach connects r to the air under name and installs the returned port as
// its transmitter.
func (a *Air) Attach(name string, r Radio) (*Port, error) {
	if a.port(name) != nil {
		return nil, fmt.Errorf("%w: %w: %s", ErrPkg, ErrDuplicate, name)
	}
	p := &Port{name: name, air: a, radio: r}
	a.ports = append(a.ports, p)
	r.SetTransmitter(p)
	return p, nil
}

// Detach disconnects a port. Bytes it already sent are still delivered.
func (a *Air) Detach(name string) error {
	for i, p := range a.ports {
		if p.name == name {
			p.radio.SetTransmitter(nil)
			a.ports = append(a.ports[:i], a.ports[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %w: %s", ErrPkg, ErrUnknown, name)
}

func (a *Air) port(name string) *Port {
	for _, p := range a.ports {
		if p.name == name {
			return p
		}
	}
	return nil
}

func linkKey(x, y string) [2]string {
	if x > y {
		x, y = y, x
	}
	return [2]string{x, y}
}

// SetLoss sets the attenuation between two ports, in both directions.
func (a *Air) SetLoss(x, y string, dB float64) {
	a.loss[linkKey(x, y)] = dB
}

// Loss returns the attenuation between two ports.
func (a *Air) Loss(x, y string) float64 {
	if l, ok := a.loss[linkKey(x, y)]; ok {
		return l
	}
	return a.cfg.PathLossDB
}

// Monitor installs fn to observe every transmitted byte.
func (a *Air) Monitor(fn func(from string, b cc2420.RadioByte)) {
	a.monitor = fn
}

// Pending returns the number of bytes in flight.
func (a *Air) Pending() int { return len(a.pending) }

// NextDeadline returns when the next byte in flight lands.
func (a *Air) NextDeadline() (time.Duration, bool) {
	if len(a.pending) == 0 {
		return 0, false
	}
	return a.pending[0].at, true
}

// Transmit implements cc2420.Transmitter.
func (p *Port) Transmit(b cc2420.RadioByte) {
	a := p.air
	p.sent++
	if a.monitor != nil {
		a.monitor(p.name, b)
	}
	a.seq++
	d := delivery{from: p, b: b, at: b.Start + b.Duration, seq: a.seq}
	i := sort.Search(len(a.pending), func(i int) bool {
		q := a.pending[i]
		return q.at > d.at || q.at == d.at && q.seq > d.seq
	})
	a.pending = append(a.pending, delivery{})
	copy(a.pending[i+1:], a.pending[i:])
	a.pending[i] = d
}

// Name returns the port name.
func (p *Port) Name() string { return p.name }

// Stats returns the number of bytes sent and received through the port.
func (p *Port) Stats() (sent, received int) { return p.sent, p.recvd }

// Update delivers every byte whose air time ended at or before now. It
// reports whether anything was delivered.
func (a *Air) Update(now time.Duration) bool {
	a.now = now
	n := 0
	for n < len(a.pending) && a.pending[n].at <= now {
		a.deliver(a.pending[n])
		n++
	}
	if n == 0 {
		return false
	}
	a.pending = append(a.pending[:0], a.pending[n:]...)
	return true
}

func (a *Air) deliver(d delivery) {
	for _, p := range a.ports {
		if p == d.from {
			continue
		}
		b := d.b
		b.PowerDBm -= a.Loss(d.from.name, p.name)
		b.SNR = b.PowerDBm - a.cfg.NoiseFloorDBm
		a.log.Debug(fmt.Sprintf("air: %s -> %s %s", d.from.name, p.name, b))
		p.recvd++
		p.radio.Receive(b)
	}
}
