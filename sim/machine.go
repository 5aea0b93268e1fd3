// Package sim owns simulated time for a set of emulated peripherals and
// exposes their wires to drivers as GPIO pins.
package sim

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	cc2420 "github.com/michcald/cc2420sim"
)

// DefaultStep is one IEEE 802.15.4 symbol at 2.4 GHz.
const DefaultStep = 16 * time.Microsecond

// Updater is anything advanced by the machine clock.
type Updater interface {
	Update(now time.Duration) bool
}

// Machine steps every attached unit through simulated time. Pin watch
// callbacks run synchronously at the end of each step. It is not safe for
// concurrent use.
type Machine struct {
	now   time.Duration
	step  time.Duration
	units []Updater
	chips []*chip
}

type chip struct {
	dev     cc2420.Peripheral
	levels  cc2420.Pin
	watches []*watch
}

type watch struct {
	pin  cc2420.Pin
	edge gpio.Edge
	fn   func()
}

// New returns a machine at time zero advancing in steps of step.
// A zero step means DefaultStep.
func New(step time.Duration) *Machine {
	if step <= 0 {
		step = DefaultStep
	}
	return &Machine{step: step}
}

// Add attaches u. Units are updated in the order they were added.
func (m *Machine) Add(u Updater) {
	m.units = append(m.units, u)
	if p, ok := u.(cc2420.Peripheral); ok {
		m.chip(p)
	}
}

func (m *Machine) chip(p cc2420.Peripheral) *chip {
	for _, c := range m.chips {
		if c.dev == p {
			return c
		}
	}
	_, levels := p.Read(cc2420.OutputPins &^ cc2420.PinData)
	c := &chip{dev: p, levels: levels}
	m.chips = append(m.chips, c)
	return c
}

// Now returns the simulated time.
func (m *Machine) Now() time.Duration { return m.now }

// Advance moves simulated time forward by d.
func (m *Machine) Advance(d time.Duration) {
	end := m.now + d
	for m.now < end {
		next := m.now + m.step
		if next > end {
			next = end
		}
		m.now = next
		for _, u := range m.units {
			u.Update(m.now)
		}
		m.dispatch()
	}
}

// Sleep advances simulated time, so a Machine can be used as a driver
// clock.
func (m *Machine) Sleep(d time.Duration) { m.Advance(d) }

// RunUntil advances step by step until cond holds or limit has elapsed.
// It reports whether cond was met.
func (m *Machine) RunUntil(cond func() bool, limit time.Duration) bool {
	end := m.now + limit
	for !cond() {
		if m.now >= end {
			return false
		}
		m.Advance(m.step)
	}
	return true
}

func (m *Machine) dispatch() {
	for _, c := range m.chips {
		mask := cc2420.OutputPins &^ cc2420.PinData
		changed, value := c.dev.Read(mask)
		diff := changed | (value^c.levels)&mask
		prev := c.levels
		c.levels = value
		for _, w := range c.watches {
			if diff&w.pin == 0 {
				continue
			}
			was, is := prev&w.pin != 0, value&w.pin != 0
			rising, falling := !was && is, was && !is
			if was == is {
				// Pulse shorter than a step.
				rising, falling = true, true
			}
			switch {
			case w.edge == gpio.BothEdges && (rising || falling),
				w.edge == gpio.RisingEdge && rising,
				w.edge == gpio.FallingEdge && falling:
				w.fn()
			}
		}
	}
}

// Pin returns the wire p of peripheral dev as a GPIO pin.
func (m *Machine) Pin(dev cc2420.Peripheral, p cc2420.Pin) *Pin {
	return &Pin{c: m.chip(dev), pin: p}
}

// Wiring is the set of control wires a CC2420 driver uses.
type Wiring struct {
	FIFOP, SFD, CCA, VREG, RESET *Pin
}

// Wire returns the control wires of dev.
func (m *Machine) Wire(dev cc2420.Peripheral) Wiring {
	return Wiring{
		FIFOP: m.Pin(dev, cc2420.PinFIFOP),
		SFD:   m.Pin(dev, cc2420.PinSFD),
		CCA:   m.Pin(dev, cc2420.PinCCA),
		VREG:  m.Pin(dev, cc2420.PinVREGEN),
		RESET: m.Pin(dev, cc2420.PinRESETn),
	}
}

// Pin is one wire of an emulated peripheral seen from the host side.
// Input wires of the chip can be driven with Out, output wires can be read
// and watched.
type Pin struct {
	c     *chip
	pin   cc2420.Pin
	watch *watch
}

func (p *Pin) String() string { return p.pin.String() }

// Out drives an input wire of the chip.
func (p *Pin) Out(l gpio.Level) error {
	if p.pin&cc2420.InputPins&^cc2420.PinData == 0 {
		return fmt.Errorf("sim: %s is not a chip input", p.pin)
	}
	var v cc2420.Pin
	if l == gpio.High {
		v = p.pin
	}
	p.c.dev.Write(p.pin, v)
	return nil
}

// In is accepted for any wire; pulls have no effect on emulated outputs.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error { return nil }

// leveler is implemented by peripherals that expose pin levels without
// consuming their changed flags.
type leveler interface {
	Level(p cc2420.Pin) bool
}

// Read returns the current level of the wire. It leaves the changed flags
// for the next step's edge dispatch.
func (p *Pin) Read() gpio.Level {
	if l, ok := p.c.dev.(leveler); ok {
		return gpio.Level(l.Level(p.pin))
	}
	return gpio.Level(p.c.levels&p.pin != 0)
}

// Watch calls handler from Machine.Advance whenever the wire shows edge.
func (p *Pin) Watch(edge gpio.Edge, handler func()) error {
	if p.pin&cc2420.OutputPins&^cc2420.PinData == 0 {
		return fmt.Errorf("sim: %s is not a chip output", p.pin)
	}
	p.Unwatch()
	p.watch = &watch{pin: p.pin, edge: edge, fn: handler}
	p.c.watches = append(p.c.watches, p.watch)
	return nil
}

// Unwatch removes the handler installed by Watch.
func (p *Pin) Unwatch() error {
	if p.watch == nil {
		return nil
	}
	for i, w := range p.c.watches {
		if w == p.watch {
			p.c.watches = append(p.c.watches[:i], p.c.watches[i+1:]...)
			break
		}
	}
	p.watch = nil
	return nil
}
