package cc2420

import "strings"

// Pin is a bitmask over the chip's logical wires. Bits 0..7 carry the SPI
// data byte: SI on Write, SO on Read.
type Pin uint32

const (
	PinData   Pin = 0xFF
	PinCSn    Pin = 1 << 8
	PinVREGEN Pin = 1 << 9
	PinRESETn Pin = 1 << 10
	PinFIFO   Pin = 1 << 11
	PinFIFOP  Pin = 1 << 12
	PinCCA    Pin = 1 << 13
	PinSFD    Pin = 1 << 14

	InputPins  = PinData | PinCSn | PinVREGEN | PinRESETn
	OutputPins = PinData | PinFIFO | PinFIFOP | PinCCA | PinSFD
)

var pinNames = []struct {
	pin  Pin
	name string
}{
	{PinCSn, "CSn"}, {PinVREGEN, "VREG_EN"}, {PinRESETn, "RESETn"},
	{PinFIFO, "FIFO"}, {PinFIFOP, "FIFOP"}, {PinCCA, "CCA"}, {PinSFD, "SFD"},
}

func (p Pin) String() string {
	var parts []string
	if p&PinData != 0 {
		parts = append(parts, "DATA")
	}
	for _, n := range pinNames {
		if p&n.pin != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// pinBank holds the wire levels. outputs are the externally visible levels
// (polarity applied); signals are the active-high internal conditions.
type pinBank struct {
	inputs  Pin
	signals Pin
	outputs Pin
	changed Pin
}

func (b *pinBank) reset() {
	// CSn and RESETn idle high, everything else low.
	b.inputs = PinCSn | PinRESETn
	b.signals = 0
	b.outputs = 0
	b.changed = 0
}

func (b *pinBank) input(p Pin) bool { return b.inputs&p != 0 }

// setSignal drives an output pin. It reports whether the visible level
// changed.
func (d *Device) setSignal(p Pin, on bool) bool {
	if on {
		d.pins.signals |= p
	} else {
		d.pins.signals &^= p
	}
	return d.refreshPin(p)
}

func (d *Device) refreshPin(p Pin) bool {
	level := d.pins.signals&p != 0
	if d.regs.iocfg0().inverted(p) {
		level = !level
	}
	was := d.pins.outputs&p != 0
	if level == was {
		return false
	}
	if level {
		d.pins.outputs |= p
	} else {
		d.pins.outputs &^= p
	}
	d.pins.changed |= p
	d.dirty = true
	return true
}

func (d *Device) refreshOutputs() {
	for _, p := range []Pin{PinFIFO, PinFIFOP, PinCCA, PinSFD} {
		d.refreshPin(p)
	}
}

// setSO latches the byte shifted out on SO.
func (d *Device) setSO(b byte) {
	d.pins.outputs = d.pins.outputs&^PinData | Pin(b)
	d.pins.changed |= PinData
}

// Level returns the current visible level of a single pin without clearing
// its changed flag.
func (d *Device) Level(p Pin) bool {
	if p&InputPins&^PinData != 0 {
		return d.pins.inputs&p != 0
	}
	return d.pins.outputs&p != 0
}
