package cc2420

import (
	"fmt"
	"time"
)

// Timer is the persisted form of an internal deadline.
type Timer struct {
	At    time.Duration `json:"at"`
	Armed bool          `json:"armed"`
}

// Snapshot is the persisted state of a device: the raw register and RAM
// images plus the FSM and FIFO bookkeeping needed to resume. A frame in
// flight is not captured; restoring resumes in the enclosing search or
// calibration state.
type Snapshot struct {
	Registers []uint16      `json:"registers"`
	RAM       []byte        `json:"ram"`
	State     string        `json:"state"`
	Now       time.Duration `json:"now"`

	FSMTimer    Timer `json:"fsmTimer"`
	RSSITimer   Timer `json:"rssiTimer"`
	SampleTimer Timer `json:"sampleTimer"`

	TXRead  int           `json:"txRead"`
	TXWrite int           `json:"txWrite"`
	TXNeed  int           `json:"txNeeded"`
	RXRead  int           `json:"rxRead"`
	RXWrite int           `json:"rxWrite"`
	Frames  []frameBounds `json:"frames,omitempty"`

	Inputs  uint32 `json:"inputs"`
	Signals uint32 `json:"signals"`

	XOSCStable  bool `json:"xoscStable"`
	Lock        bool `json:"lock"`
	RSSIValid   bool `json:"rssiValid"`
	TXActive    bool `json:"txActive"`
	TXUnderflow bool `json:"txUnderflow"`
	CCABusy     bool `json:"ccaBusy"`

	// CalibrateOnly marks a TX calibration started by STXCAL, which ends in
	// Idle instead of transmitting.
	CalibrateOnly bool `json:"calibrateOnly,omitempty"`
}

func exportTimer(t timer) Timer { return Timer{At: t.at, Armed: t.armed} }
func importTimer(t Timer) timer { return timer{at: t.At, armed: t.Armed} }

// Snapshot captures the device state.
func (d *Device) Snapshot() Snapshot {
	rx := d.rx
	if d.state == StateRXFrame && d.rxf.started {
		rx.rewind(d.rxf.start)
	}
	s := Snapshot{
		Registers:   append([]uint16(nil), d.regs[:]...),
		RAM:         append([]byte(nil), d.ram[:]...),
		State:       d.state.String(),
		Now:         d.now,
		FSMTimer:    exportTimer(d.fsmTimer),
		RSSITimer:   exportTimer(d.rssiTimer),
		SampleTimer: exportTimer(d.sampleTimer),
		TXRead:      d.tx.read,
		TXWrite:     d.tx.write,
		TXNeed:      d.tx.needed,
		RXRead:      rx.read,
		RXWrite:     rx.write,
		Frames:      append([]frameBounds(nil), d.rx.frames...),
		Inputs:      uint32(d.pins.inputs),
		Signals:     uint32(d.pins.signals),
		XOSCStable:  d.xoscStable,
		Lock:        d.lock,
		RSSIValid:   d.rssiValid,
		TXActive:    d.txActive,
		TXUnderflow: d.txUnderflow,
		CCABusy:     d.ccaBusy,

		CalibrateOnly: d.calibrateOnly,
	}
	return s
}

func parseState(name string) (State, bool) {
	for s := State(0); s < numStates; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

func checkCursor(name string, v, limit int) error {
	if v < 0 || v >= limit {
		return fmt.Errorf("%w: %s %d out of range", ErrBadSnapshot, name, v)
	}
	return nil
}

// Restore replaces the device state with s. The device is left untouched
// when s does not fit its layout.
func (d *Device) Restore(s Snapshot) error {
	if len(s.Registers) != regCount {
		return fmt.Errorf("%w: %d registers, want %d", ErrBadSnapshot, len(s.Registers), regCount)
	}
	if len(s.RAM) != ramSize {
		return fmt.Errorf("%w: %d ram bytes, want %d", ErrBadSnapshot, len(s.RAM), ramSize)
	}
	state, ok := parseState(s.State)
	if !ok {
		return fmt.Errorf("%w: unknown state %q", ErrBadSnapshot, s.State)
	}
	for _, c := range []struct {
		name     string
		v, limit int
	}{
		{"txRead", s.TXRead, fifoSize + 1},
		{"txWrite", s.TXWrite, fifoSize + 1},
		{"txNeeded", s.TXNeed, fifoSize + 1},
		{"rxRead", s.RXRead, fifoSize},
		{"rxWrite", s.RXWrite, fifoSize},
	} {
		if err := checkCursor(c.name, c.v, c.limit); err != nil {
			return err
		}
	}
	for _, f := range s.Frames {
		if err := checkCursor("frame start", f.Start, fifoSize); err != nil {
			return err
		}
		if err := checkCursor("frame end", f.End, fifoSize); err != nil {
			return err
		}
	}

	copy(d.regs[:], s.Registers)
	copy(d.ram[:], s.RAM)
	d.now = s.Now
	d.spi = spiCursor{}
	d.tx.read, d.tx.write, d.tx.needed = s.TXRead, s.TXWrite, s.TXNeed
	d.rx.read, d.rx.write = s.RXRead, s.RXWrite
	d.rx.frames = append([]frameBounds(nil), s.Frames...)
	d.pins.inputs = Pin(s.Inputs) & InputPins &^ PinData
	d.pins.signals = Pin(s.Signals) & OutputPins &^ PinData
	d.xoscStable = s.XOSCStable
	d.lock = s.Lock
	d.rssiValid = s.RSSIValid
	d.txActive = s.TXActive
	d.txUnderflow = s.TXUnderflow
	d.ccaBusy = s.CCABusy
	d.calibrateOnly = s.CalibrateOnly && state == StateTXCalibrate
	d.cca = d.pins.signals&PinCCA != 0
	d.preambleLen = d.regs.mdmctrl0().preambleBytes()
	d.rssi.clear()
	d.air = carrier{}
	d.rxf = rxFrame{}
	d.txs = txState{}
	d.sack, d.sackPending = false, false
	d.fsmTimer = importTimer(s.FSMTimer)
	d.rssiTimer = importTimer(s.RSSITimer)
	d.sampleTimer = importTimer(s.SampleTimer)
	d.byteTimer.disarm()
	d.carrierTimer.disarm()
	d.state = state

	switch state {
	case StateRXFrame:
		d.transitionTo(StateRXSFDSearch)
	case StateTXPreamble, StateTXFrame, StateTXUnderflow:
		d.transitionTo(StateTXCalibrate)
	case StateTXAckCalibrate, StateTXAckPreamble, StateTXAck:
		d.transitionTo(StateRXCalibrate)
	}
	d.refreshOutputs()
	d.updateRXPins()
	d.dirty = true
	return nil
}
