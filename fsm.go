package cc2420

import (
	"fmt"
	"time"
)

// State is the chip's main FSM state.
type State uint8

const (
	StatePowerDown State = iota
	StateVregStarting
	StateXoscStarting
	StateReset
	StateIdle
	StateRXCalibrate
	StateRXSFDSearch
	StateRXFrame
	StateRXOverflow
	StateTXCalibrate
	StateTXPreamble
	StateTXFrame
	StateTXUnderflow
	StateTXAckCalibrate
	StateTXAckPreamble
	StateTXAck

	numStates
)

var stateInfo = [numStates]struct {
	name   string
	number uint16 // FSMSTATE mirror value
	access AccessClass
}{
	StatePowerDown:      {"POWER_DOWN", 0, AccessNone},
	StateVregStarting:   {"VREG_STARTING", 0, AccessNone},
	StateXoscStarting:   {"XOSC_STARTING", 0, AccessRegisters},
	StateReset:          {"RESET", 0, AccessMainOnly},
	StateIdle:           {"IDLE", 1, AccessAll},
	StateRXCalibrate:    {"RX_CALIBRATE", 2, AccessAll},
	StateRXSFDSearch:    {"RX_SFD_SEARCH", 3, AccessAll},
	StateRXFrame:        {"RX_FRAME", 16, AccessAll},
	StateRXOverflow:     {"RX_OVERFLOW", 17, AccessAll},
	StateTXCalibrate:    {"TX_CALIBRATE", 32, AccessAll},
	StateTXPreamble:     {"TX_PREAMBLE", 34, AccessAll},
	StateTXFrame:        {"TX_FRAME", 37, AccessAll},
	StateTXUnderflow:    {"TX_UNDERFLOW", 56, AccessAll},
	StateTXAckCalibrate: {"TX_ACK_CALIBRATE", 48, AccessAll},
	StateTXAckPreamble:  {"TX_ACK_PREAMBLE", 49, AccessAll},
	StateTXAck:          {"TX_ACK", 52, AccessAll},
}

func (s State) String() string {
	if s >= numStates {
		return fmt.Sprintf("State(%d)", uint8(s))
	}
	return stateInfo[s].name
}

// Access returns the memory access class permitted in this state.
func (s State) Access() AccessClass {
	if s >= numStates {
		return AccessNone
	}
	return stateInfo[s].access
}

func (s State) receiving() bool {
	switch s {
	case StateRXCalibrate, StateRXSFDSearch, StateRXFrame, StateRXOverflow:
		return true
	}
	return false
}

func (s State) transmitting() bool {
	switch s {
	case StateTXCalibrate, StateTXPreamble, StateTXFrame, StateTXUnderflow,
		StateTXAckCalibrate, StateTXAckPreamble, StateTXAck:
		return true
	}
	return false
}

// timer is an absolute simulated-time deadline.
type timer struct {
	at    time.Duration
	armed bool
}

func (t *timer) arm(at time.Duration) {
	t.at = at
	t.armed = true
}

func (t *timer) disarm() { t.armed = false }

func (t *timer) due(now time.Duration) bool { return t.armed && t.at <= now }

// event identifies which timer fires next. Lower values win ties.
type event uint8

const (
	evNone event = iota
	evFSM
	evRSSIValid
	evByte
	evSample
	evCarrierLost
)

func (d *Device) timerFor(ev event) *timer {
	switch ev {
	case evFSM:
		return &d.fsmTimer
	case evRSSIValid:
		return &d.rssiTimer
	case evByte:
		return &d.byteTimer
	case evSample:
		return &d.sampleTimer
	case evCarrierLost:
		return &d.carrierTimer
	}
	return nil
}

func (d *Device) nextEvent() (event, time.Duration) {
	best, at := evNone, time.Duration(0)
	for ev := evFSM; ev <= evCarrierLost; ev++ {
		t := d.timerFor(ev)
		if !t.armed {
			continue
		}
		if best == evNone || t.at < at {
			best, at = ev, t.at
		}
	}
	return best, at
}

func (d *Device) fire(ev event) {
	d.timerFor(ev).disarm()
	switch ev {
	case evFSM:
		d.onFSMTimer()
	case evRSSIValid:
		d.rssiValid = true
		d.publishRSSI()
		if d.state == StateRXCalibrate && d.lock {
			d.transitionTo(StateRXSFDSearch)
		}
	case evByte:
		d.onByteTimer()
	case evSample:
		d.sampleRSSI()
		if d.state.receiving() {
			d.sampleTimer.arm(d.now + d.symbol)
		}
	case evCarrierLost:
		if d.state == StateRXFrame {
			d.warn("rx: carrier lost mid-frame, dropping partial frame")
			d.rxDrop()
			d.transitionTo(StateRXSFDSearch)
		}
	}
}

// onFSMTimer handles the timed exit of the current state.
func (d *Device) onFSMTimer() {
	switch d.state {
	case StateVregStarting:
		d.transitionTo(StateXoscStarting)
	case StateXoscStarting:
		d.transitionTo(StateIdle)
	case StateRXCalibrate:
		d.lock = true
		if d.rssiValid {
			d.transitionTo(StateRXSFDSearch)
		}
	case StateTXCalibrate:
		d.lock = true
		if d.calibrateOnly {
			d.calibrateOnly = false
			d.txActive = false
			d.transitionTo(StateIdle)
			d.lock = true
			return
		}
		d.transitionTo(StateTXPreamble)
	case StateTXAckCalibrate:
		d.lock = true
		d.transitionTo(StateTXAckPreamble)
	}
}

// pllLockTime is the RX/TX turnaround, 12 or 8 symbol periods depending on
// TXCTRL.TX_TURNAROUND.
func (d *Device) pllLockTime() time.Duration {
	if d.regs.txctrl().longTurnaround() {
		return 12 * d.symbol
	}
	return 8 * d.symbol
}

// transitionTo enters state s and performs its entry side effects.
func (d *Device) transitionTo(s State) {
	prev := d.state
	d.state = s
	d.dirty = true
	d.regs.set(RegFSMSTATE, stateInfo[s].number)
	if prev != s {
		d.debug(fmt.Sprintf("fsm: %s -> %s at %v", prev, s, d.now))
	}

	if !s.receiving() {
		d.sampleTimer.disarm()
		d.carrierTimer.disarm()
	}
	if !s.transmitting() {
		d.byteTimer.disarm()
	}

	switch s {
	case StatePowerDown:
		d.fsmTimer.disarm()
		d.rssiTimer.disarm()
		d.xoscStable = false
		d.lock = false
		d.rssiValid = false
		d.txActive = false
		d.calibrateOnly = false
		d.setCCA(false)
		d.setSignal(PinSFD, false)

	case StateVregStarting:
		d.fsmTimer.arm(d.now + d.cfg.VregStartup)

	case StateXoscStarting:
		d.xoscStable = false
		d.fsmTimer.arm(d.now + d.cfg.XoscStartup)

	case StateReset:
		d.fsmTimer.disarm()
		d.rssiTimer.disarm()
		d.xoscStable = false
		d.lock = false
		d.rssiValid = false
		d.txActive = false
		d.txUnderflow = false
		d.tx.flush()
		d.rx.flush()
		d.rxf = rxFrame{}
		d.setCCA(false)
		d.setSignal(PinSFD, false)
		d.updateRXPins()

	case StateIdle:
		d.fsmTimer.disarm()
		d.rssiTimer.disarm()
		d.xoscStable = true
		d.lock = false
		d.rssiValid = false
		d.txActive = false
		d.rxf = rxFrame{}
		d.setCCA(false)
		d.setSignal(PinSFD, false)

	case StateRXCalibrate:
		d.txActive = false
		d.lock = false
		d.rssiValid = false
		d.rssi.clear()
		d.setCCA(false)
		d.setSignal(PinSFD, false)
		d.fsmTimer.arm(d.now + d.pllLockTime())
		d.rssiTimer.arm(d.now + 8*d.symbol)
		d.sampleTimer.arm(d.now + d.symbol)

	case StateRXSFDSearch:
		d.fsmTimer.disarm()
		d.rxf = rxFrame{}
		d.setSignal(PinSFD, false)
		if !d.sampleTimer.armed {
			d.sampleTimer.arm(d.now + d.symbol)
		}

	case StateRXFrame:
		d.setSignal(PinSFD, true)

	case StateRXOverflow:
		d.setSignal(PinSFD, false)
		d.updateRXPins()

	case StateTXCalibrate:
		d.txActive = true
		d.lock = false
		d.rssiValid = false
		d.rssiTimer.disarm()
		d.setCCA(false)
		d.setSignal(PinSFD, false)
		d.fsmTimer.arm(d.now + d.pllLockTime())

	case StateTXPreamble, StateTXAckPreamble:
		d.txs = txState{seq: d.preambleSequence()}
		d.byteTimer.arm(d.now)

	case StateTXFrame:
		d.txs = txState{}
		d.tx.rewind()
		d.setSignal(PinSFD, true)

	case StateTXAck:
		d.txs = txState{seq: d.ackFrame()}
		d.setSignal(PinSFD, true)

	case StateTXUnderflow:
		d.txUnderflow = true
		d.setSignal(PinSFD, false)
		d.warn("tx: txfifo underflow, aborting frame")
		d.transitionTo(StateRXCalibrate)

	case StateTXAckCalibrate:
		d.txActive = true
		d.lock = false
		d.rssiValid = false
		d.rssiTimer.disarm()
		d.setCCA(false)
		d.setSignal(PinSFD, false)
		d.fsmTimer.arm(d.now + 12*d.symbol)
	}
}

// powerOn handles a rising edge on VREG_EN.
func (d *Device) powerOn() {
	if d.state != StatePowerDown {
		return
	}
	d.transitionTo(StateVregStarting)
}

// powerOff handles a falling edge on VREG_EN: register and RAM contents are
// lost.
func (d *Device) powerOff() {
	d.regs.reset()
	clear(d.ram[:])
	d.tx.flush()
	d.rx.flush()
	d.rxf = rxFrame{}
	d.txUnderflow = false
	d.transitionTo(StatePowerDown)
	d.updateRXPins()
}

// enterReset is driven by RESETn low or MAIN.RESETn cleared.
func (d *Device) enterReset() {
	if d.state == StatePowerDown || d.state == StateVregStarting || d.state == StateReset {
		return
	}
	d.transitionTo(StateReset)
}

// leaveReset reloads the datasheet defaults and restarts the crystal.
func (d *Device) leaveReset() {
	if d.state != StateReset {
		return
	}
	d.regs.reset()
	d.preambleLen = d.regs.mdmctrl0().preambleBytes()
	d.refreshOutputs()
	d.transitionTo(StateXoscStarting)
}
