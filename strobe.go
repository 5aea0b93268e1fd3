package cc2420

import "fmt"

var strobeNames = [strobeMax + 1]string{
	"SNOP", "SXOSCON", "STXCAL", "SRXON", "STXON", "STXONCCA", "SRFOFF",
	"SXOSCOFF", "SFLUSHRX", "SFLUSHTX", "SACK", "SACKPEND", "SRXDEC",
	"STXENC", "SAES",
}

// StrobeName returns the datasheet name of a command strobe.
func StrobeName(s byte) string {
	if s > strobeMax {
		return fmt.Sprintf("0x%02X", s)
	}
	return strobeNames[s]
}

type strobeSet uint16

func strobes(s ...byte) strobeSet {
	var set strobeSet
	for _, b := range s {
		set |= 1 << b
	}
	return set
}

func (s strobeSet) has(b byte) bool { return b <= strobeMax && s&(1<<b) != 0 }

var (
	rxStrobes = strobes(StrobeSNOP, StrobeSRXON, StrobeSTXON, StrobeSTXONCCA,
		StrobeSRFOFF, StrobeSFLUSHRX, StrobeSFLUSHTX, StrobeSXOSCOFF)
	txStrobes = strobes(StrobeSNOP, StrobeSRFOFF, StrobeSRXON, StrobeSFLUSHRX,
		StrobeSFLUSHTX, StrobeSXOSCOFF)
	ackStrobes = strobes(StrobeSNOP, StrobeSRFOFF, StrobeSFLUSHRX, StrobeSXOSCOFF)
)

// strobeWhitelist lists the command strobes each state accepts.
var strobeWhitelist = [numStates]strobeSet{
	StatePowerDown:    strobes(StrobeSNOP, StrobeSXOSCON),
	StateVregStarting: strobes(StrobeSNOP),
	StateXoscStarting: strobes(StrobeSNOP),
	StateReset:        strobes(StrobeSNOP),
	StateIdle: strobes(StrobeSNOP, StrobeSRXON, StrobeSTXON, StrobeSTXONCCA,
		StrobeSRFOFF, StrobeSXOSCOFF, StrobeSFLUSHTX, StrobeSFLUSHRX,
		StrobeSTXCAL, StrobeSRXDEC, StrobeSTXENC, StrobeSAES),
	StateRXCalibrate:    rxStrobes,
	StateRXSFDSearch:    rxStrobes | strobes(StrobeSACK, StrobeSACKPEND),
	StateRXFrame:        rxStrobes | strobes(StrobeSACK, StrobeSACKPEND),
	StateRXOverflow:     strobes(StrobeSNOP, StrobeSFLUSHRX, StrobeSRFOFF, StrobeSTXON, StrobeSFLUSHTX, StrobeSXOSCOFF),
	StateTXCalibrate:    txStrobes,
	StateTXPreamble:     txStrobes,
	StateTXFrame:        txStrobes,
	StateTXUnderflow:    strobes(StrobeSNOP, StrobeSFLUSHTX, StrobeSRFOFF, StrobeSRXON),
	StateTXAckCalibrate: ackStrobes,
	StateTXAckPreamble:  ackStrobes,
	StateTXAck:          ackStrobes,
}

// strobe executes a command strobe. Strobes outside the current state's
// whitelist are soft errors and leave the device untouched.
func (d *Device) strobe(s byte) {
	if !strobeWhitelist[d.state].has(s) ||
		(s == StrobeSXOSCON && !d.pins.input(PinVREGEN)) {
		d.softError(ErrStrobeRejected, fmt.Sprintf("%s in %s", StrobeName(s), d.state))
		return
	}
	if s != StrobeSNOP {
		d.debug(fmt.Sprintf("strobe %s in %s", StrobeName(s), d.state))
	}

	switch s {
	case StrobeSNOP:
	case StrobeSXOSCON:
		d.transitionTo(StateXoscStarting)
	case StrobeSTXCAL:
		d.calibrateOnly = true
		d.transitionTo(StateTXCalibrate)
	case StrobeSRXON:
		d.rxDrop()
		d.transitionTo(StateRXCalibrate)
	case StrobeSTXON:
		d.rxDrop()
		d.transitionTo(StateTXCalibrate)
	case StrobeSTXONCCA:
		if !d.cca {
			d.debug("strobe STXONCCA ignored: channel not clear")
			return
		}
		d.rxDrop()
		d.transitionTo(StateTXCalibrate)
	case StrobeSRFOFF:
		d.rxDrop()
		d.transitionTo(StateIdle)
	case StrobeSXOSCOFF:
		d.rxDrop()
		d.transitionTo(StatePowerDown)
	case StrobeSFLUSHRX:
		d.flushRX()
	case StrobeSFLUSHTX:
		d.tx.flush()
		d.txUnderflow = false
	case StrobeSACK, StrobeSACKPEND:
		d.sack = true
		d.sackPending = s == StrobeSACKPEND
	case StrobeSRXDEC, StrobeSTXENC, StrobeSAES:
		// In-line security is not modelled; the strobes complete at once.
	}
}

// flushRX empties the RX FIFO and restarts frame search if receiving.
func (d *Device) flushRX() {
	d.rx.flush()
	d.rxf = rxFrame{}
	switch d.state {
	case StateRXFrame, StateRXOverflow:
		d.transitionTo(StateRXSFDSearch)
	}
	d.updateRXPins()
}
