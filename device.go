package cc2420

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Config configures an emulated transceiver.
type Config struct {
	// Name identifies the device in log messages.
	// Defaults to "cc2420" if not provided.
	Name string
	// Oscillator is the crystal frequency. A symbol lasts 256 periods.
	// Defaults to 16MHz if not provided.
	Oscillator physic.Frequency
	// VregStartup is the voltage regulator settle time.
	// Defaults to 600us if not provided.
	VregStartup time.Duration
	// XoscStartup is the crystal oscillator settle time.
	// Defaults to 860us if not provided.
	XoscStartup time.Duration
	// MinPreambleZeros is the number of zero bytes the receiver needs before
	// it looks for the sync word.
	// Defaults to 2 if not provided.
	MinPreambleZeros int
	// SensitivityDBm is the weakest input the demodulator decodes.
	// Defaults to -95 if not provided.
	SensitivityDBm float64
	// NoiseFloorDBm is the input power with no carrier present.
	// Defaults to -100 if not provided.
	NoiseFloorDBm float64
	// Logger receives soft errors and state transitions.
	// Defaults to the global logger if not provided.
	Logger Logger
	// Transmitter receives outbound bytes.
	// Optional. Without it transmitted bytes are dropped.
	Transmitter Transmitter
}

const maxEventsPerUpdate = 1 << 20

// Device is an emulated CC2420 transceiver. It is not safe for concurrent
// use: the owning machine serialises every call.
type Device struct {
	cfg Config
	log Logger

	regs registerFile
	ram  [ramSize]byte
	tx   txFIFO
	rx   rxFIFO
	pins pinBank
	spi  spiCursor

	state    State
	now      time.Duration
	symbol   time.Duration
	byteTime time.Duration

	fsmTimer     timer
	rssiTimer    timer
	byteTimer    timer
	sampleTimer  timer
	carrierTimer timer

	xoscStable    bool
	lock          bool
	rssiValid     bool
	txActive      bool
	txUnderflow   bool
	calibrateOnly bool
	cca           bool
	ccaBusy       bool

	preambleLen int
	rssi        rssiFilter
	air         carrier
	rxf         rxFrame
	txs         txState

	sack        bool
	sackPending bool
	ackSeq      byte
	ackPending  bool

	noTxLogged bool
	dirty      bool
}

var _ Peripheral = (*Device)(nil)
var _ Receiver = (*Device)(nil)

// New creates a transceiver in Power-Down with datasheet register defaults.
func New(c Config) (*Device, error) {
	if c.Name == "" {
		c.Name = "cc2420"
	}
	if c.Oscillator == 0 {
		c.Oscillator = 16 * physic.MegaHertz
	}
	if c.Oscillator < physic.Hertz*256 {
		return nil, fmt.Errorf("%w: oscillator %s too slow", ErrPkg, c.Oscillator)
	}
	if c.VregStartup == 0 {
		c.VregStartup = 600 * time.Microsecond
	}
	if c.XoscStartup == 0 {
		c.XoscStartup = 860 * time.Microsecond
	}
	if c.MinPreambleZeros == 0 {
		c.MinPreambleZeros = 2
	}
	if c.MinPreambleZeros < 0 {
		return nil, fmt.Errorf("%w: MinPreambleZeros must not be negative", ErrPkg)
	}
	if c.SensitivityDBm == 0 {
		c.SensitivityDBm = -95
	}
	if c.NoiseFloorDBm == 0 {
		c.NoiseFloorDBm = -100
	}
	if c.Logger == nil {
		c.Logger = globalLogger
	}

	d := &Device{cfg: c, log: c.Logger}
	d.symbol = time.Second * 256 / time.Duration(c.Oscillator/physic.Hertz)
	d.byteTime = 2 * d.symbol
	d.tx = txFIFO{buf: d.ram[ramTXFIFO : ramTXFIFO+fifoSize]}
	d.tx.autoCRC = func() bool { return d.regs.mdmctrl0().autoCRC() }
	d.rx = rxFIFO{buf: d.ram[ramRXFIFO : ramRXFIFO+fifoSize]}
	d.Reset()
	d.info(fmt.Sprintf("created, symbol %v, byte %v", d.symbol, d.byteTime))
	return d, nil
}

// Reset performs a power-on reset: registers, RAM, FIFOs and pins return to
// their defaults and the FSM enters Power-Down. Simulated time is kept.
func (d *Device) Reset() {
	d.regs.reset()
	clear(d.ram[:])
	d.tx.flush()
	d.rx.flush()
	d.pins.reset()
	d.spi = spiCursor{}
	d.fsmTimer.disarm()
	d.rssiTimer.disarm()
	d.byteTimer.disarm()
	d.sampleTimer.disarm()
	d.carrierTimer.disarm()
	d.xoscStable = false
	d.lock = false
	d.rssiValid = false
	d.txActive = false
	d.txUnderflow = false
	d.calibrateOnly = false
	d.cca = false
	d.ccaBusy = false
	d.preambleLen = d.regs.mdmctrl0().preambleBytes()
	d.rssi.clear()
	d.air = carrier{}
	d.rxf = rxFrame{}
	d.txs = txState{}
	d.sack, d.sackPending = false, false
	d.ackSeq, d.ackPending = 0, false
	d.state = StatePowerDown
	d.regs.set(RegFSMSTATE, stateInfo[StatePowerDown].number)
	d.refreshOutputs()
	d.pins.changed = 0
	d.dirty = true
}

// State returns the current FSM state.
func (d *Device) State() State { return d.state }

// Now returns the simulated time of the last Update.
func (d *Device) Now() time.Duration { return d.now }

// Status returns the status byte as it would be clocked out on SO.
func (d *Device) Status() byte { return d.status() }

func (d *Device) String() string {
	return fmt.Sprintf("%s(state=%s, freq=%.0fMHz)", d.cfg.Name, d.state, d.regs.frequencyMHz())
}

// SetTransmitter attaches the outbound radio collaborator.
func (d *Device) SetTransmitter(t Transmitter) {
	d.cfg.Transmitter = t
	d.noTxLogged = false
}

// Read implements Peripheral.
func (d *Device) Read(mask Pin) (changed, value Pin) {
	changed = d.pins.changed & mask
	d.pins.changed &^= mask
	value = (d.pins.outputs | d.pins.inputs&^PinData) & mask
	return changed, value
}

// Write implements Peripheral. Control pins are applied before the data
// byte, except a rising CSn which ends the transaction after it.
func (d *Device) Write(mask, value Pin) {
	prev := d.pins.inputs
	next := prev&^(mask&InputPins&^PinData) | value&mask&InputPins&^PinData
	rose := next &^ prev
	fell := prev &^ next
	d.pins.inputs = next

	if fell&PinVREGEN != 0 {
		d.info("VREG_EN low, powering down")
		d.powerOff()
	}
	if rose&PinVREGEN != 0 {
		d.powerOn()
	}
	if fell&PinRESETn != 0 {
		d.enterReset()
	}
	if rose&PinRESETn != 0 && d.regs.get(RegMAIN)&mainResetN != 0 {
		d.leaveReset()
	}
	if fell&PinCSn != 0 {
		d.endTransaction()
	}

	if mask&PinData != 0 {
		if d.pins.input(PinCSn) && rose&PinCSn == 0 {
			d.softError(ErrBusIdle, fmt.Sprintf("byte 0x%02X", byte(value)))
		} else {
			d.setSO(d.spiByte(byte(value & PinData)))
		}
	}

	if rose&PinCSn != 0 {
		d.endTransaction()
	}
}

// Update implements Peripheral. Timers due at or before now fire in time
// order.
func (d *Device) Update(now time.Duration) bool {
	for i := 0; ; i++ {
		ev, at := d.nextEvent()
		if ev == evNone || at > now {
			break
		}
		if i == maxEventsPerUpdate {
			d.logError(fmt.Sprintf("update: more than %d events before %v, giving up", maxEventsPerUpdate, now))
			break
		}
		if at > d.now {
			d.now = at
		}
		d.fire(ev)
	}
	if now > d.now {
		d.now = now
	}
	changed := d.dirty
	d.dirty = false
	return changed
}

// NextDeadline returns the earliest armed timer, for callers that skip idle
// time.
func (d *Device) NextDeadline() (time.Duration, bool) {
	ev, at := d.nextEvent()
	return at, ev != evNone
}

func (d *Device) debug(msg string)    { d.log.Debug(d.cfg.Name + ": " + msg) }
func (d *Device) info(msg string)     { d.log.Info(d.cfg.Name + ": " + msg) }
func (d *Device) warn(msg string)     { d.log.Warn(d.cfg.Name + ": " + msg) }
func (d *Device) logError(msg string) { d.log.Error(d.cfg.Name + ": " + msg) }

// softError logs a protocol violation. The operation has already been
// dropped by the caller.
func (d *Device) softError(err error, detail string) {
	d.warn(fmt.Errorf("%w: %s", err, detail).Error())
}

// configError logs a configuration or internal error.
func (d *Device) configError(err error, detail string) {
	d.logError(fmt.Errorf("%w: %s", err, detail).Error())
}
