package driver

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"periph.io/x/conn/v3/gpio"

	cc2420 "github.com/michcald/cc2420sim"
)

var (
	ErrPkg         = errors.New("cc2420dev")
	ErrMaxRetries  = errors.New("max retransmissions reached")
	ErrTimeout     = errors.New("timeout waiting for device")
	ErrChannelBusy = errors.New("channel busy")
	ErrUnderflow   = errors.New("txfifo underflow")
)

// PALevel is the transmit power setting.
type PALevel byte

const (
	// PALevelMax represents an output power of 0dBm
	PALevelMax PALevel = iota
	// PALevelHigh represents an output power of -3dBm
	PALevelHigh
	// PALevelLow represents an output power of -10dBm
	PALevelLow
	// PALevelMin represents an output power of -25dBm
	PALevelMin
)

func (p PALevel) String() string {
	switch p {
	case PALevelMax:
		return "0dBm"
	case PALevelHigh:
		return "-3dBm"
	case PALevelLow:
		return "-10dBm"
	case PALevelMin:
		return "-25dBm"
	default:
		return "unknown"
	}
}

// paLevel returns the TXCTRL.PA_LEVEL field.
func (p PALevel) paLevel() uint16 {
	switch p {
	case PALevelHigh:
		return 23
	case PALevelLow:
		return 11
	case PALevelMin:
		return 3
	default:
		return 31
	}
}

// --- CC2420 register values ---

const (
	_MANFIDL_CC2420 = 0x233D

	// ADR_DECODE, AUTOCRC, CCA hysteresis 2, CCA mode 3, 3 leading zero bytes.
	_MDMCTRL0  = 0x0AE2
	_AUTOACK   = 1 << 4
	_IOCFG0    = 0x007F // FIFOP on complete frames only
	_SECCTRL0  = 0x01C4 // inline security off
	_TXCTRL    = 0xA0E0
	_FSCTRL    = 0x4000
	_FREQ_MASK = 0x03FF

	_FSM_RX_OVERFLOW = 17

	_CRC_OK    = 0x80
	_RSSI_OFFS = -45

	_MIN_CHANNEL = 11
	_MAX_CHANNEL = 26

	_MIN_FRAME_LEN = 5 // FCF, sequence number, FCS
	_MAX_FRAME_LEN = 127
)

const (
	pollInterval   = 16 * time.Microsecond
	vregDelay      = time.Millisecond
	resetPulse     = 10 * time.Microsecond
	xoscTimeout    = 2 * time.Millisecond
	rssiTimeout    = time.Millisecond
	txTimeout      = 10 * time.Millisecond
	backoffPeriod  = 320 * time.Microsecond
	maxCSMABackoff = 4

	// An RX FIFO of 128 bytes holds at most 21 minimal frames.
	maxFramesPerPoll = 32
)

type RadioConfig struct {
	// Channel is the IEEE 802.15.4 channel number, 11 to 26. The carrier is
	// 2405 + 5*(Channel-11) MHz.
	// Defaults to 11 if not provided.
	Channel byte
	// PANID is the personal area network this node belongs to.
	// Defaults to 0x2420 if not provided.
	PANID uint16
	// ShortAddr is the 16-bit address frames are sent from and accepted on.
	// Defaults to 0x0001 if not provided.
	ShortAddr uint16
	// IEEEAddr is the 64-bit extended address.
	// Optional.
	IEEEAddr uint64
	// EnableAutoAck makes the chip acknowledge frames requesting it and makes
	// Transmit wait for acknowledgements.
	// Defaults to false (disabled) if not provided.
	EnableAutoAck bool
	// PALevel sets the power amplifier level.
	// Defaults to PALevelMax if not provided.
	PALevel PALevel
	// MaxRetries is the number of retransmissions when no acknowledgement
	// arrives. Range: 0 to 15.
	// Defaults to 3 if not provided.
	MaxRetries byte
	// AckTimeout is how long Transmit waits for an acknowledgement after the
	// frame has left the antenna.
	// Defaults to 864us (54 symbols) if not provided.
	AckTimeout time.Duration
	// CCAThresholdDBm is the input power above which the channel is busy.
	// Defaults to -77 if not provided.
	CCAThresholdDBm int
	// Logger receives driver messages.
	// Defaults to the global logger if not provided.
	Logger cc2420.Logger
}

type HardwareConfig struct {
	RadioConfig
	// FIFOP is the frame-ready pin, used as interrupt line.
	FIFOP Pin
	// SFD is the start of frame delimiter pin.
	// Optional. If not provided, transmissions are tracked through the
	// status byte.
	SFD Pin
	// CCA is the clear channel assessment pin.
	// Optional. If not provided, RSSI is compared against the threshold.
	CCA Pin
	// VREG drives the voltage regulator enable.
	// Optional. If not provided, the regulator is assumed to be tied on.
	VREG Pin
	// RESET drives the active-low reset line.
	// Optional.
	RESET Pin
	// Clock provides the delays the driver waits on.
	// Defaults to the wall clock if not provided.
	Clock Clock
	// PollInterval is the wait between checks in ReceiveBlocking.
	// Defaults to 1ms if not provided.
	PollInterval time.Duration
}

// Packet is a received frame with its link quality.
type Packet struct {
	Frame cc2420.Frame
	// RSSI is the input power averaged over the first eight symbols, in dBm.
	RSSI int
	// LQI is the correlation value of the first eight symbols.
	LQI byte
}

type Device struct {
	config  HardwareConfig
	conn    SPI
	clock   Clock
	log     cc2420.Logger
	irqChan chan struct{}
	port    io.Closer
	mu      sync.Mutex
	seq     byte
	backlog []Packet
	scratch [1 + _MAX_FRAME_LEN + 1]byte // address byte + length byte + frame
}

// NewWithHardware creates and initializes a new CC2420 driver with the provided hardware interfaces.
func NewWithHardware(c HardwareConfig, conn SPI) (*Device, error) {
	if c.Channel == 0 {
		c.Channel = _MIN_CHANNEL
	}
	if c.Channel < _MIN_CHANNEL || c.Channel > _MAX_CHANNEL {
		return nil, fmt.Errorf("channel number must be between %d and %d", _MIN_CHANNEL, _MAX_CHANNEL)
	}
	if c.PANID == 0 {
		c.PANID = 0x2420
	}
	if c.ShortAddr == 0 {
		c.ShortAddr = 0x0001
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.MaxRetries > 15 {
		return nil, fmt.Errorf("MaxRetries must be between 0 and 15")
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = 864 * time.Microsecond
	}
	if c.CCAThresholdDBm == 0 {
		c.CCAThresholdDBm = -77
	}
	if c.PALevel > PALevelMin {
		return nil, fmt.Errorf("unknown PALevel %d", c.PALevel)
	}
	if c.Logger == nil {
		c.Logger = cc2420.DefaultLogger()
	}
	if c.Clock == nil {
		c.Clock = wallClock{}
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Millisecond
	}
	if c.FIFOP == nil {
		return nil, fmt.Errorf("FIFOP pin not configured")
	}

	dev := &Device{
		config: c,
		conn:   conn,
		clock:  c.Clock,
		log:    c.Logger,
	}

	dev.log.Info("Initializing CC2420 SPI communication...")

	for _, p := range []Pin{c.SFD, c.CCA} {
		if p != nil {
			p.In(gpio.Float, gpio.NoEdge)
		}
	}

	dev.config.FIFOP.In(gpio.Float, gpio.NoEdge)
	dev.irqChan = make(chan struct{}, 1)
	// Watch starts a goroutine that calls the handler on edge
	err := dev.config.FIFOP.Watch(gpio.RisingEdge, func() {
		select {
		case dev.irqChan <- struct{}{}:
		default:
			// Channel full
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch FIFOP pin: %w", err)
	}

	if err := dev.powerUp(); err != nil {
		dev.Close()
		return nil, err
	}

	dev.log.Info("CC2420 initialized and listening.")
	return dev, nil
}

func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fmt.Sprintf("CC2420(Channel=%d, PANID=0x%04X, ShortAddr=0x%04X, PALevel=%s, AutoAck=%v)",
		d.config.Channel,
		d.config.PANID,
		d.config.ShortAddr,
		d.config.PALevel,
		d.config.EnableAutoAck,
	)
}

// Close cleans up the resources used by the CC2420 driver.
// It powers down the radio, closes the SPI connection, and releases GPIO pins.
// This method is concurrent safe.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.powerDown()
	d.log.Info("CC2420 powered down.")

	if d.port != nil {
		if err := d.port.Close(); err != nil {
			d.log.Warn("Failed to close SPI port")
		}
		d.log.Info("SPI bus closed.")
	}

	if d.config.FIFOP != nil {
		d.config.FIFOP.Unwatch()
	}
	d.log.Info("GPIO interface closed.")

	return nil
}

// --- CC2420 Core Functions (SPI interaction) ---

func (d *Device) spiTransfer(n int) (status byte, response []byte) {
	// Full-duplex on the scratch buffer: the same slice is read and written.
	slice := d.scratch[:n]
	if err := d.conn.Tx(slice, slice); err != nil {
		d.log.Error("SPI Transfer Error: " + err.Error())
		return 0, nil
	}
	return d.scratch[0], d.scratch[1:n]
}

// strobe issues a command strobe and returns the status byte clocked out
// before it executed.
func (d *Device) strobe(s byte) byte {
	d.scratch[0] = s
	status, _ := d.spiTransfer(1)
	return status
}

func (d *Device) status() byte { return d.strobe(cc2420.StrobeSNOP) }

func (d *Device) writeRegister(reg byte, val uint16) {
	d.scratch[0] = reg
	d.scratch[1] = byte(val >> 8)
	d.scratch[2] = byte(val)
	d.spiTransfer(3)
}

func (d *Device) readRegister(reg byte) uint16 {
	d.scratch[0] = reg | cc2420.AddrRead
	d.scratch[1] = 0
	d.scratch[2] = 0
	_, data := d.spiTransfer(3)
	if len(data) < 2 {
		return 0
	}
	return uint16(data[0])<<8 | uint16(data[1])
}

func (d *Device) writeRAM(addr uint16, data []byte) {
	d.scratch[0] = cc2420.AddrRAM | byte(addr&0x7F)
	d.scratch[1] = byte(addr>>7) << cc2420.RAMBankShift
	copy(d.scratch[2:], data)
	d.spiTransfer(2 + len(data))
}

func (d *Device) writeTXFIFO(data []byte) {
	d.scratch[0] = cc2420.RegTXFIFO
	copy(d.scratch[1:], data)
	d.spiTransfer(1 + len(data))
}

// readRXFIFO pops n bytes. The returned slice aliases the scratch buffer.
func (d *Device) readRXFIFO(n int) []byte {
	d.scratch[0] = cc2420.RegRXFIFO | cc2420.AddrRead
	for i := 1; i <= n; i++ {
		d.scratch[i] = 0
	}
	_, data := d.spiTransfer(1 + n)
	return data
}

func (d *Device) flushTX() {
	d.strobe(cc2420.StrobeSFLUSHTX)
}

// flushRX discards the RX FIFO. The strobe is issued twice so a frame
// arriving during the first flush does not leave SFD detection stuck.
func (d *Device) flushRX() {
	d.strobe(cc2420.StrobeSFLUSHRX)
	d.strobe(cc2420.StrobeSFLUSHRX)
}

func (d *Device) startListening() {
	d.strobe(cc2420.StrobeSRXON)
}

// waitStatus polls the status byte until one of bits is set.
func (d *Device) waitStatus(bits byte, timeout time.Duration) error {
	for waited := time.Duration(0); ; waited += pollInterval {
		if d.status()&bits != 0 {
			return nil
		}
		if waited >= timeout {
			return fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
		}
		d.clock.Sleep(pollInterval)
	}
}

// waitPin polls p until it reads level.
func (d *Device) waitPin(p Pin, level gpio.Level, timeout time.Duration) error {
	for waited := time.Duration(0); ; waited += pollInterval {
		if p.Read() == level {
			return nil
		}
		if waited >= timeout {
			return fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
		}
		d.clock.Sleep(pollInterval)
	}
}

// --- CC2420 Configuration ---

func fsctrl(channel byte) uint16 {
	// f = 2048 + FREQ MHz
	return _FSCTRL | (357+5*uint16(channel-_MIN_CHANNEL))&_FREQ_MASK
}

func (d *Device) configure() error {
	c := &d.config

	if id := d.readRegister(cc2420.RegMANFIDL); id != _MANFIDL_CC2420 {
		return fmt.Errorf("unexpected chip id 0x%04X: check wiring/power", id)
	}

	mdm := uint16(_MDMCTRL0)
	if c.EnableAutoAck {
		mdm |= _AUTOACK
	}
	d.writeRegister(cc2420.RegMDMCTRL0, mdm)
	d.writeRegister(cc2420.RegIOCFG0, _IOCFG0)
	d.writeRegister(cc2420.RegSECCTRL0, _SECCTRL0)
	d.writeRegister(cc2420.RegRSSI, uint16(uint8(int8(c.CCAThresholdDBm-_RSSI_OFFS)))<<8)
	d.writeRegister(cc2420.RegTXCTRL, _TXCTRL|c.PALevel.paLevel())
	d.writeRegister(cc2420.RegFSCTRL, fsctrl(c.Channel))

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], c.IEEEAddr)
	d.writeRAM(cc2420.RAMIEEEAddr, buf[:8])
	binary.LittleEndian.PutUint16(buf[:], c.PANID)
	d.writeRAM(cc2420.RAMPANID, buf[:2])
	binary.LittleEndian.PutUint16(buf[:], c.ShortAddr)
	d.writeRAM(cc2420.RAMShortAdr, buf[:2])

	// Read back the channel to ensure SPI write/read is working
	if got := d.readRegister(cc2420.RegFSCTRL); got != fsctrl(c.Channel) {
		return fmt.Errorf("failed to verify CC2420 connection: check wiring/power")
	}
	return nil
}

// SetChannel changes the radio channel (frequency).
// channel must be between 11 and 26.
// This method is concurrent safe.
func (d *Device) SetChannel(channel byte) error {
	if channel < _MIN_CHANNEL || channel > _MAX_CHANNEL {
		return fmt.Errorf("channel number must be between %d and %d", _MIN_CHANNEL, _MAX_CHANNEL)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeRegister(cc2420.RegFSCTRL, fsctrl(channel))
	d.config.Channel = channel
	// Recalibrate on the new frequency.
	d.startListening()
	return nil
}

// SetPALevel changes the power amplifier level.
// This method is concurrent safe.
func (d *Device) SetPALevel(level PALevel) error {
	if level > PALevelMin {
		return fmt.Errorf("unknown PALevel %d", level)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writeRegister(cc2420.RegTXCTRL, _TXCTRL|level.paLevel())
	d.config.PALevel = level
	return nil
}

// RSSI returns the input power averaged over the last eight symbols.
// The radio must be listening.
// This method is concurrent safe.
func (d *Device) RSSI() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status()&cc2420.StatusRSSIValid == 0 {
		return 0, fmt.Errorf("%w: RSSI not valid, radio is not listening", ErrPkg)
	}
	return int(int8(d.readRegister(cc2420.RegRSSI))) + _RSSI_OFFS, nil
}

// IsClearChannel reports whether the channel is free for transmission.
// The radio must be listening.
// This method is concurrent safe.
func (d *Device) IsClearChannel() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status()&cc2420.StatusRSSIValid == 0 {
		return false, fmt.Errorf("%w: CCA not valid, radio is not listening", ErrPkg)
	}
	if d.config.CCA != nil {
		return d.config.CCA.Read() == gpio.High, nil
	}
	v := d.readRegister(cc2420.RegRSSI)
	return int8(v) < int8(v>>8), nil
}

// FlushTX clears the transmit FIFO buffer.
// This method is concurrent safe.
func (d *Device) FlushTX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushTX()
}

// FlushRX clears the receive FIFO buffer, including frames already read
// into the driver.
// This method is concurrent safe.
func (d *Device) FlushRX() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushRX()
	d.backlog = nil
}

// GetStatus returns the chip status byte.
// This is useful for debugging or polling the radio state.
// This method is concurrent safe.
func (d *Device) GetStatus() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status()
}

// --- CC2420 Power Management ---

func (d *Device) powerUp() error {
	if d.config.VREG != nil {
		d.config.VREG.Out(gpio.High)
		d.clock.Sleep(vregDelay)
	}
	if d.config.RESET != nil {
		d.config.RESET.Out(gpio.Low)
		d.clock.Sleep(resetPulse)
		d.config.RESET.Out(gpio.High)
	}

	// A reset or a fresh supply starts the crystal on its own.
	if d.waitStatus(cc2420.StatusXOSC16MStable, xoscTimeout) != nil {
		d.strobe(cc2420.StrobeSXOSCON)
		if err := d.waitStatus(cc2420.StatusXOSC16MStable, xoscTimeout); err != nil {
			return fmt.Errorf("crystal oscillator did not stabilize: %w", err)
		}
	}

	if err := d.configure(); err != nil {
		return err
	}
	d.flushTX()
	d.flushRX()
	d.startListening()
	return nil
}

func (d *Device) powerDown() {
	d.strobe(cc2420.StrobeSRFOFF)
	d.strobe(cc2420.StrobeSXOSCOFF)
	if d.config.VREG != nil {
		d.config.VREG.Out(gpio.Low)
	}
}

// PowerDown puts the CC2420 into Power Down mode. With a VREG pin the
// regulator is switched off as well and the configuration is lost.
// This method is concurrent safe.
func (d *Device) PowerDown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.powerDown()
}

// PowerUp wakes the CC2420, restores the configuration and starts
// listening.
// This method is concurrent safe.
func (d *Device) PowerUp() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerUp()
}

// --- CC2420 Read/Write ---

func (d *Device) frameReady() bool {
	return d.config.FIFOP.Read() == gpio.High
}

// readFrame pops one frame from the RX FIFO. Frames failing the CRC check
// or decoding are consumed and dropped.
func (d *Device) readFrame() (Packet, bool) {
	if d.readRegister(cc2420.RegFSMSTATE) == _FSM_RX_OVERFLOW {
		d.log.Warn("RX FIFO overflow, flushing")
		d.flushRX()
		return Packet{}, false
	}

	head := d.readRXFIFO(1)
	if len(head) == 0 {
		return Packet{}, false
	}
	n := int(head[0] & 0x7F)
	if n < _MIN_FRAME_LEN {
		// Nothing sensible can follow a bad length byte.
		d.flushRX()
		return Packet{}, false
	}

	data := d.readRXFIFO(n)
	if len(data) < n {
		return Packet{}, false
	}
	rssi := int(int8(data[n-2])) + _RSSI_OFFS
	corr := data[n-1]
	if corr&_CRC_OK == 0 {
		d.log.Debug("dropping frame with bad CRC")
		return Packet{}, false
	}
	f, err := cc2420.ParseFrame(data[:n-2])
	if err != nil {
		d.log.Warn("dropping undecodable frame: " + err.Error())
		return Packet{}, false
	}
	return Packet{Frame: f, RSSI: rssi, LQI: corr &^ _CRC_OK}, true
}

// send runs one CSMA attempt sequence and waits for the frame to leave
// the antenna.
func (d *Device) send() error {
	if err := d.waitStatus(cc2420.StatusRSSIValid, rssiTimeout); err != nil {
		return err
	}
	b := &backoff.Backoff{
		Min:    backoffPeriod,
		Max:    backoffPeriod << maxCSMABackoff,
		Factor: 2,
		Jitter: true,
	}
	for try := 0; try <= maxCSMABackoff; try++ {
		d.strobe(cc2420.StrobeSTXONCCA)
		if d.status()&cc2420.StatusTXActive != 0 {
			return d.waitTransmitted()
		}
		d.clock.Sleep(b.Duration())
	}
	return fmt.Errorf("%w: %w", ErrPkg, ErrChannelBusy)
}

func (d *Device) waitTransmitted() error {
	if sfd := d.config.SFD; sfd != nil {
		if err := d.waitPin(sfd, gpio.High, txTimeout); err != nil {
			return err
		}
		if err := d.waitPin(sfd, gpio.Low, txTimeout); err != nil {
			return err
		}
	}
	for waited := time.Duration(0); ; waited += pollInterval {
		status := d.status()
		if status&cc2420.StatusTXUnderflow != 0 {
			d.flushTX()
			return fmt.Errorf("%w: %w", ErrPkg, ErrUnderflow)
		}
		if status&cc2420.StatusTXActive == 0 {
			return nil
		}
		if waited >= txTimeout {
			return fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
		}
		d.clock.Sleep(pollInterval)
	}
}

// waitAck collects frames until the acknowledgement for seq arrives or
// the ack timeout expires. Other frames are kept for Receive.
func (d *Device) waitAck(seq byte) bool {
	for waited := time.Duration(0); waited <= d.config.AckTimeout; waited += pollInterval {
		for i := 0; i < maxFramesPerPoll && d.frameReady(); i++ {
			p, ok := d.readFrame()
			if !ok {
				continue
			}
			if p.Frame.Control.Type() == cc2420.FrameAck {
				if p.Frame.Seq == seq {
					return true
				}
				continue
			}
			d.backlog = append(d.backlog, p)
		}
		d.clock.Sleep(pollInterval)
	}
	return false
}

func (d *Device) write(dst cc2420.Address, p []byte, noAck bool) error {
	ackReq := d.config.EnableAutoAck && !noAck && dst != cc2420.BroadcastAddress
	flags := cc2420.FCFIntraPAN
	if ackReq {
		flags |= cc2420.FCFAckRequest
	}
	d.seq++
	f := cc2420.Frame{
		Control: cc2420.NewFrameControl(cc2420.FrameData, dst.Mode, cc2420.AddrModeShort, flags),
		Seq:     d.seq,
		DstPAN:  d.config.PANID,
		Dst:     dst,
		SrcPAN:  d.config.PANID,
		Src:     cc2420.ShortAddress(d.config.ShortAddr),
		Payload: p,
	}
	mpdu, err := f.MarshalMPDU()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPkg, err)
	}

	d.flushTX()
	// The chip appends the FCS; the length byte accounts for it.
	d.writeTXFIFO(append([]byte{byte(len(mpdu) + 2)}, mpdu...))

	attempts := 1
	if ackReq {
		attempts += int(d.config.MaxRetries)
	}
	for i := 0; i < attempts; i++ {
		if err := d.send(); err != nil {
			return err
		}
		if !ackReq || d.waitAck(f.Seq) {
			return nil
		}
		d.log.Debug(fmt.Sprintf("no ack for seq %d (attempt %d/%d)", f.Seq, i+1, attempts))
	}
	return fmt.Errorf("%w: %w", ErrPkg, ErrMaxRetries)
}

// Transmit sends p as the payload of a data frame to dst on the
// configured PAN. With EnableAutoAck it requests an acknowledgement and
// retransmits until one arrives or MaxRetries is exhausted.
// This method is concurrent safe.
func (d *Device) Transmit(dst cc2420.Address, p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.write(dst, p, false); err != nil {
		d.startListening()
		return fmt.Errorf("failed to send data: %w", err)
	}
	return nil
}

// TransmitNoAck sends a data frame without requesting an acknowledgement,
// regardless of EnableAutoAck.
// This method is concurrent safe.
func (d *Device) TransmitNoAck(dst cc2420.Address, p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.write(dst, p, true); err != nil {
		d.startListening()
		return fmt.Errorf("failed to send data: %w", err)
	}
	return nil
}

// Receive tries to receive a frame from the CC2420.
// This method is non-blocking. Acknowledgement frames are consumed and
// never returned.
// This method is concurrent safe.
func (d *Device) Receive() (Packet, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.backlog) > 0 {
		p := d.backlog[0]
		d.backlog = d.backlog[1:]
		return p, true
	}
	for i := 0; i < maxFramesPerPoll && d.frameReady(); i++ {
		p, ok := d.readFrame()
		if ok && p.Frame.Control.Type() != cc2420.FrameAck {
			return p, true
		}
	}
	return Packet{}, false
}

// WaitForInterrupt blocks until FIFOP rises or the context is cancelled.
// It needs a clock that runs on its own; simulated machines should use
// ReceiveBlocking instead.
// This method is concurrent safe.
func (d *Device) WaitForInterrupt(ctx context.Context) error {
	if d.frameReady() {
		return nil
	}
	select {
	case <-d.irqChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveBlocking waits for a frame to arrive or for the context to be cancelled.
// Between checks it sleeps on the configured clock unless FIFOP fired.
// This method is concurrent safe.
func (d *Device) ReceiveBlocking(ctx context.Context) (Packet, error) {
	for {
		select {
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		default:
		}

		if p, ok := d.Receive(); ok {
			return p, nil
		}

		select {
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		case <-d.irqChan:
			// Frame may be ready
		default:
			d.clock.Sleep(d.config.PollInterval)
		}
	}
}

// Ping sends an empty data frame and reports whether it was acknowledged.
// This method is concurrent safe.
func (d *Device) Ping(_ context.Context, dst cc2420.Address) (bool, error) {
	if !d.config.EnableAutoAck {
		return false, fmt.Errorf("%w: Ping requires EnableAutoAck", ErrPkg)
	}
	err := d.Transmit(dst, nil)
	if err == nil {
		d.log.Info("Ping Success")
		return true, nil
	}
	if errors.Is(err, ErrMaxRetries) {
		d.log.Info("Ping Failed")
		return false, nil
	}
	return false, err
}
