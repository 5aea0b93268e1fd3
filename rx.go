package cc2420

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// rxFrame is the context of the frame under reception.
type rxFrame struct {
	zeros   int // consecutive zero bytes seen while searching
	syncPos int // sync bytes matched so far

	started bool // length byte buffered
	start   int  // ring index of the length byte
	length  int
	count   int // MPDU bytes buffered
	header  []byte
	layout  AddressLayout
	fc      FrameControl
	decided bool // address recognition done
	accept  bool
	snr     float64
}

// carrier remembers the last inbound byte for RSSI sampling.
type carrier struct {
	on    bool
	dBm   float64
	until time.Duration
}

// pushTX appends a byte to the TX FIFO and refreshes nothing else: the TX
// FIFO has no output pins.
func (d *Device) pushTX(b byte) error {
	return d.tx.Push(b)
}

// popRX removes one byte from the RX FIFO on behalf of the SPI reader.
func (d *Device) popRX() (byte, error) {
	b, err := d.rx.Pop()
	d.updateRXPins()
	return b, err
}

// updateRXPins recomputes FIFO and FIFOP from the RX FIFO state.
func (d *Device) updateRXPins() {
	if d.state == StateRXOverflow {
		d.setSignal(PinFIFO, false)
		d.setSignal(PinFIFOP, true)
		return
	}
	avail := d.rx.Available()
	d.setSignal(PinFIFO, avail > 0)

	if len(d.rx.frames) > 0 {
		d.setSignal(PinFIFOP, true)
		return
	}
	// Bytes of a frame whose address has not been accepted yet do not count
	// towards the threshold.
	if d.state == StateRXFrame && d.rxf.started && d.regs.mdmctrl0().adrDecode() && !d.rxf.accept {
		pending := d.rx.distance(d.rxf.start, d.rx.write)
		if d.rx.distance(d.rx.read, d.rxf.start) < avail {
			avail -= pending
			if avail < 0 {
				avail = 0
			}
		}
	}
	d.setSignal(PinFIFOP, avail > d.regs.iocfg0().fifopThreshold())
}

// rxDrop discards a partially received frame and any SACK armed for it.
func (d *Device) rxDrop() {
	d.sack, d.sackPending = false, false
	if d.state != StateRXFrame || !d.rxf.started {
		return
	}
	d.rx.rewind(d.rxf.start)
	d.rxf = rxFrame{}
	d.updateRXPins()
}

// Receive delivers one inbound byte from the medium. It returns the air time
// the byte occupies.
func (d *Device) Receive(b RadioByte) time.Duration {
	dur := b.Duration
	if dur <= 0 {
		dur = d.byteTime
	}
	if math.Abs(b.FrequencyMHz-d.regs.frequencyMHz()) >= 0.5 {
		return dur
	}
	d.air = carrier{on: true, dBm: b.PowerDBm, until: d.now + dur}
	if !d.state.receiving() {
		return dur
	}
	if b.PowerDBm < d.cfg.SensitivityDBm {
		return dur
	}
	if b.Modulation != ModulationOQPSK {
		return dur
	}

	switch d.state {
	case StateRXSFDSearch:
		d.syncSearch(b.Data)
	case StateRXFrame:
		d.rxf.snr = b.SNR
		d.carrierTimer.arm(d.now + 4*d.byteTime)
		d.rxFrameByte(b.Data)
	}
	return dur
}

// syncSearch looks for the preamble and the non-zero part of the sync word.
func (d *Device) syncSearch(b byte) {
	sync := d.regs.syncBytes()
	tail := sync[:]
	lead := 0
	for len(tail) > 0 && tail[0] == 0 {
		tail = tail[1:]
		lead++
	}
	f := &d.rxf

	if f.syncPos > 0 {
		if b == tail[f.syncPos] {
			f.syncPos++
			if f.syncPos == len(tail) {
				d.syncFound()
			}
			return
		}
		f.syncPos = 0
		f.zeros = 0
	}

	if b == 0 {
		f.zeros++
		if len(tail) == 0 && f.zeros >= d.cfg.MinPreambleZeros+lead {
			d.syncFound()
		}
		return
	}
	if len(tail) > 0 && f.zeros >= d.cfg.MinPreambleZeros+lead && b == tail[0] {
		f.syncPos = 1
		if len(tail) == 1 {
			d.syncFound()
		}
		return
	}
	f.zeros = 0
}

func (d *Device) syncFound() {
	d.rxf = rxFrame{}
	d.transitionTo(StateRXFrame)
	d.carrierTimer.arm(d.now + 4*d.byteTime)
	d.updateCCA()
}

// rxFrameByte buffers one byte after the sync word.
func (d *Device) rxFrameByte(b byte) {
	f := &d.rxf
	if !f.started {
		f.started = true
		f.start = d.rx.write
		f.length = int(b & 0x7F)
		if err := d.rx.Push(byte(f.length)); err != nil {
			d.rxOverflow()
			return
		}
		d.updateRXPins()
		if f.length == 0 {
			d.rxComplete()
		}
		return
	}

	if err := d.rx.Push(b); err != nil {
		d.rxOverflow()
		return
	}
	f.count++
	if !f.decided {
		f.header = append(f.header, b)
		d.recognize(false)
	}
	if f.count == f.length {
		d.rxComplete()
		return
	}
	d.updateRXPins()
}

func (d *Device) rxOverflow() {
	d.warn(fmt.Sprintf("rx: %v", ErrFIFOOverflow))
	d.rxf = rxFrame{}
	d.sack, d.sackPending = false, false
	d.transitionTo(StateRXOverflow)
}

// recognize runs address recognition once the addressing fields are
// buffered. final forces a decision at the end of the frame.
func (d *Device) recognize(final bool) {
	f := &d.rxf
	m := d.regs.mdmctrl0()
	if len(f.header) < 2 {
		if final {
			f.decided, f.accept = true, !m.adrDecode()
		}
		return
	}
	if len(f.header) == 2 {
		f.fc = FrameControl(binary.LittleEndian.Uint16(f.header))
		f.layout = Layout(f.fc)
	}
	if !m.adrDecode() {
		if len(f.header) >= 3 || final {
			f.decided, f.accept = true, true
		}
		return
	}
	if t := f.fc.Type(); t == FrameAck || t.reserved() {
		f.decided = true
		f.accept = t == FrameAck || m.reservedFrames()
		return
	}
	need := recognitionLen(f.fc, f.layout)
	if len(f.header) < need && !final {
		return
	}
	f.decided = true
	f.accept = len(f.header) >= need && d.addressMatch(f.fc, f.layout, f.header)
	if !f.accept {
		d.debug(fmt.Sprintf("rx: address recognition rejected %s frame", f.fc.Type()))
	}
}

// recognitionLen is the number of MPDU bytes address recognition needs:
// up to the destination address, or up to the source PAN when the frame
// has no destination.
func recognitionLen(fc FrameControl, l AddressLayout) int {
	if fc.Type() != FrameBeacon && l.DstAddr >= 0 {
		return l.DstAddr + l.DstLen
	}
	if l.SrcPAN >= 0 {
		return l.SrcPAN + 2
	}
	return l.HeaderLen
}

// localAddresses reads PANID, SHORTADR and IEEEADR from RAM.
func (d *Device) localAddresses() (pan, short uint16, ieee uint64) {
	pan = binary.LittleEndian.Uint16(d.ram[RAMPANID:])
	short = binary.LittleEndian.Uint16(d.ram[RAMShortAdr:])
	ieee = binary.LittleEndian.Uint64(d.ram[RAMIEEEAddr:])
	return pan, short, ieee
}

// addressMatch applies the IEEE 802.15.4 third level filtering rules.
func (d *Device) addressMatch(fc FrameControl, l AddressLayout, h []byte) bool {
	m := d.regs.mdmctrl0()
	pan, short, ieee := d.localAddresses()

	switch t := fc.Type(); {
	case t.reserved():
		return m.reservedFrames()
	case t == FrameAck:
		return true
	case t == FrameBeacon:
		if l.SrcPAN < 0 {
			return false
		}
		src := binary.LittleEndian.Uint16(h[l.SrcPAN:])
		return d.regs.iocfg0().beaconAccept() || src == pan
	}

	if l.DstPAN >= 0 {
		dstPAN := binary.LittleEndian.Uint16(h[l.DstPAN:])
		if dstPAN != BroadcastPAN && dstPAN != pan {
			return false
		}
		switch fc.DstMode() {
		case AddrModeShort:
			dst := binary.LittleEndian.Uint16(h[l.DstAddr:])
			return dst == 0xFFFF || dst == short
		case AddrModeLong:
			return binary.LittleEndian.Uint64(h[l.DstAddr:]) == ieee
		}
		return false
	}

	// No destination: only a PAN coordinator accepts frames from its PAN.
	if !m.panCoordinator() || l.SrcPAN < 0 {
		return false
	}
	return binary.LittleEndian.Uint16(h[l.SrcPAN:]) == pan
}

// rxComplete validates a fully buffered frame.
func (d *Device) rxComplete() {
	f := d.rxf
	m := d.regs.mdmctrl0()
	d.carrierTimer.disarm()

	if !f.decided {
		d.rxf.header = f.header
		d.recognize(true)
		f = d.rxf
	}

	if m.autoCRC() {
		buf, err := d.rx.getBuffer(d.rx.index(f.start, 1), f.length)
		if err != nil || !CheckFCS(buf) {
			d.debug(fmt.Sprintf("rx: bad fcs, %d byte frame dropped", f.length))
			d.rxReject(f)
			return
		}
	}
	if m.adrDecode() && !f.accept {
		d.rxReject(f)
		return
	}

	if m.autoCRC() && f.length >= 2 {
		rssi := byte(d.regs.rssiValue())
		d.rx.patch(d.rx.index(f.start, f.length-1), rssi)
		d.rx.patch(d.rx.index(f.start, f.length), 0x80|correlation(f.snr))
	}
	d.rx.frames = append(d.rx.frames, frameBounds{Start: f.start, End: d.rx.index(f.start, f.length)})
	d.info(fmt.Sprintf("rx: %d byte %s frame seq %d", f.length, f.fc.Type(), seqOf(f)))

	ack := d.sack
	pending := d.sackPending
	if m.autoAck() && m.autoCRC() && m.adrDecode() && f.fc.AckRequest() && f.fc.Type() != FrameAck {
		ack = true
	}
	d.sack, d.sackPending = false, false
	if ack && f.fc.Type() != FrameAck {
		d.ackSeq = seqOf(f)
		d.ackPending = pending
		d.transitionTo(StateTXAckCalibrate)
		d.updateRXPins()
		return
	}
	d.transitionTo(StateRXSFDSearch)
	d.updateRXPins()
}

func (d *Device) rxReject(f rxFrame) {
	d.sack, d.sackPending = false, false
	d.rx.rewind(f.start)
	d.transitionTo(StateRXSFDSearch)
	d.updateRXPins()
}

func seqOf(f rxFrame) byte {
	if len(f.header) >= 3 {
		return f.header[2]
	}
	return 0
}
