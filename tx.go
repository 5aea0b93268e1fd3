package cc2420

import (
	"fmt"
	"time"
)

// txState tracks the byte stream of the current transmission.
type txState struct {
	seq  []byte // preamble and sync, or the acknowledgement frame
	pos  int
	sent int // frame bytes sent, length byte included
	fcs  [2]byte
}

// preambleSequence returns the zero preamble followed by the sync word as
// modulated.
func (d *Device) preambleSequence() []byte {
	sync := d.regs.syncBytes()
	seq := make([]byte, d.preambleLen, d.preambleLen+len(sync))
	return append(seq, sync[:]...)
}

// ackFrame builds the acknowledgement for the last received frame.
func (d *Device) ackFrame() []byte {
	fc := NewFrameControl(FrameAck, AddrModeNone, AddrModeNone, 0)
	if d.ackPending {
		fc |= FCFFramePending
	}
	mpdu := AppendFCS([]byte{byte(fc), byte(fc >> 8), d.ackSeq})
	return append([]byte{byte(len(mpdu))}, mpdu...)
}

// ByteTime is the air time of one byte.
func (d *Device) ByteTime() time.Duration { return d.byteTime }

// SymbolTime is the duration of one O-QPSK symbol.
func (d *Device) SymbolTime() time.Duration { return d.symbol }

// emit hands one byte to the medium and schedules the next byte slot.
func (d *Device) emit(b byte) {
	d.byteTimer.arm(d.now + d.byteTime)
	if d.cfg.Transmitter == nil {
		if !d.noTxLogged {
			d.configError(ErrNoTransmitter, "outbound bytes are dropped")
			d.noTxLogged = true
		}
		return
	}
	d.cfg.Transmitter.Transmit(RadioByte{
		Data:         b,
		FrequencyMHz: d.regs.frequencyMHz(),
		Modulation:   ModulationOQPSK,
		PowerDBm:     powerDBm(d.regs.txctrl().paLevel()),
		Start:        d.now,
		Duration:     d.byteTime,
	})
}

// onByteTimer runs at every byte boundary while transmitting.
func (d *Device) onByteTimer() {
	switch d.state {
	case StateTXPreamble, StateTXAckPreamble:
		if d.txs.pos < len(d.txs.seq) {
			d.emit(d.txs.seq[d.txs.pos])
			d.txs.pos++
			return
		}
		if d.state == StateTXPreamble {
			d.transitionTo(StateTXFrame)
			d.txFrameByte()
		} else {
			d.transitionTo(StateTXAck)
			d.txAckByte()
		}
	case StateTXFrame:
		d.txFrameByte()
	case StateTXAck:
		d.txAckByte()
	}
}

// txFrameByte sends the next byte of the TX FIFO frame.
func (d *Device) txFrameByte() {
	s := &d.txs
	autoCRC := d.regs.mdmctrl0().autoCRC()

	if s.sent > 0 && s.sent >= d.tx.frameLength()+1 {
		d.info(fmt.Sprintf("tx: %d byte frame sent", d.tx.frameLength()))
		d.txDone()
		return
	}

	// payloadEnd is the index of the first FCS byte in length+MPDU order.
	payloadEnd := -1
	if autoCRC && s.sent > 0 {
		payloadEnd = d.tx.frameLength() + 1 - 2
		if payloadEnd < 1 {
			payloadEnd = 1
		}
	}
	if payloadEnd > 0 && s.sent >= payloadEnd {
		if s.sent == payloadEnd {
			fcs := FCS(d.tx.buf[1:payloadEnd])
			s.fcs = [2]byte{byte(fcs), byte(fcs >> 8)}
		}
		d.emit(s.fcs[s.sent-payloadEnd])
		s.sent++
		return
	}

	b, err := d.tx.Pop()
	if err != nil {
		d.transitionTo(StateTXUnderflow)
		return
	}
	d.emit(b)
	s.sent++
}

func (d *Device) txAckByte() {
	s := &d.txs
	if s.pos == len(s.seq) {
		d.info(fmt.Sprintf("tx: ack seq %d sent", d.ackSeq))
		d.txDone()
		return
	}
	d.emit(s.seq[s.pos])
	s.pos++
}

func (d *Device) txDone() {
	d.byteTimer.disarm()
	d.setSignal(PinSFD, false)
	d.transitionTo(StateRXCalibrate)
}
