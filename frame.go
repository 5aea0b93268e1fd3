package cc2420

import (
	"encoding/binary"
	"fmt"
)

// FrameType is the IEEE 802.15.4 frame type, FCF bits 2:0.
type FrameType uint8

const (
	FrameBeacon FrameType = iota
	FrameData
	FrameAck
	FrameMACCommand
)

func (t FrameType) String() string {
	switch t {
	case FrameBeacon:
		return "beacon"
	case FrameData:
		return "data"
	case FrameAck:
		return "ack"
	case FrameMACCommand:
		return "command"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(t))
	}
}

func (t FrameType) reserved() bool { return t > FrameMACCommand }

// AddrMode is an addressing mode field of the frame control field.
type AddrMode uint8

const (
	AddrModeNone AddrMode = iota
	AddrModeReserved
	AddrModeShort
	AddrModeLong
)

// Len is the size of an address field in this mode.
func (m AddrMode) Len() int {
	switch m {
	case AddrModeShort:
		return 2
	case AddrModeLong:
		return 8
	default:
		return 0
	}
}

// Frame control field bits.
const (
	FCFTypeMask     FrameControl = 0x0007
	FCFSecurity     FrameControl = 1 << 3
	FCFFramePending FrameControl = 1 << 4
	FCFAckRequest   FrameControl = 1 << 5
	FCFIntraPAN     FrameControl = 1 << 6
	fcfDstModeShift              = 10
	fcfSrcModeShift              = 14
)

// FrameControl is the 16-bit frame control field, transmitted little-endian.
type FrameControl uint16

// NewFrameControl packs a frame control field.
func NewFrameControl(t FrameType, dst, src AddrMode, flags FrameControl) FrameControl {
	return FrameControl(t)&FCFTypeMask |
		flags&(FCFSecurity|FCFFramePending|FCFAckRequest|FCFIntraPAN) |
		FrameControl(dst&3)<<fcfDstModeShift |
		FrameControl(src&3)<<fcfSrcModeShift
}

func (f FrameControl) Type() FrameType  { return FrameType(f & FCFTypeMask) }
func (f FrameControl) Security() bool   { return f&FCFSecurity != 0 }
func (f FrameControl) Pending() bool    { return f&FCFFramePending != 0 }
func (f FrameControl) AckRequest() bool { return f&FCFAckRequest != 0 }
func (f FrameControl) IntraPAN() bool   { return f&FCFIntraPAN != 0 }
func (f FrameControl) DstMode() AddrMode {
	return AddrMode(f>>fcfDstModeShift) & 3
}
func (f FrameControl) SrcMode() AddrMode {
	return AddrMode(f>>fcfSrcModeShift) & 3
}

// AddressLayout locates the addressing fields inside an MPDU. Offsets count
// from the first frame control byte; -1 means the field is absent.
type AddressLayout struct {
	DstPAN    int
	DstAddr   int
	DstLen    int
	SrcPAN    int
	SrcAddr   int
	SrcLen    int
	HeaderLen int
}

// Layout computes the addressing field positions for a frame control field.
// The source PAN is elided when the frame is intra-PAN and both addresses
// are present.
func Layout(fc FrameControl) AddressLayout {
	l := AddressLayout{DstPAN: -1, DstAddr: -1, SrcPAN: -1, SrcAddr: -1}
	off := 3
	if n := fc.DstMode().Len(); n > 0 {
		l.DstPAN = off
		l.DstAddr = off + 2
		l.DstLen = n
		off += 2 + n
	}
	if n := fc.SrcMode().Len(); n > 0 {
		if !(fc.IntraPAN() && l.DstPAN >= 0) {
			l.SrcPAN = off
			off += 2
		}
		l.SrcAddr = off
		l.SrcLen = n
		off += n
	}
	l.HeaderLen = off
	return l
}

// Address is a short or extended IEEE 802.15.4 address.
type Address struct {
	Mode  AddrMode
	Short uint16
	Long  uint64
}

// ShortAddress returns a 16-bit address.
func ShortAddress(a uint16) Address { return Address{Mode: AddrModeShort, Short: a} }

// LongAddress returns a 64-bit extended address.
func LongAddress(a uint64) Address { return Address{Mode: AddrModeLong, Long: a} }

// BroadcastAddress is the short broadcast address.
var BroadcastAddress = ShortAddress(0xFFFF)

const BroadcastPAN = 0xFFFF

func (a Address) String() string {
	switch a.Mode {
	case AddrModeShort:
		return fmt.Sprintf("%04X", a.Short)
	case AddrModeLong:
		return fmt.Sprintf("%016X", a.Long)
	default:
		return "-"
	}
}

func (a Address) put(b []byte) {
	switch a.Mode {
	case AddrModeShort:
		binary.LittleEndian.PutUint16(b, a.Short)
	case AddrModeLong:
		binary.LittleEndian.PutUint64(b, a.Long)
	}
}

func readAddress(m AddrMode, b []byte) Address {
	switch m {
	case AddrModeShort:
		return ShortAddress(binary.LittleEndian.Uint16(b))
	case AddrModeLong:
		return LongAddress(binary.LittleEndian.Uint64(b))
	}
	return Address{}
}

// Frame is a decoded MAC frame.
type Frame struct {
	Control FrameControl
	Seq     byte
	DstPAN  uint16
	Dst     Address
	SrcPAN  uint16
	Src     Address
	Payload []byte
}

// MarshalMPDU encodes the frame without length byte and FCS. The address
// modes in Control are taken from Dst and Src.
func (f *Frame) MarshalMPDU() ([]byte, error) {
	fc := f.Control&^(3<<fcfDstModeShift|3<<fcfSrcModeShift) |
		FrameControl(f.Dst.Mode&3)<<fcfDstModeShift |
		FrameControl(f.Src.Mode&3)<<fcfSrcModeShift
	l := Layout(fc)
	if l.HeaderLen+len(f.Payload)+2 > maxFrameLen {
		return nil, fmt.Errorf("%w: %d payload bytes", ErrFrameTooLong, len(f.Payload))
	}
	out := make([]byte, l.HeaderLen, l.HeaderLen+len(f.Payload)+2)
	binary.LittleEndian.PutUint16(out, uint16(fc))
	out[2] = f.Seq
	if l.DstPAN >= 0 {
		binary.LittleEndian.PutUint16(out[l.DstPAN:], f.DstPAN)
		f.Dst.put(out[l.DstAddr:])
	}
	if l.SrcPAN >= 0 {
		binary.LittleEndian.PutUint16(out[l.SrcPAN:], f.SrcPAN)
	}
	if l.SrcAddr >= 0 {
		f.Src.put(out[l.SrcAddr:])
	}
	return append(out, f.Payload...), nil
}

// ParseFrame decodes an MPDU without length byte and FCS.
func ParseFrame(mpdu []byte) (Frame, error) {
	if len(mpdu) < 3 {
		return Frame{}, fmt.Errorf("%w: frame header", ErrShortBuffer)
	}
	fc := FrameControl(binary.LittleEndian.Uint16(mpdu))
	l := Layout(fc)
	if len(mpdu) < l.HeaderLen {
		return Frame{}, fmt.Errorf("%w: need %d header bytes, have %d", ErrShortBuffer, l.HeaderLen, len(mpdu))
	}
	f := Frame{Control: fc, Seq: mpdu[2]}
	if l.DstPAN >= 0 {
		f.DstPAN = binary.LittleEndian.Uint16(mpdu[l.DstPAN:])
		f.Dst = readAddress(fc.DstMode(), mpdu[l.DstAddr:])
	}
	if l.SrcAddr >= 0 {
		f.SrcPAN = f.DstPAN
		if l.SrcPAN >= 0 {
			f.SrcPAN = binary.LittleEndian.Uint16(mpdu[l.SrcPAN:])
		}
		f.Src = readAddress(fc.SrcMode(), mpdu[l.SrcAddr:])
	}
	f.Payload = append([]byte(nil), mpdu[l.HeaderLen:]...)
	return f, nil
}
