package cc2420

import "github.com/sigurn/crc16"

// fcsParams is the IEEE 802.15.4 frame check sequence: CCITT polynomial
// x^16+x^12+x^5+1, bit-reflected, zero initial value, sent low byte first.
var fcsParams = crc16.Params{
	Poly:   0x1021,
	Init:   0x0000,
	RefIn:  true,
	RefOut: true,
	XorOut: 0x0000,
	Check:  0x2189,
	Name:   "CRC-16/KERMIT",
}

var fcsTable = crc16.MakeTable(fcsParams)

// FCS returns the frame check sequence of an MPDU without its length byte
// and without the trailing FCS.
func FCS(data []byte) uint16 {
	return crc16.Checksum(data, fcsTable)
}

// AppendFCS appends the FCS of data in transmission order.
func AppendFCS(data []byte) []byte {
	fcs := FCS(data)
	return append(data, byte(fcs), byte(fcs>>8))
}

// CheckFCS reports whether the last two bytes of frame are the FCS of the
// bytes before them.
func CheckFCS(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	n := len(frame) - 2
	return FCS(frame[:n]) == uint16(frame[n])|uint16(frame[n+1])<<8
}
