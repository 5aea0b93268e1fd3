package cc2420

import "fmt"

// Strobe command addresses.
const (
	StrobeSNOP     = 0x00
	StrobeSXOSCON  = 0x01
	StrobeSTXCAL   = 0x02
	StrobeSRXON    = 0x03
	StrobeSTXON    = 0x04
	StrobeSTXONCCA = 0x05
	StrobeSRFOFF   = 0x06
	StrobeSXOSCOFF = 0x07
	StrobeSFLUSHRX = 0x08
	StrobeSFLUSHTX = 0x09
	StrobeSACK     = 0x0A
	StrobeSACKPEND = 0x0B
	StrobeSRXDEC   = 0x0C
	StrobeSTXENC   = 0x0D
	StrobeSAES     = 0x0E

	strobeMax = StrobeSAES
)

// Register addresses.
const (
	RegMAIN     = 0x10
	RegMDMCTRL0 = 0x11
	RegMDMCTRL1 = 0x12
	RegRSSI     = 0x13
	RegSYNCWORD = 0x14
	RegTXCTRL   = 0x15
	RegRXCTRL0  = 0x16
	RegRXCTRL1  = 0x17
	RegFSCTRL   = 0x18
	RegSECCTRL0 = 0x19
	RegSECCTRL1 = 0x1A
	RegBATTMON  = 0x1B
	RegIOCFG0   = 0x1C
	RegIOCFG1   = 0x1D
	RegMANFIDL  = 0x1E
	RegMANFIDH  = 0x1F
	RegFSMTC    = 0x20
	RegMANAND   = 0x21
	RegMANOR    = 0x22
	RegAGCCTRL  = 0x23
	RegAGCTST0  = 0x24
	RegAGCTST1  = 0x25
	RegAGCTST2  = 0x26
	RegFSTST0   = 0x27
	RegFSTST1   = 0x28
	RegFSTST2   = 0x29
	RegFSTST3   = 0x2A
	RegRXBPFTST = 0x2B
	RegFSMSTATE = 0x2C
	RegADCTST   = 0x2D
	RegDACTST   = 0x2E
	RegTOPTST   = 0x2F
	RegRESERVED = 0x30

	// FIFO access addresses. TXFIFO is write-only, RXFIFO read-only.
	RegTXFIFO = 0x3E
	RegRXFIFO = 0x3F

	regFirst = RegMAIN
	regLast  = RegRESERVED
	regCount = regLast - regFirst + 1
)

// SPI address byte flags.
const (
	AddrRAM  = 0x80
	AddrRead = 0x40

	// Second byte of a RAM access: B1:B0 bank in bits 7:6, read flag in bit 5.
	RAMBankShift = 6
	RAMRead      = 0x20
)

// Status byte bits, returned for every address byte.
const (
	StatusXOSC16MStable = 1 << 6
	StatusTXUnderflow   = 1 << 5
	StatusEncBusy       = 1 << 4
	StatusTXActive      = 1 << 3
	StatusLock          = 1 << 2
	StatusRSSIValid     = 1 << 1
)

// Register bit fields.
const (
	mainResetN = 1 << 15

	mdmReservedFrameMode = 1 << 13
	mdmPanCoordinator    = 1 << 12
	mdmAdrDecode         = 1 << 11
	mdmCCAHystShift      = 8
	mdmCCAModeShift      = 6
	mdmAutoCRC           = 1 << 5
	mdmAutoAck           = 1 << 4
	mdmPreambleMask      = 0x0F

	txTurnaround = 1 << 13
	txPALevel    = 0x1F

	fsFreqMask = 0x03FF
	fsLockStat = 1 << 10

	ioBcnAccept     = 1 << 11
	ioFIFOPolarity  = 1 << 10
	ioFIFOPPolarity = 1 << 9
	ioSFDPolarity   = 1 << 8
	ioCCAPolarity   = 1 << 7
	ioFIFOPThrMask  = 0x7F
)

var registerNames = [regCount]string{
	"MAIN", "MDMCTRL0", "MDMCTRL1", "RSSI", "SYNCWORD", "TXCTRL", "RXCTRL0",
	"RXCTRL1", "FSCTRL", "SECCTRL0", "SECCTRL1", "BATTMON", "IOCFG0", "IOCFG1",
	"MANFIDL", "MANFIDH", "FSMTC", "MANAND", "MANOR", "AGCCTRL", "AGCTST0",
	"AGCTST1", "AGCTST2", "FSTST0", "FSTST1", "FSTST2", "FSTST3", "RXBPFTST",
	"FSMSTATE", "ADCTST", "DACTST", "TOPTST", "RESERVED",
}

// RegisterName returns the datasheet name of a register address.
func RegisterName(addr byte) string {
	if addr < regFirst || addr > regLast {
		return fmt.Sprintf("0x%02X", addr)
	}
	return registerNames[addr-regFirst]
}

// registerDefaults are the datasheet reset values.
var registerDefaults = [regCount]uint16{
	RegMAIN - regFirst:     0xF800,
	RegMDMCTRL0 - regFirst: 0x0AE2,
	RegMDMCTRL1 - regFirst: 0x0000,
	RegRSSI - regFirst:     0xE080,
	RegSYNCWORD - regFirst: 0xA70F,
	RegTXCTRL - regFirst:   0xA0FF,
	RegRXCTRL0 - regFirst:  0x12E5,
	RegRXCTRL1 - regFirst:  0x0A56,
	RegFSCTRL - regFirst:   0x4165,
	RegSECCTRL0 - regFirst: 0x0384,
	RegSECCTRL1 - regFirst: 0x0000,
	RegBATTMON - regFirst:  0x0000,
	RegIOCFG0 - regFirst:   0x0040,
	RegIOCFG1 - regFirst:   0x0000,
	RegMANFIDL - regFirst:  0x233D,
	RegMANFIDH - regFirst:  0x3000,
	RegFSMTC - regFirst:    0x7AF5,
	RegMANAND - regFirst:   0xFFFF,
	RegMANOR - regFirst:    0x0000,
	RegAGCCTRL - regFirst:  0x07F0,
	RegAGCTST0 - regFirst:  0x3E00,
	RegAGCTST1 - regFirst:  0x855A,
	RegAGCTST2 - regFirst:  0x0000,
	RegFSTST0 - regFirst:   0x0000,
	RegFSTST1 - regFirst:   0x0000,
	RegFSTST2 - regFirst:   0x0000,
	RegFSTST3 - regFirst:   0x0000,
	RegRXBPFTST - regFirst: 0x0000,
	RegFSMSTATE - regFirst: 0x0000,
	RegADCTST - regFirst:   0x0000,
	RegDACTST - regFirst:   0x0000,
	RegTOPTST - regFirst:   0x0010,
	RegRESERVED - regFirst: 0x0000,
}

// AccessClass is the memory access permitted by the current FSM state.
type AccessClass uint8

const (
	AccessNone AccessClass = iota
	AccessMainOnly
	AccessRegisters
	AccessAll
)

func (a AccessClass) String() string {
	switch a {
	case AccessNone:
		return "none"
	case AccessMainOnly:
		return "main-only"
	case AccessRegisters:
		return "registers"
	case AccessAll:
		return "all"
	default:
		return "unknown"
	}
}

func (a AccessClass) allowsRegister(addr byte) bool {
	switch a {
	case AccessMainOnly:
		return addr == RegMAIN
	case AccessRegisters, AccessAll:
		return true
	default:
		return false
	}
}

// registerFile is the 16-bit register bank.
type registerFile [regCount]uint16

func (r *registerFile) reset() { *r = registerDefaults }

func (r *registerFile) get(addr byte) uint16 { return r[addr-regFirst] }

func (r *registerFile) set(addr byte, v uint16) { r[addr-regFirst] = v }

func readOnly(addr byte) bool {
	switch addr {
	case RegFSMSTATE, RegMANFIDL, RegMANFIDH:
		return true
	}
	return false
}

func (r *registerFile) mdmctrl0() mdmctrl0 { return mdmctrl0(r.get(RegMDMCTRL0)) }
func (r *registerFile) txctrl() txctrl     { return txctrl(r.get(RegTXCTRL)) }
func (r *registerFile) iocfg0() iocfg0     { return iocfg0(r.get(RegIOCFG0)) }

// frequencyMHz decodes FSCTRL.FREQ[9:0]: f = 2048 + FREQ MHz.
func (r *registerFile) frequencyMHz() float64 {
	return 2048 + float64(r.get(RegFSCTRL)&fsFreqMask)
}

// ccaThreshold is RSSI.CCA_THR[15:8], a signed value in RSSI units.
func (r *registerFile) ccaThreshold() int8 { return int8(r.get(RegRSSI) >> 8) }

// rssiValue is RSSI.RSSI_VAL[7:0].
func (r *registerFile) rssiValue() int8 { return int8(r.get(RegRSSI)) }

func (r *registerFile) setRSSIValue(v int8) {
	r.set(RegRSSI, r.get(RegRSSI)&0xFF00|uint16(uint8(v)))
}

// syncBytes returns SYNCWORD as transmitted, least significant byte first,
// with every 0xF nibble replaced by 0x0.
func (r *registerFile) syncBytes() [2]byte {
	w := r.get(RegSYNCWORD)
	var out [2]byte
	for i := 0; i < 2; i++ {
		b := byte(w >> (8 * i))
		if b&0x0F == 0x0F {
			b &^= 0x0F
		}
		if b&0xF0 == 0xF0 {
			b &^= 0xF0
		}
		out[i] = b
	}
	return out
}

// mdmctrl0 decodes MDMCTRL0.
//
//	[13] RESERVED_FRAME_MODE  [12] PAN_COORDINATOR  [11] ADR_DECODE
//	[10:8] CCA_HYST  [7:6] CCA_MODE  [5] AUTOCRC  [4] AUTOACK
//	[3:0] PREAMBLE_LENGTH
type mdmctrl0 uint16

func (m mdmctrl0) reservedFrames() bool { return m&mdmReservedFrameMode != 0 }
func (m mdmctrl0) panCoordinator() bool { return m&mdmPanCoordinator != 0 }
func (m mdmctrl0) adrDecode() bool      { return m&mdmAdrDecode != 0 }
func (m mdmctrl0) ccaHyst() int         { return int(m>>mdmCCAHystShift) & 0x07 }
func (m mdmctrl0) ccaMode() CCAMode     { return CCAMode(m>>mdmCCAModeShift) & 0x03 }
func (m mdmctrl0) autoCRC() bool        { return m&mdmAutoCRC != 0 }
func (m mdmctrl0) autoAck() bool        { return m&mdmAutoAck != 0 }

// preambleBytes is the number of zero bytes sent before SYNCWORD.
func (m mdmctrl0) preambleBytes() int { return int(m&mdmPreambleMask) + 1 }

// txctrl decodes TXCTRL: [13] TX_TURNAROUND, [4:0] PA_LEVEL.
type txctrl uint16

func (t txctrl) longTurnaround() bool { return t&txTurnaround != 0 }
func (t txctrl) paLevel() uint8       { return uint8(t & txPALevel) }

// iocfg0 decodes IOCFG0: [11] BCN_ACCEPT, [10] FIFO_POLARITY,
// [9] FIFOP_POLARITY, [8] SFD_POLARITY, [7] CCA_POLARITY, [6:0] FIFOP_THR.
type iocfg0 uint16

func (c iocfg0) beaconAccept() bool  { return c&ioBcnAccept != 0 }
func (c iocfg0) fifopThreshold() int { return int(c & ioFIFOPThrMask) }

func (c iocfg0) inverted(p Pin) bool {
	switch p {
	case PinFIFO:
		return c&ioFIFOPolarity != 0
	case PinFIFOP:
		return c&ioFIFOPPolarity != 0
	case PinSFD:
		return c&ioSFDPolarity != 0
	case PinCCA:
		return c&ioCCAPolarity != 0
	}
	return false
}

// paTable maps PA_LEVEL settings to output power (datasheet table 9).
var paTable = []struct {
	level uint8
	dBm   float64
}{
	{31, 0}, {27, -1}, {23, -3}, {19, -5}, {15, -7}, {11, -10}, {7, -15}, {3, -25},
}

// powerDBm returns the output power for a PA_LEVEL, rounding down to the
// nearest characterised setting.
func powerDBm(level uint8) float64 {
	for _, e := range paTable {
		if level >= e.level {
			return e.dBm
		}
	}
	return paTable[len(paTable)-1].dBm
}
