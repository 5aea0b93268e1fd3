package cc2420

import (
	"bytes"
	"testing"
	"time"
)

func TestRegisterReadWrite(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeReg(d, RegFSCTRL, 0x4170)
	if got := readReg(d, RegFSCTRL); got != 0x4170 {
		t.Errorf("FSCTRL = 0x%04X, want 0x4170", got)
	}
	if d.regs.frequencyMHz() != 2416 {
		t.Errorf("frequency = %v, want 2416", d.regs.frequencyMHz())
	}
}

func TestRegisterDefaults(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	tests := []struct {
		addr byte
		want uint16
	}{
		{RegMAIN, 0xF800},
		{RegMDMCTRL0, 0x0AE2},
		{RegSYNCWORD, 0xA70F},
		{RegTXCTRL, 0xA0FF},
		{RegFSCTRL, 0x4165},
		{RegIOCFG0, 0x0040},
		{RegMANFIDL, 0x233D},
		{RegMANFIDH, 0x3000},
	}
	for _, tt := range tests {
		if got := readReg(d, tt.addr); got != tt.want {
			t.Errorf("%s = 0x%04X, want 0x%04X", RegisterName(tt.addr), got, tt.want)
		}
	}
}

func TestReadOnlyRegisters(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeReg(d, RegFSMSTATE, 0x1234)
	writeReg(d, RegMANFIDL, 0x1234)
	if got := readReg(d, RegFSMSTATE); got != 1 {
		t.Errorf("FSMSTATE = %d, want 1", got)
	}
	if got := readReg(d, RegMANFIDL); got != 0x233D {
		t.Errorf("MANFIDL = 0x%04X", got)
	}

	// Only CCA_THR of RSSI is writable.
	writeReg(d, RegRSSI, 0xF012)
	if got := readReg(d, RegRSSI); got != 0xF080 {
		t.Errorf("RSSI = 0x%04X, want 0xF080", got)
	}
}

func TestRegisterAccessClasses(t *testing.T) {
	d, _, log := newTestDevice(t)
	// Power down: nothing is reachable.
	writeReg(d, RegFSCTRL, 0x4170)
	if d.regs.get(RegFSCTRL) != 0x4165 {
		t.Fatal("register written in POWER_DOWN")
	}
	if len(log.warns) == 0 {
		t.Error("denied write not logged")
	}

	// Crystal starting: registers yes, RAM no.
	d.Write(PinVREGEN, PinVREGEN)
	d.Update(700 * time.Microsecond)
	if d.State() != StateXoscStarting {
		t.Fatalf("expected XOSC_STARTING, got %s", d.State())
	}
	writeReg(d, RegFSCTRL, 0x4170)
	if got := readReg(d, RegFSCTRL); got != 0x4170 {
		t.Errorf("register write denied in XOSC_STARTING: 0x%04X", got)
	}
	writeRAM(d, RAMPANID, 0x34)
	if d.ram[RAMPANID] != 0 {
		t.Error("RAM written in XOSC_STARTING")
	}
	writeTXFIFO(d, 3, 1)
	if !d.tx.empty() {
		t.Error("TXFIFO written in XOSC_STARTING")
	}
}

func TestOutOfRangeAddress(t *testing.T) {
	d, _, log := newIdleDevice(t)
	r := spiTx(d, 0x35, 0x12, 0x34, StrobeSRXON)
	if len(log.warns) != 1 {
		t.Errorf("expected one warning, got %q", log.warns)
	}
	// The rest of the transaction is discarded.
	if d.State() != StateIdle {
		t.Errorf("bytes after a bad address were decoded: %s", d.State())
	}
	if r[0] != d.Status() {
		t.Errorf("status byte 0x%02X, want 0x%02X", r[0], d.Status())
	}
}

func TestStatusByte(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	if got := strobe(d, StrobeSNOP); got != StatusXOSC16MStable {
		t.Errorf("Idle status = 0x%02X, want 0x%02X", got, StatusXOSC16MStable)
	}
	strobe(d, StrobeSRXON)
	advance(d, time.Millisecond)
	want := byte(StatusXOSC16MStable | StatusLock | StatusRSSIValid)
	if got := strobe(d, StrobeSNOP); got != want {
		t.Errorf("RX status = 0x%02X, want 0x%02X", got, want)
	}
}

func TestRegisterWriteDummyBytes(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	r := spiTx(d, RegFSCTRL, 0x41, 0x70)
	if r[1] != 0 || r[2] != 0 {
		t.Errorf("register write data bytes returned %X", r[1:])
	}
}

func TestRAMReadWrite(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	ieee := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	old := writeRAM(d, RAMIEEEAddr, ieee...)
	if !bytes.Equal(old, make([]byte, 8)) {
		t.Errorf("RAM write returned %X, want zeros", old)
	}
	if got := readRAM(d, RAMIEEEAddr, 8); !bytes.Equal(got, ieee) {
		t.Errorf("RAM read = %X, want %X", got, ieee)
	}
	old = writeRAM(d, RAMIEEEAddr, 0xAA)
	if old[0] != 1 {
		t.Errorf("RAM write returned 0x%02X, want the old byte", old[0])
	}
	_, _, l := d.localAddresses()
	if l != 0x08070605040302AA {
		t.Errorf("IEEE address = %016X", l)
	}
}

func TestRAMBankMapsFIFOs(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeTXFIFO(d, 0x04, 0x11, 0x22)
	if got := readRAM(d, ramTXFIFO, 3); !bytes.Equal(got, []byte{4, 0x11, 0x22}) {
		t.Errorf("TXFIFO through RAM = %X", got)
	}
	b, err := d.ReadRAM(0, 1)
	if err != nil || b != 0x11 {
		t.Errorf("ReadRAM(0, 1) = 0x%02X, %v", b, err)
	}
}

func TestRAMBadBank(t *testing.T) {
	d, _, log := newIdleDevice(t)
	spiTx(d, AddrRAM|0x10, 3<<RAMBankShift, 0x55)
	if len(log.errors) != 1 {
		t.Errorf("expected one error for bank 3, got %q", log.errors)
	}
	if _, err := d.WriteRAM(3, 0, 0); err == nil {
		t.Error("WriteRAM accepted bank 3")
	}
}

func TestRAMOutOfRange(t *testing.T) {
	d, _, log := newIdleDevice(t)
	// Bank 2 ends at 0x16F.
	spiTx(d, append(ramHeader(0x170, true), 0)...)
	if len(log.warns) != 1 {
		t.Errorf("expected one warning, got %q", log.warns)
	}
}

func TestFIFODirection(t *testing.T) {
	d, _, log := newIdleDevice(t)
	spiTx(d, RegTXFIFO|AddrRead, 0)
	spiTx(d, RegRXFIFO, 0x12)
	if len(log.warns) != 2 {
		t.Errorf("expected two warnings, got %q", log.warns)
	}
	if d.rx.Available() != 0 {
		t.Error("RXFIFO accepted a write")
	}
}

func TestStrobeReadIsSoftError(t *testing.T) {
	d, _, log := newIdleDevice(t)
	spiTx(d, StrobeSRXON|AddrRead)
	if d.State() != StateIdle || len(log.warns) != 1 {
		t.Errorf("state %s, warnings %q", d.State(), log.warns)
	}
}

func TestCSnAbortsTransaction(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	// Half a register write, then CSn rises.
	spiTx(d, RegFSCTRL, 0x41)
	// The next transaction starts with an address byte again.
	strobe(d, StrobeSRXON)
	if d.State() != StateRXCalibrate {
		t.Errorf("expected RX_CALIBRATE, got %s", d.State())
	}
	if d.regs.get(RegFSCTRL) != 0x4165 {
		t.Error("half-written register was committed")
	}
}

func TestMultipleCommandsPerTransaction(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	spiTx(d, StrobeSFLUSHRX, StrobeSFLUSHTX, RegFSCTRL, 0x41, 0x70, StrobeSRXON)
	if d.regs.get(RegFSCTRL) != 0x4170 || d.State() != StateRXCalibrate {
		t.Errorf("FSCTRL 0x%04X state %s", d.regs.get(RegFSCTRL), d.State())
	}
}

func TestMDMCTRL0UpdatesPreamble(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeReg(d, RegMDMCTRL0, 0x0AE7)
	if d.preambleLen != 8 {
		t.Errorf("preamble length = %d, want 8", d.preambleLen)
	}
}

func TestIOCFG0Polarity(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	if d.Level(PinSFD) {
		t.Fatal("SFD high in Idle")
	}
	writeReg(d, RegIOCFG0, 0x0040|ioSFDPolarity)
	if !d.Level(PinSFD) {
		t.Error("inverted SFD should idle high")
	}
}

func TestSyncBytes(t *testing.T) {
	tests := []struct {
		sync uint16
		want [2]byte
	}{
		{0xA70F, [2]byte{0x00, 0xA7}},
		{0x1234, [2]byte{0x34, 0x12}},
		{0xFFFF, [2]byte{0x00, 0x00}},
		{0xF7F0, [2]byte{0x00, 0x07}},
	}
	for _, tt := range tests {
		var r registerFile
		r.reset()
		r.set(RegSYNCWORD, tt.sync)
		if got := r.syncBytes(); got != tt.want {
			t.Errorf("syncBytes(0x%04X) = %X, want %X", tt.sync, got, tt.want)
		}
	}
}

func TestPowerTable(t *testing.T) {
	tests := []struct {
		level uint8
		want  float64
	}{
		{31, 0}, {30, -1}, {27, -1}, {23, -3}, {19, -5}, {15, -7}, {11, -10}, {7, -15}, {3, -25}, {0, -25},
	}
	for _, tt := range tests {
		if got := powerDBm(tt.level); got != tt.want {
			t.Errorf("powerDBm(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLastByteWithRisingCSn(t *testing.T) {
	d, _, log := newIdleDevice(t)
	d.Write(PinCSn, 0)
	d.Write(PinData, Pin(RegFSCTRL))
	d.Write(PinData, 0x41)
	d.Write(PinData|PinCSn, PinCSn|0x70)

	if got := readReg(d, RegFSCTRL); got != 0x4170 {
		t.Errorf("FSCTRL = 0x%04X, want 0x4170", got)
	}
	if len(log.warns) != 0 || len(log.errors) != 0 {
		t.Errorf("unexpected log: %v %v", log.warns, log.errors)
	}

	// With CSn already high the byte is still refused.
	d.Write(PinData|PinCSn, PinCSn|0x55)
	if len(log.warns)+len(log.errors) == 0 {
		t.Error("byte with CSn high was not reported")
	}
}
