package cc2420

import "fmt"

// spiState is the expected meaning of the next byte of an SPI transaction.
type spiState uint8

const (
	spiAddr spiState = iota
	spiRegWrite1
	spiRegWrite2
	spiRegRead1
	spiRegRead2
	spiRAMBank
	spiRAMRead
	spiRAMWrite
	spiTXFIFO
	spiRXFIFO
	// spiDiscard swallows the rest of a rejected transaction.
	spiDiscard
)

func (s spiState) String() string {
	return [...]string{"addr", "reg-write-1", "reg-write-2", "reg-read-1",
		"reg-read-2", "ram-bank", "ram-read", "ram-write", "txfifo", "rxfifo",
		"discard"}[s]
}

// spiCursor is the per-transaction decode state. It lives from CSn falling
// to CSn rising.
type spiCursor struct {
	state spiState
	addr  byte
	hi    byte
	ram   uint16
}

const (
	ramSize     = 368
	ramBankSize = 128
	ramTXFIFO   = 0x000
	ramRXFIFO   = 0x080

	RAMIEEEAddr = 0x160
	RAMPANID    = 0x168
	RAMShortAdr = 0x16A
)

// status is the byte clocked out for every address byte.
func (d *Device) status() byte {
	var s byte
	if d.xoscStable {
		s |= StatusXOSC16MStable
	}
	if d.txUnderflow {
		s |= StatusTXUnderflow
	}
	if d.txActive {
		s |= StatusTXActive
	}
	if d.lock {
		s |= StatusLock
	}
	if d.rssiValid {
		s |= StatusRSSIValid
	}
	return s
}

// spiByte decodes one byte shifted in on SI and returns the byte shifted
// out on SO.
func (d *Device) spiByte(in byte) byte {
	c := &d.spi
	switch c.state {
	case spiAddr:
		return d.spiAddress(in)

	case spiRegWrite1:
		c.hi = in
		c.state = spiRegWrite2
		return 0x00

	case spiRegWrite2:
		d.writeRegister(c.addr, uint16(c.hi)<<8|uint16(in))
		c.state = spiAddr
		return 0x00

	case spiRegRead1:
		v := d.readRegister(c.addr)
		c.hi = byte(v)
		c.state = spiRegRead2
		return byte(v >> 8)

	case spiRegRead2:
		c.state = spiAddr
		return c.hi

	case spiRAMBank:
		bank := in >> RAMBankShift
		if bank > 2 {
			d.configError(ErrBadBank, fmt.Sprintf("bank %d", bank))
			c.state = spiDiscard
			return 0x00
		}
		c.ram |= uint16(bank) * ramBankSize
		if in&RAMRead != 0 {
			c.state = spiRAMRead
		} else {
			c.state = spiRAMWrite
		}
		return 0x00

	case spiRAMRead:
		b, _ := d.readRAM(c.ram)
		c.ram++
		return b

	case spiRAMWrite:
		old, _ := d.writeRAM(c.ram, in)
		c.ram++
		return old

	case spiTXFIFO:
		out := d.status()
		if err := d.pushTX(in); err != nil {
			d.softError(err, fmt.Sprintf("txfifo byte 0x%02X", in))
		}
		return out

	case spiRXFIFO:
		b, err := d.popRX()
		if err != nil {
			d.debug(fmt.Sprintf("rxfifo read: %v", err))
		}
		return b
	}
	return 0x00
}

// spiAddress dispatches the first byte of a transaction.
func (d *Device) spiAddress(in byte) byte {
	c := &d.spi
	out := d.status()

	if in&AddrRAM != 0 {
		c.ram = uint16(in & 0x7F)
		c.state = spiRAMBank
		return out
	}

	addr := in & 0x3F
	read := in&AddrRead != 0
	c.addr = addr
	switch {
	case addr <= strobeMax:
		if read {
			d.softError(ErrAddressRange, fmt.Sprintf("read of strobe %s", StrobeName(addr)))
			return out
		}
		d.strobe(addr)
		// The status reflects the chip before the strobe took effect.
		return out

	case addr == RegTXFIFO:
		if read || !d.fifoAccess("TXFIFO") {
			if read {
				d.softError(ErrAddressRange, "TXFIFO is write-only")
			}
			c.state = spiDiscard
			return out
		}
		c.state = spiTXFIFO

	case addr == RegRXFIFO:
		if !read || !d.fifoAccess("RXFIFO") {
			if !read {
				d.softError(ErrAddressRange, "RXFIFO is read-only")
			}
			c.state = spiDiscard
			return out
		}
		c.state = spiRXFIFO

	case addr >= regFirst && addr <= regLast:
		if read {
			c.state = spiRegRead1
		} else {
			c.state = spiRegWrite1
		}

	default:
		d.softError(ErrAddressRange, fmt.Sprintf("address 0x%02X", addr))
		c.state = spiDiscard
	}
	return out
}

func (d *Device) fifoAccess(name string) bool {
	if d.state.Access() != AccessAll {
		d.softError(ErrAccessDenied, fmt.Sprintf("%s in %s", name, d.state))
		return false
	}
	return true
}

// endTransaction resets the SPI cursor; called on every CSn edge.
func (d *Device) endTransaction() {
	d.spi = spiCursor{}
}

// readRegister returns a register value, or 0 when the access is denied.
func (d *Device) readRegister(addr byte) uint16 {
	if addr < regFirst || addr > regLast {
		d.softError(ErrAddressRange, fmt.Sprintf("register read 0x%02X", addr))
		return 0
	}
	if !d.state.Access().allowsRegister(addr) {
		d.softError(ErrAccessDenied, fmt.Sprintf("read %s in %s", RegisterName(addr), d.state))
		return 0
	}
	return d.regs.get(addr)
}

// writeRegister commits a 16-bit register write and applies its side
// effects.
func (d *Device) writeRegister(addr byte, v uint16) {
	if addr < regFirst || addr > regLast {
		d.softError(ErrAddressRange, fmt.Sprintf("register write 0x%02X", addr))
		return
	}
	if !d.state.Access().allowsRegister(addr) {
		d.softError(ErrAccessDenied, fmt.Sprintf("write %s in %s", RegisterName(addr), d.state))
		return
	}
	if readOnly(addr) {
		d.debug(fmt.Sprintf("%v: write to %s dropped", ErrReadOnly, RegisterName(addr)))
		return
	}

	switch addr {
	case RegMAIN:
		d.regs.set(addr, v)
		if v&mainResetN == 0 {
			d.enterReset()
		} else if d.state == StateReset && d.pins.input(PinRESETn) {
			d.leaveReset()
		}
		return
	case RegRSSI:
		// RSSI_VAL is read-only.
		v = v&0xFF00 | d.regs.get(RegRSSI)&0x00FF
	}
	d.regs.set(addr, v)

	switch addr {
	case RegMDMCTRL0:
		d.preambleLen = d.regs.mdmctrl0().preambleBytes()
	case RegIOCFG0:
		d.refreshOutputs()
		d.updateRXPins()
	case RegRSSI:
		d.updateCCA()
	}
}

// ReadRegister is the register bank contract used by tooling and tests. It
// honours the memory access class of the current state.
func (d *Device) ReadRegister(addr byte) uint16 { return d.readRegister(addr) }

// WriteRegister writes a register as an SPI register write would.
func (d *Device) WriteRegister(addr byte, v uint16) { d.writeRegister(addr, v) }

func (d *Device) ramAccess(addr uint16) error {
	if d.state.Access() != AccessAll {
		return fmt.Errorf("%w: ram 0x%03X in %s", ErrAccessDenied, addr, d.state)
	}
	if addr >= ramSize {
		return fmt.Errorf("%w: ram 0x%03X", ErrAddressRange, addr)
	}
	return nil
}

// readRAM reads one RAM byte; denied or out of range reads return 0.
func (d *Device) readRAM(addr uint16) (byte, error) {
	if err := d.ramAccess(addr); err != nil {
		d.softError(err, "ram read")
		return 0, err
	}
	return d.ram[addr], nil
}

// writeRAM stores one RAM byte and returns the byte it replaced.
func (d *Device) writeRAM(addr uint16, b byte) (byte, error) {
	if err := d.ramAccess(addr); err != nil {
		d.softError(err, "ram write")
		return 0, err
	}
	old := d.ram[addr]
	d.ram[addr] = b
	return old, nil
}

// ReadRAM reads a RAM byte at a bank relative address.
func (d *Device) ReadRAM(bank byte, addr byte) (byte, error) {
	if bank > 2 {
		return 0, fmt.Errorf("%w: %d", ErrBadBank, bank)
	}
	return d.readRAM(uint16(bank)*ramBankSize + uint16(addr&0x7F))
}

// WriteRAM writes a RAM byte at a bank relative address and returns the old
// value.
func (d *Device) WriteRAM(bank byte, addr byte, b byte) (byte, error) {
	if bank > 2 {
		return 0, fmt.Errorf("%w: %d", ErrBadBank, bank)
	}
	return d.writeRAM(uint16(bank)*ramBankSize+uint16(addr&0x7F), b)
}
