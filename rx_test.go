package cc2420

import (
	"bytes"
	"testing"
)

// preamble is the default on-air header: three zero bytes, then the
// modulated SYNCWORD 0xA70F as 0x00 0xA7.
var preamble = []byte{0x00, 0x00, 0x00, 0x00, 0xA7}

func disableAddressDecode(d *Device) {
	writeReg(d, RegMDMCTRL0, 0x0AE2&^mdmAdrDecode)
}

func setLocalAddress(d *Device, pan, short uint16) {
	writeRAM(d, RAMPANID, byte(pan), byte(pan>>8), byte(short), byte(short>>8))
}

// onAir returns length byte, MPDU and FCS of a frame.
func onAir(t *testing.T, f Frame) []byte {
	t.Helper()
	mpdu, err := f.MarshalMPDU()
	if err != nil {
		t.Fatalf("MarshalMPDU: %v", err)
	}
	mpdu = AppendFCS(mpdu)
	return append([]byte{byte(len(mpdu))}, mpdu...)
}

func TestReceiveFrame(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	disableAddressDecode(d)
	startRX(t, d)

	payload := []byte{0x11, 0x22, 0x33, 0x44, 0x55}
	frame := append([]byte{byte(len(payload) + 2)}, AppendFCS(append([]byte(nil), payload...))...)

	feed(d, preamble...)
	if d.State() != StateRXFrame {
		t.Fatalf("expected RX_FRAME after sync, got %s", d.State())
	}
	if !d.Level(PinSFD) {
		t.Error("SFD should be high during reception")
	}
	feed(d, frame...)

	if d.State() != StateRXSFDSearch {
		t.Fatalf("expected RX_SFD_SEARCH after the frame, got %s", d.State())
	}
	if !d.Level(PinFIFOP) || !d.Level(PinFIFO) {
		t.Error("FIFO and FIFOP should be high with a complete frame buffered")
	}
	if d.Level(PinSFD) {
		t.Error("SFD should be low after the frame")
	}

	got := readRXFIFO(d, 8)
	if !bytes.Equal(got[:6], frame[:6]) {
		t.Errorf("length and payload = %X, want %X", got[:6], frame[:6])
	}
	// -50 dBm input gives RSSI_VAL -5; SNR 10 gives correlation 80.
	if got[6] != 0xFB {
		t.Errorf("RSSI byte = 0x%02X, want 0xFB", got[6])
	}
	if got[7] != 0x80|80 {
		t.Errorf("CRC/correlation byte = 0x%02X, want 0x%02X", got[7], 0x80|80)
	}
	if d.Level(PinFIFO) || d.Level(PinFIFOP) {
		t.Error("FIFO and FIFOP should drop once the frame is read")
	}
}

func TestReceiveBadFCSIsFlushed(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	disableAddressDecode(d)
	startRX(t, d)

	feed(d, preamble...)
	feed(d, 0x05, 0x01, 0x02, 0x03, 0xDE, 0xAD)
	if d.rx.Available() != 0 {
		t.Errorf("bad frame left %d bytes in the RX FIFO", d.rx.Available())
	}
	if d.Level(PinFIFOP) {
		t.Error("FIFOP high after a rejected frame")
	}
}

func TestSyncSearchNeedsPreamble(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	startRX(t, d)

	feed(d, 0x00, 0x00, 0xA7)
	if d.State() != StateRXSFDSearch {
		t.Fatalf("synced on a short preamble: %s", d.State())
	}
	feed(d, 0x00, 0x00, 0x12, 0xA7)
	if d.State() != StateRXSFDSearch {
		t.Fatalf("synced after a broken preamble: %s", d.State())
	}
	feed(d, preamble...)
	if d.State() != StateRXFrame {
		t.Fatalf("expected RX_FRAME, got %s", d.State())
	}
}

func TestAddressRecognition(t *testing.T) {
	const pan, short = 0x1234, 0x0001

	tests := []struct {
		name   string
		frame  Frame
		accept bool
	}{
		{
			name:   "unicast match",
			frame:  Frame{Control: NewFrameControl(FrameData, 0, 0, FCFIntraPAN), DstPAN: pan, Dst: ShortAddress(short), Src: ShortAddress(9), Payload: []byte("hi")},
			accept: true,
		},
		{
			name:   "broadcast address",
			frame:  Frame{Control: NewFrameControl(FrameData, 0, 0, FCFIntraPAN), DstPAN: pan, Dst: BroadcastAddress, Src: ShortAddress(9), Payload: []byte("hi")},
			accept: true,
		},
		{
			name:   "broadcast pan",
			frame:  Frame{Control: NewFrameControl(FrameData, 0, 0, 0), DstPAN: BroadcastPAN, Dst: BroadcastAddress, SrcPAN: 0x9999, Src: ShortAddress(9), Payload: []byte("hi")},
			accept: true,
		},
		{
			name:   "other address",
			frame:  Frame{Control: NewFrameControl(FrameData, 0, 0, FCFIntraPAN), DstPAN: pan, Dst: ShortAddress(2), Src: ShortAddress(9), Payload: []byte("hi")},
			accept: false,
		},
		{
			name:   "other pan",
			frame:  Frame{Control: NewFrameControl(FrameData, 0, 0, FCFIntraPAN), DstPAN: 0x4321, Dst: ShortAddress(short), Src: ShortAddress(9), Payload: []byte("hi")},
			accept: false,
		},
		{
			name:   "long address mismatch",
			frame:  Frame{Control: NewFrameControl(FrameData, 0, 0, FCFIntraPAN), DstPAN: pan, Dst: LongAddress(0x0102030405060708), Src: ShortAddress(9)},
			accept: false,
		},
		{
			name:   "ack frame",
			frame:  Frame{Control: NewFrameControl(FrameAck, 0, 0, 0), Seq: 7},
			accept: true,
		},
		{
			name:   "no destination, not coordinator",
			frame:  Frame{Control: NewFrameControl(FrameData, 0, 0, 0), SrcPAN: pan, Src: ShortAddress(9), Payload: []byte("x")},
			accept: false,
		},
		{
			name:   "beacon from own pan",
			frame:  Frame{Control: NewFrameControl(FrameBeacon, 0, 0, 0), SrcPAN: pan, Src: ShortAddress(9), Payload: []byte{0, 0}},
			accept: true,
		},
		{
			name:   "beacon from another pan",
			frame:  Frame{Control: NewFrameControl(FrameBeacon, 0, 0, 0), SrcPAN: 0x4321, Src: ShortAddress(9), Payload: []byte{0, 0}},
			accept: false,
		},
		{
			name:   "reserved frame type",
			frame:  Frame{Control: FrameControl(5), Payload: []byte{1, 2}},
			accept: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newIdleDevice(t)
			setLocalAddress(d, pan, short)
			startRX(t, d)
			feed(d, preamble...)
			air := onAir(t, tt.frame)
			feed(d, air...)

			if tt.accept {
				if d.rx.Available() != len(air) {
					t.Fatalf("accepted frame: %d bytes buffered, want %d", d.rx.Available(), len(air))
				}
				if !d.Level(PinFIFOP) {
					t.Error("FIFOP low for an accepted frame")
				}
				return
			}
			if d.rx.Available() != 0 {
				t.Errorf("rejected frame left %d bytes buffered", d.rx.Available())
			}
		})
	}
}

func TestPanCoordinatorAcceptsNoDestination(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeReg(d, RegMDMCTRL0, 0x0AE2|mdmPanCoordinator)
	setLocalAddress(d, 0x1234, 1)
	startRX(t, d)
	feed(d, preamble...)
	air := onAir(t, Frame{Control: NewFrameControl(FrameData, 0, 0, 0), SrcPAN: 0x1234, Src: ShortAddress(9), Payload: []byte("x")})
	feed(d, air...)
	if d.rx.Available() != len(air) {
		t.Errorf("coordinator dropped the frame: %d bytes buffered", d.rx.Available())
	}
}

func TestRXOverflowAndFlush(t *testing.T) {
	d, _, log := newIdleDevice(t)
	writeReg(d, RegMDMCTRL0, 0x0AE2&^(mdmAdrDecode|mdmAutoCRC))
	startRX(t, d)

	feed(d, preamble...)
	feed(d, 127)
	for i := 0; i < 127; i++ {
		feed(d, byte(i))
	}
	if d.State() != StateRXOverflow {
		t.Fatalf("expected RX_OVERFLOW, got %s", d.State())
	}
	if d.Level(PinFIFO) || !d.Level(PinFIFOP) {
		t.Error("overflow must drive FIFO low and FIFOP high")
	}
	if len(log.warns) == 0 {
		t.Error("overflow was not logged")
	}

	strobe(d, StrobeSRXON)
	if d.State() != StateRXOverflow {
		t.Fatalf("SRXON should be rejected in overflow, got %s", d.State())
	}
	strobe(d, StrobeSFLUSHRX)
	if d.State() != StateRXSFDSearch {
		t.Fatalf("expected RX_SFD_SEARCH after flush, got %s", d.State())
	}
	if d.Level(PinFIFOP) || d.Level(PinFIFO) {
		t.Error("pins still asserted after flush")
	}
}

func TestFIFOPThreshold(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	// Threshold of 3 bytes, address decode off.
	writeReg(d, RegIOCFG0, 0x0003)
	disableAddressDecode(d)
	startRX(t, d)

	feed(d, preamble...)
	feed(d, 20, 1, 2)
	if d.Level(PinFIFOP) {
		t.Fatal("FIFOP high at the threshold")
	}
	feed(d, 3)
	if !d.Level(PinFIFOP) {
		t.Fatal("FIFOP low above the threshold")
	}
}

func TestFIFOPWaitsForAddressMatch(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeReg(d, RegIOCFG0, 0x0002)
	setLocalAddress(d, 0x1234, 1)
	startRX(t, d)

	feed(d, preamble...)
	air := onAir(t, Frame{Control: NewFrameControl(FrameData, 0, 0, FCFIntraPAN), DstPAN: 0x1234, Dst: ShortAddress(1), Src: ShortAddress(2), Payload: []byte("payload")})
	// Length, FCF and sequence number: above the threshold but not yet
	// addressed.
	feed(d, air[:4]...)
	if d.Level(PinFIFOP) {
		t.Fatal("FIFOP high before address recognition")
	}
	// Destination PAN and short address complete the match.
	feed(d, air[4:8]...)
	if !d.Level(PinFIFOP) {
		t.Fatal("FIFOP low after the address matched")
	}
}

func TestCarrierLossDropsPartialFrame(t *testing.T) {
	d, _, log := newIdleDevice(t)
	disableAddressDecode(d)
	startRX(t, d)
	feed(d, preamble...)
	feed(d, 10, 1, 2)
	advance(d, 10*d.ByteTime())
	if d.State() != StateRXSFDSearch {
		t.Fatalf("expected RX_SFD_SEARCH after carrier loss, got %s", d.State())
	}
	if d.rx.Available() != 0 {
		t.Errorf("partial frame left %d bytes", d.rx.Available())
	}
	if len(log.warns) == 0 {
		t.Error("carrier loss not logged")
	}
}

func TestFlushRewindsPartiallyReadFrame(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeReg(d, RegIOCFG0, 0x0001)
	disableAddressDecode(d)
	startRX(t, d)
	feed(d, preamble...)
	feed(d, 8, 1, 2, 3)

	// Firmware starts reading before the frame is complete.
	if got := readRXFIFO(d, 2); !bytes.Equal(got, []byte{8, 1}) {
		t.Fatalf("early read = %X", got)
	}
	feed(d, 4, 5, 6, 0xBA, 0xD0)
	if d.rx.Available() != 0 || d.rx.read != d.rx.write {
		t.Fatalf("bad frame not rewound: read %d write %d", d.rx.read, d.rx.write)
	}
}

func TestReceiveIgnoresOtherChannel(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	startRX(t, d)
	for _, b := range preamble {
		rb := radioByte(d, b)
		rb.FrequencyMHz = 2410
		d.Receive(rb)
		advance(d, d.ByteTime())
	}
	if d.State() != StateRXSFDSearch {
		t.Errorf("synced on another channel: %s", d.State())
	}
}

func TestReceiveBelowSensitivity(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	startRX(t, d)
	for _, b := range preamble {
		rb := radioByte(d, b)
		rb.PowerDBm = -99
		d.Receive(rb)
		advance(d, d.ByteTime())
	}
	if d.State() != StateRXSFDSearch {
		t.Errorf("decoded a signal below sensitivity: %s", d.State())
	}
}

func TestCCAThreshold(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	// CCA mode 1, threshold -32 (-77 dBm).
	writeReg(d, RegMDMCTRL0, 0x0A62)
	startRX(t, d)
	if !d.Level(PinCCA) {
		t.Fatal("CCA low on a quiet channel")
	}
	for i := 0; i < 8; i++ {
		feed(d, 0x55)
	}
	if d.Level(PinCCA) {
		t.Fatal("CCA high with a -50 dBm carrier")
	}
	if v, ok := d.RSSI(); !ok || v != -50 {
		t.Errorf("RSSI = %v (valid %v), want -50", v, ok)
	}
	advance(d, 20*d.SymbolTime())
	if !d.Level(PinCCA) {
		t.Error("CCA did not recover after the carrier stopped")
	}
}

func TestSTXONCCARequiresClearChannel(t *testing.T) {
	d, _, _ := newIdleDevice(t)
	writeTXFIFO(d, 5, 1, 2, 3)
	strobe(d, StrobeSTXONCCA)
	if d.State() != StateIdle {
		t.Fatalf("STXONCCA in Idle without RSSI: %s", d.State())
	}
	startRX(t, d)
	writeReg(d, RegMDMCTRL0, 0x0A62)
	for i := 0; i < 8; i++ {
		feed(d, 0x55)
	}
	strobe(d, StrobeSTXONCCA)
	if d.State() != StateRXSFDSearch {
		t.Fatalf("STXONCCA on a busy channel: %s", d.State())
	}
	advance(d, 20*d.SymbolTime())
	strobe(d, StrobeSTXONCCA)
	if d.State() != StateTXCalibrate {
		t.Fatalf("STXONCCA on a clear channel: %s", d.State())
	}
}

func TestRSSIValueRange(t *testing.T) {
	tests := []struct {
		in   float64
		want int8
	}{
		{-45, 0},
		{-100, -55},
		{0, 45},
		{200, 127},
		{-300, -128},
	}
	for _, tt := range tests {
		if got := rssiValue(tt.in); got != tt.want {
			t.Errorf("rssiValue(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestBeaconAccept(t *testing.T) {
	beacon := Frame{Control: NewFrameControl(FrameBeacon, 0, 0, 0), SrcPAN: 0x4321, Src: ShortAddress(9), Payload: []byte{0, 0}}

	// An unassociated node (PANID 0xFFFF) still filters beacons unless
	// BCN_ACCEPT is set.
	for _, accept := range []bool{false, true} {
		d, _, _ := newIdleDevice(t)
		setLocalAddress(d, BroadcastPAN, 0xFFFF)
		if accept {
			writeReg(d, RegIOCFG0, 0x0040|ioBcnAccept)
		}
		startRX(t, d)
		feed(d, preamble...)
		air := onAir(t, beacon)
		feed(d, air...)

		want := 0
		if accept {
			want = len(air)
		}
		if got := d.rx.Available(); got != want {
			t.Errorf("BCN_ACCEPT=%v: %d bytes buffered, want %d", accept, got, want)
		}
	}
}
