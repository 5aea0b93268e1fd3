package cc2420

import "math"

// CCAMode selects the clear channel assessment rule, MDMCTRL0.CCA_MODE.
type CCAMode uint8

const (
	// CCAAlwaysClear reports a clear channel whenever RSSI is valid.
	CCAAlwaysClear CCAMode = iota
	// CCAThreshold compares RSSI against RSSI.CCA_THR with CCA_HYST.
	CCAThreshold
	// CCANoFrame reports busy while a frame is being received.
	CCANoFrame
	// CCAThresholdNoFrame combines CCAThreshold and CCANoFrame.
	CCAThresholdNoFrame
)

func (m CCAMode) String() string {
	switch m {
	case CCAAlwaysClear:
		return "always-clear"
	case CCAThreshold:
		return "threshold"
	case CCANoFrame:
		return "no-frame"
	case CCAThresholdNoFrame:
		return "threshold+no-frame"
	default:
		return "unknown"
	}
}

const (
	// rssiOffset relates RSSI_VAL to input power: P = RSSI_VAL + rssiOffset.
	rssiOffset = -45
	rssiWindow = 8
)

// rssiFilter averages the last rssiWindow per-symbol power samples.
type rssiFilter struct {
	samples [rssiWindow]float64
	n       int
	pos     int
}

func (f *rssiFilter) clear() { *f = rssiFilter{} }

func (f *rssiFilter) add(dBm float64) {
	f.samples[f.pos] = dBm
	f.pos = (f.pos + 1) % rssiWindow
	if f.n < rssiWindow {
		f.n++
	}
}

func (f *rssiFilter) average() float64 {
	if f.n == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for i := 0; i < f.n; i++ {
		sum += f.samples[i]
	}
	return sum / float64(f.n)
}

// rssiValue converts input power to the signed RSSI_VAL register field.
func rssiValue(dBm float64) int8 {
	v := math.Round(dBm - rssiOffset)
	switch {
	case v > math.MaxInt8:
		return math.MaxInt8
	case v < math.MinInt8:
		return math.MinInt8
	}
	return int8(v)
}

// correlation maps an inbound SNR to the 7-bit correlation value appended
// to received frames.
func correlation(snr float64) byte {
	c := 50 + snr*3
	switch {
	case c > 110:
		c = 110
	case c < 50:
		c = 50
	}
	return byte(c)
}

// airPower is the power currently seen at the antenna.
func (d *Device) airPower() float64 {
	p := d.cfg.NoiseFloorDBm
	if d.air.on && d.now <= d.air.until && d.air.dBm > p {
		p = d.air.dBm
	}
	return p
}

// sampleRSSI takes one per-symbol RSSI sample and refreshes CCA.
func (d *Device) sampleRSSI() {
	if !d.state.receiving() {
		return
	}
	d.rssi.add(d.airPower())
	d.publishRSSI()
}

// publishRSSI mirrors the filtered RSSI into RSSI.RSSI_VAL once valid.
func (d *Device) publishRSSI() {
	if !d.rssiValid || d.rssi.n == 0 {
		return
	}
	d.regs.setRSSIValue(rssiValue(d.rssi.average()))
	d.updateCCA()
}

// updateCCA recomputes the clear channel assessment.
func (d *Device) updateCCA() {
	if !d.rssiValid || !d.state.receiving() {
		d.setCCA(false)
		return
	}
	m := d.regs.mdmctrl0()
	rssi := int(d.regs.rssiValue())
	thr := int(d.regs.ccaThreshold())
	switch {
	case rssi >= thr:
		d.ccaBusy = true
	case rssi < thr-m.ccaHyst():
		d.ccaBusy = false
	}
	noFrame := d.state != StateRXFrame
	var free bool
	switch m.ccaMode() {
	case CCAAlwaysClear:
		free = true
	case CCAThreshold:
		free = !d.ccaBusy
	case CCANoFrame:
		free = noFrame
	case CCAThresholdNoFrame:
		free = !d.ccaBusy && noFrame
	}
	d.setCCA(free)
}

func (d *Device) setCCA(free bool) {
	d.cca = free
	d.setSignal(PinCCA, free)
}

// RSSI returns the current averaged RSSI in dBm and whether it is valid.
func (d *Device) RSSI() (float64, bool) {
	if !d.rssiValid {
		return 0, false
	}
	return float64(d.regs.rssiValue()) + rssiOffset, true
}
