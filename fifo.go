package cc2420

const (
	fifoSize    = 128
	maxFrameLen = 127
)

// FIFO is the contract shared by the TX and RX buffers.
type FIFO interface {
	Push(b byte) error
	Pop() (byte, error)
	Peek() (byte, bool)
	Available() int
}

var (
	_ FIFO = (*txFIFO)(nil)
	_ FIFO = (*rxFIFO)(nil)
)

// txFIFO is the linear TX buffer backed by RAM bank 0. Index 0 holds the
// frame length field. Contents survive a transmission so STXON can resend.
type txFIFO struct {
	buf     []byte
	autoCRC func() bool
	read    int
	write   int
	needed  int
}

// Push appends a byte. The first byte after the FIFO was empty is the
// length field; afterwards at most needed bytes are accepted.
func (f *txFIFO) Push(b byte) error {
	if f.write == 0 {
		length := int(b & 0x7F)
		f.buf[0] = byte(length)
		f.write = 1
		f.needed = length
		if f.autoCRC != nil && f.autoCRC() {
			f.needed -= 2
		}
		if f.needed < 0 {
			f.needed = 0
		}
		return nil
	}
	if f.write-1 >= f.needed || f.write >= len(f.buf) {
		return ErrTooMuchData
	}
	f.buf[f.write] = b
	f.write++
	return nil
}

func (f *txFIFO) Pop() (byte, error) {
	if f.read >= f.write {
		return 0, ErrFIFOEmpty
	}
	b := f.buf[f.read]
	f.read++
	return b, nil
}

func (f *txFIFO) Peek() (byte, bool) {
	if f.read >= f.write {
		return 0, false
	}
	return f.buf[f.read], true
}

func (f *txFIFO) Available() int { return f.write - f.read }

func (f *txFIFO) empty() bool { return f.write == 0 }

// frameLength is the length field of the buffered frame.
func (f *txFIFO) frameLength() int { return int(f.buf[0] & 0x7F) }

func (f *txFIFO) rewind() { f.read = 0 }

func (f *txFIFO) flush() {
	f.read = 0
	f.write = 0
	f.needed = 0
}

// frameBounds marks a completely received frame inside the RX ring:
// start is the index of its length byte, end the index of its last byte.
type frameBounds struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// rxFIFO is the circular RX buffer backed by RAM bank 1.
type rxFIFO struct {
	buf    []byte
	read   int
	write  int
	frames []frameBounds
}

func (f *rxFIFO) size() int { return len(f.buf) }

// Push fails with ErrFIFOOverflow when advancing the write index would
// reach the read index; the write index is left untouched.
func (f *rxFIFO) Push(b byte) error {
	next := (f.write + 1) % f.size()
	if next == f.read {
		return ErrFIFOOverflow
	}
	f.buf[f.write] = b
	f.write = next
	return nil
}

// Pop removes the oldest byte. Popping the last byte of a buffered frame
// retires that frame.
func (f *rxFIFO) Pop() (byte, error) {
	if f.read == f.write {
		return 0, ErrFIFOEmpty
	}
	popped := f.read
	b := f.buf[popped]
	f.read = (f.read + 1) % f.size()
	if len(f.frames) > 0 && popped == f.frames[0].End {
		f.frames = f.frames[1:]
	}
	return b, nil
}

func (f *rxFIFO) Peek() (byte, bool) {
	if f.read == f.write {
		return 0, false
	}
	return f.buf[f.read], true
}

func (f *rxFIFO) Available() int {
	return (f.write - f.read + f.size()) % f.size()
}

// distance is the number of ring steps from a to b.
func (f *rxFIFO) distance(a, b int) int {
	return (b - a + f.size()) % f.size()
}

// getBuffer copies n bytes starting at ring index start without moving
// either cursor.
func (f *rxFIFO) getBuffer(start, n int) ([]byte, error) {
	if f.distance(start, f.write) < n {
		return nil, ErrShortBuffer
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = f.buf[(start+i)%f.size()]
	}
	return out, nil
}

func (f *rxFIFO) patch(index int, b byte) {
	f.buf[index%f.size()] = b
}

// rewind drops everything written since start. If the firmware already
// popped part of that data, the read cursor moves back to start as well.
func (f *rxFIFO) rewind(start int) {
	written := f.distance(start, f.write)
	consumed := f.distance(start, f.read)
	if consumed > 0 && consumed <= written {
		f.read = start
	}
	f.write = start
}

func (f *rxFIFO) flush() {
	f.read = 0
	f.write = 0
	f.frames = nil
}

// index returns the ring index n positions after start.
func (f *rxFIFO) index(start, n int) int { return (start + n) % f.size() }
