package cc2420

import (
	"bytes"
	"errors"
	"testing"
)

func newRXFIFO() *rxFIFO { return &rxFIFO{buf: make([]byte, fifoSize)} }

func TestRXFIFOInvariants(t *testing.T) {
	f := newRXFIFO()
	if _, err := f.Pop(); !errors.Is(err, ErrFIFOEmpty) {
		t.Fatalf("Pop on empty: %v", err)
	}
	if f.read != 0 || f.write != 0 {
		t.Fatal("Pop on empty moved the cursors")
	}

	// Interleave pushes and pops so the ring wraps several times.
	next, expect := byte(0), byte(0)
	for round := 0; round < 10; round++ {
		for i := 0; i < 90; i++ {
			if err := f.Push(next); err != nil {
				t.Fatalf("round %d push %d: %v", round, i, err)
			}
			next++
		}
		for i := 0; i < 90; i++ {
			b, err := f.Pop()
			if err != nil || b != expect {
				t.Fatalf("round %d pop %d: got %d, %v; want %d", round, i, b, err, expect)
			}
			expect++
			want := (f.write - f.read + fifoSize) % fifoSize
			if f.Available() != want {
				t.Fatalf("Available %d, want %d", f.Available(), want)
			}
		}
	}
}

func TestRXFIFOOverflow(t *testing.T) {
	f := newRXFIFO()
	for i := 0; i < fifoSize-1; i++ {
		if err := f.Push(byte(i)); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	write := f.write
	if err := f.Push(0xFF); !errors.Is(err, ErrFIFOOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if f.write != write {
		t.Error("overflowing push moved the write cursor")
	}
	if f.Available() != fifoSize-1 {
		t.Errorf("Available = %d", f.Available())
	}
}

func TestRXFIFOFrames(t *testing.T) {
	f := newRXFIFO()
	for _, b := range []byte{2, 0xAA, 0xBB, 1, 0xCC} {
		f.Push(b)
	}
	f.frames = []frameBounds{{Start: 0, End: 2}, {Start: 3, End: 4}}

	for i := 0; i < 3; i++ {
		f.Pop()
	}
	if len(f.frames) != 1 || f.frames[0].Start != 3 {
		t.Fatalf("first frame not retired: %+v", f.frames)
	}
	f.Pop()
	f.Pop()
	if len(f.frames) != 0 {
		t.Fatalf("second frame not retired: %+v", f.frames)
	}
}

func TestRXFIFOGetBuffer(t *testing.T) {
	f := newRXFIFO()
	f.read, f.write = fifoSize-2, fifoSize-2
	for _, b := range []byte{1, 2, 3, 4} {
		f.Push(b)
	}
	got, err := f.getBuffer(fifoSize-2, 4)
	if err != nil || !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("getBuffer across the wrap = %X, %v", got, err)
	}
	if f.read != fifoSize-2 || f.write != 2 {
		t.Error("getBuffer moved the cursors")
	}
	if _, err := f.getBuffer(fifoSize-2, 5); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("expected ErrShortBuffer, got %v", err)
	}
}

func TestRXFIFORewind(t *testing.T) {
	tests := []struct {
		name     string
		popped   int
		wantRead int
	}{
		{"unread", 0, 5},
		{"partially read", 3, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRXFIFO()
			for i := 0; i < 5; i++ {
				f.Push(0xEE)
				f.Pop()
			}
			start := f.write
			for i := 0; i < 6; i++ {
				f.Push(byte(i))
			}
			for i := 0; i < tt.popped; i++ {
				f.Pop()
			}
			f.rewind(start)
			if f.write != start || f.read != tt.wantRead {
				t.Errorf("after rewind read %d write %d, want %d %d", f.read, f.write, tt.wantRead, start)
			}
			if f.Available() != 0 {
				t.Errorf("Available = %d", f.Available())
			}
		})
	}
}

func TestRXFIFORewindKeepsOlderFrame(t *testing.T) {
	f := newRXFIFO()
	f.Push(1)
	f.Push(0x11)
	f.frames = []frameBounds{{Start: 0, End: 1}}
	start := f.write
	f.Push(5)
	f.Push(0x22)
	f.rewind(start)
	if f.Available() != 2 || f.read != 0 {
		t.Errorf("older frame lost: read %d write %d", f.read, f.write)
	}
}

func TestTXFIFOLength(t *testing.T) {
	tests := []struct {
		name    string
		autoCRC bool
		length  byte
		needed  int
	}{
		{"auto crc", true, 0x05, 3},
		{"no crc", false, 0x05, 5},
		{"reserved bit masked", false, 0x85, 5},
		{"short frame with crc", true, 0x01, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auto := tt.autoCRC
			f := &txFIFO{buf: make([]byte, fifoSize), autoCRC: func() bool { return auto }}
			if err := f.Push(tt.length); err != nil {
				t.Fatal(err)
			}
			if f.frameLength() != int(tt.length&0x7F) || f.needed != tt.needed {
				t.Fatalf("length %d needed %d", f.frameLength(), f.needed)
			}
			for i := 0; i < tt.needed; i++ {
				if err := f.Push(byte(i)); err != nil {
					t.Fatalf("push %d: %v", i, err)
				}
			}
			if err := f.Push(0xFF); !errors.Is(err, ErrTooMuchData) {
				t.Errorf("expected ErrTooMuchData, got %v", err)
			}
		})
	}
}

func TestTXFIFORewindAndFlush(t *testing.T) {
	f := &txFIFO{buf: make([]byte, fifoSize)}
	f.Push(2)
	f.Push(7)
	f.Push(8)
	for i := 0; i < 3; i++ {
		f.Pop()
	}
	if _, err := f.Pop(); !errors.Is(err, ErrFIFOEmpty) {
		t.Fatalf("expected ErrFIFOEmpty, got %v", err)
	}
	f.rewind()
	if b, ok := f.Peek(); !ok || b != 2 {
		t.Errorf("Peek after rewind = %d, %v", b, ok)
	}
	f.flush()
	if !f.empty() || f.Available() != 0 {
		t.Error("flush left data")
	}
}
