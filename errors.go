package cc2420

import "errors"

var (
	ErrPkg = errors.New("cc2420")

	// FIFO results. These are expected operating conditions, surfaced to
	// firmware through pins and FSM states.
	ErrFIFOOverflow = errors.New("fifo overflow")
	ErrFIFOEmpty    = errors.New("fifo empty")
	ErrTooMuchData  = errors.New("txfifo: too much data for announced frame length")

	// Protocol violations: the access is dropped and logged.
	ErrAccessDenied   = errors.New("memory access denied in current state")
	ErrAddressRange   = errors.New("address out of range")
	ErrReadOnly       = errors.New("register is read-only")
	ErrStrobeRejected = errors.New("strobe not accepted in current state")
	ErrBusIdle        = errors.New("spi byte while CSn is high")

	// Configuration and internal errors.
	ErrBadBank       = errors.New("invalid ram bank")
	ErrFrameTooLong  = errors.New("frame length exceeds maximum")
	ErrShortBuffer   = errors.New("fewer bytes buffered than requested")
	ErrBadSnapshot   = errors.New("snapshot does not match device layout")
	ErrBusMode       = errors.New("unsupported spi mode")
	ErrNoTransmitter = errors.New("no transmitter attached")
)
