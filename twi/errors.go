package twi

import (
	"errors"
	"strings"
)

// Synchronous errors returned by the transfer initiator.
var (
	ErrConfigNil      = errors.New("twi: config is nil")
	ErrBusBusy        = errors.New("twi: bus busy")
	ErrBufferOverflow = errors.New("twi: buffer overflow")
	ErrEmptyTransfer  = errors.New("twi: empty read transfer")
	ErrNotSupported   = errors.New("twi: capability not configured")
	ErrInvalidAddress = errors.New("twi: invalid 7-bit address")
	ErrNotEnabled     = errors.New("twi: controller not enabled")
)

// Asynchronous errors, derived from Flags once a transfer has terminated.
var (
	ErrBusFault           = errors.New("twi: bus fault")
	ErrNoAcknowledge      = errors.New("twi: address not acknowledged")
	ErrNotAcknowledged    = errors.New("twi: data not acknowledged")
	ErrArbitrationTimeout = errors.New("twi: arbitration retry limit reached")
	ErrDoubleInterrupt    = errors.New("twi: collision while a preempted transfer is pending")
)

// Flags is the accumulated error set of the current transfer.
//
// Flags are OR'd by the protocol engines and cleared only when the
// initiator starts a new master transfer.
type Flags uint8

const (
	// FlagBusFault is an illegal start or stop on the wire.
	FlagBusFault Flags = 1 << iota
	// FlagNoAcknowledge means the target did not acknowledge its address.
	FlagNoAcknowledge
	// FlagNotAcknowledged means the target ended a write data phase early.
	FlagNotAcknowledged
	// FlagArbitrationLost means another master won the bus at least once.
	FlagArbitrationLost
	// FlagBufferOverflow means a receive would have written past a buffer.
	FlagBufferOverflow
	// FlagArbitrationTimeout means the configured retry limit was reached.
	FlagArbitrationTimeout
	// FlagDoubleInterrupt means this device was addressed as slave while a
	// previously preempted master transfer was still waiting to resume.
	FlagDoubleInterrupt
)

var flagNames = []struct {
	flag Flags
	name string
	err  error
}{
	{FlagBusFault, "BusFault", ErrBusFault},
	{FlagNoAcknowledge, "NoAcknowledge", ErrNoAcknowledge},
	{FlagNotAcknowledged, "NotAcknowledged", ErrNotAcknowledged},
	{FlagArbitrationLost, "ArbitrationLost", nil},
	{FlagBufferOverflow, "BufferOverflow", ErrBufferOverflow},
	{FlagArbitrationTimeout, "ArbitrationTimeout", ErrArbitrationTimeout},
	{FlagDoubleInterrupt, "DoubleInterrupt", ErrDoubleInterrupt},
}

// Has reports whether all flags in f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

func (f Flags) String() string {
	if f == 0 {
		return "None"
	}

	names := make([]string, 0, len(flagNames))
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}

	return strings.Join(names, "|")
}

// Err returns the terminal errors recorded in f joined together, or nil.
//
// FlagArbitrationLost alone is not an error: the engine restarted the
// transfer and it completed.
func (f Flags) Err() error {
	var errs []error
	for _, fn := range flagNames {
		if f&fn.flag != 0 && fn.err != nil {
			errs = append(errs, fn.err)
		}
	}

	return errors.Join(errs...)
}
