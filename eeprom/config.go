package eeprom

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-twi/logger"
)

// Config describes a 24Cxx part.
type Config struct {
	Name string
	// Size is the capacity in bytes.
	Size int
	// PageSize is the write page size; it must be a power of two.
	PageSize int
	// AddrBytes is the length of the word address, 1 or 2. Parts with a
	// one-byte word address larger than 256 bytes select the bank with the
	// low bits of the device address.
	AddrBytes int
	// WriteTime is the maximum self-timed write cycle.
	WriteTime time.Duration
}

// Common parts.
var (
	Conf24C02  = Config{Name: "24C02", Size: 256, PageSize: 8, AddrBytes: 1, WriteTime: 5 * time.Millisecond}
	Conf24C04  = Config{Name: "24C04", Size: 512, PageSize: 16, AddrBytes: 1, WriteTime: 5 * time.Millisecond}
	Conf24C16  = Config{Name: "24C16", Size: 2048, PageSize: 16, AddrBytes: 1, WriteTime: 5 * time.Millisecond}
	Conf24C32  = Config{Name: "24C32", Size: 4096, PageSize: 32, AddrBytes: 2, WriteTime: 10 * time.Millisecond}
	Conf24C256 = Config{Name: "24C256", Size: 32768, PageSize: 64, AddrBytes: 2, WriteTime: 5 * time.Millisecond}
)

// Banks returns the number of device addresses the part occupies.
func (c Config) Banks() int {
	if c.AddrBytes == 2 || c.Size <= 256 {
		return 1
	}

	return c.Size / 256
}

func (c Config) validate() error {
	switch {
	case c.Size <= 0:
		return fmt.Errorf("%w: size %d", ErrInvalidConfig, c.Size)
	case c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0:
		return fmt.Errorf("%w: page size %d is not a power of two", ErrInvalidConfig, c.PageSize)
	case c.Size%c.PageSize != 0:
		return fmt.Errorf("%w: size %d is not a multiple of page size %d", ErrInvalidConfig, c.Size, c.PageSize)
	case c.AddrBytes != 1 && c.AddrBytes != 2:
		return fmt.Errorf("%w: word address of %d bytes", ErrInvalidConfig, c.AddrBytes)
	case c.AddrBytes == 1 && c.Size > 256 && c.Size%256 != 0:
		return fmt.Errorf("%w: size %d is not a multiple of the 256-byte bank", ErrInvalidConfig, c.Size)
	case c.AddrBytes == 2 && c.Size > 1<<16:
		return fmt.Errorf("%w: size %d exceeds the 16-bit word address", ErrInvalidConfig, c.Size)
	}

	return nil
}

// Option is a functional option for configuring a Device.
type Option interface {
	apply(*Device) error
}

type optFunc func(*Device) error

func (f optFunc) apply(d *Device) error { return f(d) }

// WithMaxChunk limits the bytes moved by a single bus transaction,
// including the word address of writes. It must not exceed the master
// buffer of the controller behind the bus.
func WithMaxChunk(n int) Option {
	return optFunc(func(d *Device) error {
		if n < 3 {
			return fmt.Errorf("eeprom: max chunk %d too small", n)
		}
		d.maxChunk = n

		return nil
	})
}

// WithPollInterval sets the delay between acknowledge polls while the part
// is busy writing.
func WithPollInterval(interval time.Duration) Option {
	return optFunc(func(d *Device) error {
		if interval <= 0 {
			return fmt.Errorf("eeprom: poll interval %s must be positive", interval)
		}
		d.pollInterval = interval

		return nil
	})
}

// WithWriteTimeout sets how long acknowledge polling waits for a page
// write to finish. It defaults to twice the write time of the part.
func WithWriteTimeout(timeout time.Duration) Option {
	return optFunc(func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("eeprom: write timeout %s must be positive", timeout)
		}
		d.writeTimeout = timeout

		return nil
	})
}

// WithLogger sets the logger of the device.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(d *Device) error {
		if l == nil {
			return errors.New("eeprom: logger must not be nil")
		}
		d.logger = l

		return nil
	})
}
