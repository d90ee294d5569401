// Package eeprom drives 24Cxx serial EEPROMs over any periph.io I²C bus.
//
// A Device is an io.ReadWriteSeeker over the memory array. Writes are split
// at page boundaries and each page write is followed by acknowledge
// polling, so a Write returns once the data is stored.
package eeprom

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-twi/internal/pool"
	"github.com/arloliu/go-twi/logger"
	"periph.io/x/conn/v3/i2c"
)

// DefaultMaxChunk matches the default master buffer of the controller.
const DefaultMaxChunk = 32

var (
	ErrInvalidConfig    = errors.New("eeprom: invalid configuration")
	ErrInvalidWhence    = errors.New("eeprom: invalid whence")
	ErrNegativePosition = errors.New("eeprom: negative position")
	ErrBeyondEnd        = errors.New("eeprom: position beyond end of array")
	ErrWriteTimeout     = errors.New("eeprom: write cycle timeout")
)

// Device is a 24Cxx EEPROM at a base address.
type Device struct {
	// banks holds one device handle per slave address the part occupies.
	banks  []*i2c.Dev
	addr   uint16
	cfg    Config
	logger logger.Logger

	maxChunk     int
	pollInterval time.Duration
	writeTimeout time.Duration

	p int
}

var _ io.ReadWriteSeeker = (*Device)(nil)

// New creates a device at the base address addr. Multi-bank parts occupy
// addr up to addr+Banks()-1.
func New(bus i2c.Bus, addr uint16, cfg Config, opts ...Option) (*Device, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	banks := uint16(cfg.Banks())
	if addr == 0 || addr+banks-1 > 0x77 {
		return nil, fmt.Errorf("eeprom: address 0x%02X out of range for %d banks", addr, banks)
	}
	if addr&(banks-1) != 0 {
		return nil, fmt.Errorf("eeprom: address 0x%02X not aligned to %d banks", addr, banks)
	}

	d := &Device{
		banks:        make([]*i2c.Dev, banks),
		addr:         addr,
		cfg:          cfg,
		logger:       logger.GetLogger(),
		maxChunk:     DefaultMaxChunk,
		pollInterval: time.Millisecond,
		writeTimeout: 2 * cfg.WriteTime,
	}

	for i := range d.banks {
		d.banks[i] = &i2c.Dev{Bus: bus, Addr: addr + uint16(i)}
	}

	for _, opt := range opts {
		if err := opt.apply(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Device) String() string {
	return fmt.Sprintf("%s@0x%02X", d.cfg.Name, d.addr)
}

// Size returns the capacity in bytes.
func (d *Device) Size() int {
	return d.cfg.Size
}

// locate returns the bank device and word address of position p.
func (d *Device) locate(p int) (*i2c.Dev, []byte) {
	if d.cfg.AddrBytes == 2 {
		return d.banks[0], []byte{byte(p >> 8), byte(p)}
	}

	return d.banks[p>>8], []byte{byte(p)}
}

// Read implements io.Reader. It reads from the current position up to the
// end of the array and returns io.EOF once the end is reached.
func (d *Device) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	n := min(len(b), d.cfg.Size-d.p)
	if n <= 0 {
		return 0, io.EOF
	}

	read := 0
	for read < n {
		chunk := min(n-read, d.maxChunk)
		if d.cfg.AddrBytes == 1 {
			// keep each transaction inside one bank
			chunk = min(chunk, 256-d.p%256)
		}

		dev, word := d.locate(d.p)
		if err := dev.Tx(word, b[read:read+chunk]); err != nil {
			return read, fmt.Errorf("eeprom: read at 0x%04X: %w", d.p, err)
		}

		d.p += chunk
		read += chunk
	}

	return read, nil
}

// Write implements io.Writer. Data beyond the end of the array is not
// written and io.EOF is returned with the count written.
func (d *Device) Write(b []byte) (int, error) {
	written := 0

	for len(b) > 0 && d.p < d.cfg.Size {
		n := d.cfg.PageSize - d.p%d.cfg.PageSize
		n = min(n, len(b), d.maxChunk-d.cfg.AddrBytes)

		dev, word := d.locate(d.p)
		buf := append(word, b[:n]...)
		if err := dev.Tx(buf, nil); err != nil {
			return written, fmt.Errorf("eeprom: write at 0x%04X: %w", d.p, err)
		}
		if err := d.waitReady(dev); err != nil {
			return written, err
		}

		d.p += n
		written += n
		b = b[n:]
	}

	if len(b) > 0 {
		return written, io.EOF
	}

	return written, nil
}

// waitReady polls the device with an address-only write until it
// acknowledges again after a page write.
func (d *Device) waitReady(dev *i2c.Dev) error {
	deadline := pool.GetTimer(d.writeTimeout)
	defer pool.PutTimer(deadline)

	polls := 0
	for {
		err := dev.Tx(nil, nil)
		if err == nil {
			if polls > 0 {
				d.logger.Debug("eeprom: write cycle done", "dev", dev.Addr, "polls", polls)
			}

			return nil
		}
		polls++

		wait := pool.GetTimer(d.pollInterval)
		select {
		case <-deadline.C:
			pool.PutTimer(wait)
			d.logger.Warn("eeprom: device busy after write", "dev", dev.Addr, "polls", polls)

			return fmt.Errorf("%w: %w", ErrWriteTimeout, err)
		case <-wait.C:
		}
		pool.PutTimer(wait)
	}
}

// Seek implements io.Seeker.
func (d *Device) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(d.p) + offset
	case io.SeekEnd:
		pos = int64(d.cfg.Size) + offset
	default:
		return int64(d.p), ErrInvalidWhence
	}

	if pos < 0 {
		return int64(d.p), ErrNegativePosition
	}
	if pos > int64(d.cfg.Size) {
		return int64(d.p), ErrBeyondEnd
	}
	d.p = int(pos)

	return pos, nil
}
