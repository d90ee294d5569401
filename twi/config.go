package twi

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-twi/logger"
	"periph.io/x/conn/v3/physic"
)

// Default capacities and clock values.
const (
	DefaultMasterBufferSize     = 32
	DefaultSlaveInBufferSize    = 16
	DefaultSlaveOutBufferSize   = 16
	DefaultSubAddressBufferSize = 2

	DefaultCPUFrequency = 16 * physic.MegaHertz
	DefaultBusFrequency = 100 * physic.KiloHertz
)

// Capacity and address limits.
const (
	MaxBufferSize     = 255
	MaxSubAddressSize = 4

	// MaxAddress is the highest 7-bit address outside the reserved range.
	MaxAddress = 0x77

	// GeneralCallAddress is the broadcast address.
	GeneralCallAddress = 0x00
)

// Config holds the build-time and startup parameters of a controller.
//
// A Config is immutable once passed to NewController.
type Config struct {
	masterBufferSize int

	slaveEnabled       bool
	ownAddress         uint8
	generalCall        bool
	slaveInBufferSize  int
	slaveOutBufferSize int

	enhancedAddressing   bool
	subAddressBufferSize int

	cpuFreq   physic.Frequency
	busFreq   physic.Frequency
	bitRate   uint8
	prescaler Prescaler
	pullups   bool

	// arbitrationRetryLimit is 0 for unbounded retries.
	arbitrationRetryLimit int

	logger logger.Logger
}

// NewConfig creates a controller configuration.
//
// Without options the controller is master-only with a 32-byte buffer,
// no enhanced addressing and a 100 kHz bus clock derived from a 16 MHz
// CPU clock.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		masterBufferSize:     DefaultMasterBufferSize,
		slaveInBufferSize:    DefaultSlaveInBufferSize,
		slaveOutBufferSize:   DefaultSlaveOutBufferSize,
		subAddressBufferSize: DefaultSubAddressBufferSize,
		cpuFreq:              DefaultCPUFrequency,
		busFreq:              DefaultBusFrequency,
		logger:               logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	twbr, p, err := BitRate(cfg.cpuFreq, cfg.busFreq)
	if err != nil {
		return nil, err
	}
	cfg.bitRate = twbr
	cfg.prescaler = p

	return cfg, nil
}

// --- Getters ---

// MasterBufferSize returns the master buffer capacity.
func (cfg *Config) MasterBufferSize() int { return cfg.masterBufferSize }

// SlaveEnabled returns true if the controller runs as master+slave.
func (cfg *Config) SlaveEnabled() bool { return cfg.slaveEnabled }

// OwnAddress returns the 7-bit slave address.
func (cfg *Config) OwnAddress() uint8 { return cfg.ownAddress }

// GeneralCall returns whether the general call address is acknowledged.
func (cfg *Config) GeneralCall() bool { return cfg.generalCall }

// SlaveInBufferSize returns the capacity for bytes written by a remote master.
func (cfg *Config) SlaveInBufferSize() int { return cfg.slaveInBufferSize }

// SlaveOutBufferSize returns the capacity for bytes read by a remote master.
func (cfg *Config) SlaveOutBufferSize() int { return cfg.slaveOutBufferSize }

// EnhancedAddressing returns whether sub-address transfers are available.
func (cfg *Config) EnhancedAddressing() bool { return cfg.enhancedAddressing }

// SubAddressBufferSize returns the sub-address capacity.
func (cfg *Config) SubAddressBufferSize() int { return cfg.subAddressBufferSize }

// CPUFrequency returns the peripheral input clock.
func (cfg *Config) CPUFrequency() physic.Frequency { return cfg.cpuFreq }

// BusFrequency returns the requested bus clock.
func (cfg *Config) BusFrequency() physic.Frequency { return cfg.busFreq }

// BitRate returns the derived bit rate register value and prescaler.
func (cfg *Config) BitRate() (uint8, Prescaler) { return cfg.bitRate, cfg.prescaler }

// Pullups returns whether the internal pull-ups are enabled.
func (cfg *Config) Pullups() bool { return cfg.pullups }

// ArbitrationRetryLimit returns the retry ceiling; 0 means unbounded.
func (cfg *Config) ArbitrationRetryLimit() int { return cfg.arbitrationRetryLimit }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Setup returns the hardware register setup for this configuration.
func (cfg *Config) Setup() Setup {
	return Setup{
		OwnAddress:   cfg.ownAddress,
		GeneralCall:  cfg.generalCall,
		SlaveEnabled: cfg.slaveEnabled,
		Pullups:      cfg.pullups,
		BitRate:      cfg.bitRate,
		Prescaler:    cfg.prescaler,
	}
}

// --- Option ---

// Option is a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func checkBufferSize(name string, n int) error {
	if n < 1 || n > MaxBufferSize {
		return fmt.Errorf("twi: %s buffer size %d out of range [1, %d]", name, n, MaxBufferSize)
	}

	return nil
}

// WithMasterBufferSize sets the master buffer capacity.
func WithMasterBufferSize(n int) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkBufferSize("master", n); err != nil {
			return err
		}
		cfg.masterBufferSize = n

		return nil
	})
}

// WithSlave enables the slave capability with the given own address.
func WithSlave(ownAddress uint8) Option {
	return optFunc(func(cfg *Config) error {
		if ownAddress == GeneralCallAddress || ownAddress > MaxAddress {
			return fmt.Errorf("twi: own address 0x%02X out of range [0x01, 0x%02X]", ownAddress, MaxAddress)
		}
		cfg.slaveEnabled = true
		cfg.ownAddress = ownAddress

		return nil
	})
}

// WithGeneralCall enables or disables general call recognition.
// It has no effect unless the slave capability is enabled.
func WithGeneralCall(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.generalCall = enabled

		return nil
	})
}

// WithSlaveBufferSizes sets the slave receive and transmit capacities.
func WithSlaveBufferSizes(in, out int) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkBufferSize("slave in", in); err != nil {
			return err
		}
		if err := checkBufferSize("slave out", out); err != nil {
			return err
		}
		cfg.slaveInBufferSize = in
		cfg.slaveOutBufferSize = out

		return nil
	})
}

// WithEnhancedAddressing enables write-sub-address-then-read transfers with
// the given sub-address capacity.
func WithEnhancedAddressing(subAddressSize int) Option {
	return optFunc(func(cfg *Config) error {
		if subAddressSize < 1 || subAddressSize > MaxSubAddressSize {
			return fmt.Errorf("twi: sub-address size %d out of range [1, %d]", subAddressSize, MaxSubAddressSize)
		}
		cfg.enhancedAddressing = true
		cfg.subAddressBufferSize = subAddressSize

		return nil
	})
}

// WithClock sets the peripheral input clock and the requested bus clock.
func WithClock(cpu, scl physic.Frequency) Option {
	return optFunc(func(cfg *Config) error {
		if cpu <= 0 || scl <= 0 {
			return errors.New("twi: clock frequencies must be positive")
		}
		cfg.cpuFreq = cpu
		cfg.busFreq = scl

		return nil
	})
}

// WithPullups enables or disables the internal pull-ups.
func WithPullups(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.pullups = enabled

		return nil
	})
}

// WithArbitrationRetryLimit bounds the number of consecutive arbitration
// losses a master transfer tolerates. 0 restores unbounded retries.
func WithArbitrationRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 {
			return fmt.Errorf("twi: arbitration retry limit %d must not be negative", n)
		}
		cfg.arbitrationRetryLimit = n

		return nil
	})
}

// WithLogger sets the logger for the controller.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("twi: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
