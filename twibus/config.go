package twibus

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-twi/logger"
	"github.com/arloliu/go-twi/twi"
)

// DefaultTimeout bounds a single Tx when no timeout is configured.
const DefaultTimeout = time.Second

// Option is a functional option for configuring a Bus.
type Option interface {
	apply(*Bus) error
}

type optFunc func(*Bus) error

func (f optFunc) apply(b *Bus) error { return f(b) }

// WithTimeout sets the time a transaction may take before Tx gives up
// waiting for its completion.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(b *Bus) error {
		if d <= 0 {
			return fmt.Errorf("twibus: timeout %s must be positive", d)
		}
		b.timeout = d

		return nil
	})
}

// WithSlaveHandler forwards completed slave sessions to fn.
func WithSlaveHandler(fn func(twi.SlaveResult)) Option {
	return optFunc(func(b *Bus) error {
		b.slaveHandler = fn
		return nil
	})
}

// WithLogger sets the logger of the bus. By default the controller's
// logger is used.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(b *Bus) error {
		if l == nil {
			return errors.New("twibus: logger must not be nil")
		}
		b.logger = l

		return nil
	})
}
