// Package twibus exposes a twi.Controller as a blocking periph.io I²C bus.
//
// The controller is event driven: a transfer is started and completes later
// from the event handler. Bus turns that into the synchronous Tx call every
// periph.io device driver expects, so drivers written against i2c.Bus and
// i2c.Dev run unchanged on top of the controller.
//
// Events must be delivered by another goroutine while Tx waits, for
// example by the interrupt handler of a real peripheral or sim.Bus.Run.
// Tx must not be called from a completion handler.
package twibus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-twi/internal/pool"
	"github.com/arloliu/go-twi/logger"
	"github.com/arloliu/go-twi/twi"
	"github.com/puzpuzpuz/xsync/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

var (
	// ErrTimeout is returned when a transaction did not complete in time.
	ErrTimeout = errors.New("twibus: transaction timeout")
	// ErrTransferFailed is returned for a failed transfer without a
	// terminal flag.
	ErrTransferFailed = errors.New("twibus: transfer failed")
)

type result struct {
	data []byte
	err  error
}

// Bus implements i2c.Bus over a twi.Controller.
type Bus struct {
	ctrl         *twi.Controller
	logger       logger.Logger
	timeout      time.Duration
	slaveHandler func(twi.SlaveResult)

	// txMu serializes transactions; the controller runs one master
	// transfer at a time.
	txMu     sync.Mutex
	seq      atomic.Uint32
	inflight atomic.Uint32
	waiters  *xsync.MapOf[uint32, chan result]
}

var _ i2c.Bus = (*Bus)(nil)

// New creates a bus on top of ctrl. It installs the completion handlers of
// the controller, replacing any set before.
func New(ctrl *twi.Controller, opts ...Option) (*Bus, error) {
	if ctrl == nil {
		return nil, errors.New("twibus: controller must not be nil")
	}

	b := &Bus{
		ctrl:    ctrl,
		logger:  ctrl.Config().GetLogger(),
		timeout: DefaultTimeout,
		waiters: xsync.NewMapOf[uint32, chan result](),
	}

	for _, opt := range opts {
		if err := opt.apply(b); err != nil {
			return nil, err
		}
	}

	ctrl.SetHandlers(twi.Handlers{
		MasterDone: b.onMasterDone,
		SlaveDone:  b.onSlaveDone,
		Error:      b.onError,
	})

	return b, nil
}

func (b *Bus) String() string {
	cfg := b.ctrl.Config()
	if cfg.SlaveEnabled() {
		return fmt.Sprintf("twi(0x%02X)", cfg.OwnAddress())
	}

	return "twi"
}

// SetSpeed implements i2c.Bus. The bus clock is fixed by the controller
// configuration, so only that frequency is accepted.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if cur := b.ctrl.Config().BusFrequency(); f != cur {
		return fmt.Errorf("%w: bus clock is %s, cannot change to %s", twi.ErrNotSupported, cur, f)
	}

	return nil
}

// Tx implements i2c.Bus.
//
// A write-only Tx is a master write, a read-only Tx a master read. With both
// w and r the write is followed by a repeated start and the read, using
// enhanced addressing; without that capability the two run as separate
// transfers.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.TxContext(context.Background(), addr, w, r)
}

// TxContext is Tx with a context bounding the wait for completion.
func (b *Bus) TxContext(ctx context.Context, addr uint16, w, r []byte) error {
	if addr > twi.MaxAddress {
		return fmt.Errorf("%w: 0x%X", twi.ErrInvalidAddress, addr)
	}
	address := uint8(addr)

	b.txMu.Lock()
	defer b.txMu.Unlock()

	switch {
	case len(r) == 0:
		_, err := b.transfer(ctx, func() error { return b.ctrl.BeginWrite(address, w) })
		return err

	case len(w) == 0:
		return b.read(ctx, r, func() error { return b.ctrl.BeginRead(address, len(r)) })

	case b.ctrl.Config().EnhancedAddressing():
		return b.read(ctx, r, func() error { return b.ctrl.BeginEnhancedAccess(address, w, len(r)) })

	default:
		b.logger.Debug("twibus: splitting write-read without enhanced addressing", "addr", address)
		if _, err := b.transfer(ctx, func() error { return b.ctrl.BeginWrite(address, w) }); err != nil {
			return err
		}

		return b.read(ctx, r, func() error { return b.ctrl.BeginRead(address, len(r)) })
	}
}

func (b *Bus) read(ctx context.Context, r []byte, begin func() error) error {
	data, err := b.transfer(ctx, begin)
	if err != nil {
		return err
	}
	if n := copy(r, data); n < len(r) {
		return fmt.Errorf("twibus: short read, %d of %d bytes", n, len(r))
	}

	return nil
}

// transfer starts one master transfer and waits for its completion.
func (b *Bus) transfer(ctx context.Context, begin func() error) ([]byte, error) {
	id := b.seq.Add(1)
	ch := make(chan result, 1)
	b.waiters.Store(id, ch)
	b.inflight.Store(id)
	defer b.waiters.Delete(id)

	if err := begin(); err != nil {
		return nil, err
	}

	timer := pool.GetTimer(b.timeout)
	defer pool.PutTimer(timer)

	select {
	case res := <-ch:
		return res.data, res.err
	case <-timer.C:
		b.logger.Warn("twibus: transaction timeout", "id", id, "timeout", b.timeout)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reply hands the result to the waiting transaction, if it is still there.
func (b *Bus) reply(res result) {
	id := b.inflight.Load()
	ch, ok := b.waiters.Load(id)
	if !ok {
		b.logger.Debug("twibus: completion without waiting transaction", "id", id, "err", res.err)
		return
	}

	select {
	case ch <- res:
	default:
		b.logger.Warn("twibus: duplicate completion dropped", "id", id)
	}
}

func (b *Bus) onMasterDone(res twi.MasterResult) {
	b.reply(result{data: res.Data, err: res.Err()})
}

func (b *Bus) onError(flags twi.Flags) {
	// Errors raised while the transfer continues, such as a collision
	// during a preempted transfer, are not its completion.
	if b.ctrl.State().Busy {
		b.logger.Debug("twibus: error while transfer in progress", "flags", flags.String())
		return
	}

	err := flags.Err()
	if err == nil {
		err = fmt.Errorf("%w: %s", ErrTransferFailed, flags)
	}
	b.reply(result{err: err})
}

func (b *Bus) onSlaveDone(res twi.SlaveResult) {
	if b.slaveHandler != nil {
		b.slaveHandler(res)
	}
}
