package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-twi/internal/queue"
	"github.com/arloliu/go-twi/logger"
	"github.com/arloliu/go-twi/twi"
)

var (
	// ErrTargetExists is returned when an address already has a target.
	ErrTargetExists = errors.New("sim: target address already in use")
	// ErrInvalidAddress is returned for addresses outside the 7-bit range.
	ErrInvalidAddress = errors.New("sim: invalid target address")
)

// EventHandler consumes the status events produced by the bus.
// *twi.Controller satisfies it.
type EventHandler interface {
	HandleEvent(ev twi.Event)
}

// wire is the bus condition as seen from the simulated peripheral.
type wire uint8

const (
	wireIdle wire = iota
	// wireStarted: a start or repeated start was sent, the address is next.
	wireStarted
	wireWrite
	wireRead
	// wireAddrNack: the address was not acknowledged, a stop is expected.
	wireAddrNack
	// wireRemote: a remote master is addressing this peripheral.
	wireRemote
)

func (w wire) String() string {
	switch w {
	case wireIdle:
		return "idle"
	case wireStarted:
		return "started"
	case wireWrite:
		return "write"
	case wireRead:
		return "read"
	case wireAddrNack:
		return "addrNack"
	case wireRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Bus is a simulated two-wire bus with the peripheral of the device under
// test attached to it.
//
// It implements twi.Hardware and twi.EventMasker.
type Bus struct {
	mu      sync.Mutex
	logger  logger.Logger
	handler EventHandler

	events   queue.Queue[twi.Event]
	signal   chan struct{}
	masked   atomic.Int32
	draining atomic.Bool

	setup      twi.Setup
	configured bool

	state     wire
	fresh     bool
	cur       Target
	bytesSent int

	targets map[uint8]Target

	remotes    queue.Queue[*Transaction]
	collisions queue.Queue[*Transaction]
	losses     []int
	session    *session

	applied atomic.Uint64
}

var (
	_ twi.Hardware    = (*Bus)(nil)
	_ twi.EventMasker = (*Bus)(nil)
)

// Option is a functional option for configuring a Bus.
type Option interface {
	apply(*Bus)
}

type optFunc func(*Bus)

func (f optFunc) apply(b *Bus) { f(b) }

// WithLogger sets the logger of the bus.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	})
}

// NewBus creates an idle bus without targets.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger:     logger.GetLogger(),
		events:     queue.NewLockFree[twi.Event](),
		signal:     make(chan struct{}, 1),
		targets:    make(map[uint8]Target),
		remotes:    queue.NewSlice[*Transaction](4),
		collisions: queue.NewSlice[*Transaction](1),
	}

	for _, opt := range opts {
		opt.apply(b)
	}

	return b
}

// Attach sets the receiver of the status events.
func (b *Bus) Attach(h EventHandler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// AddTarget attaches a slave device at the given address.
func (b *Bus) AddTarget(address uint8, t Target) error {
	if address == 0 || address > 0x77 {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidAddress, address)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.targets[address]; ok {
		return fmt.Errorf("%w: 0x%02X", ErrTargetExists, address)
	}
	b.targets[address] = t

	return nil
}

// AddMemory attaches an EEPROM. Parts with a one-byte word address larger
// than 256 bytes occupy one address per bank, starting at base.
func (b *Bus) AddMemory(base uint8, m *Memory) error {
	for i := 0; i < m.Banks(); i++ {
		if err := b.AddTarget(base+uint8(i), m.Bank(i)); err != nil {
			return err
		}
	}

	return nil
}

// Setup returns the last configuration programmed by the controller.
func (b *Bus) Setup() (twi.Setup, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.setup, b.configured
}

// Pending returns the number of undelivered events.
func (b *Bus) Pending() int {
	return b.events.Length()
}

// AppliedCount returns the number of actions programmed so far.
func (b *Bus) AppliedCount() uint64 {
	return b.applied.Load()
}

// --- twi.Hardware ---

// Configure implements twi.Hardware.
func (b *Bus) Configure(setup twi.Setup) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setup = setup
	b.configured = true
	b.logger.Debug("sim: peripheral configured",
		"ownAddr", setup.OwnAddress,
		"slave", setup.SlaveEnabled,
		"generalCall", setup.GeneralCall,
		"twbr", setup.BitRate,
		"prescaler", setup.Prescaler.String(),
	)

	return nil
}

// Apply implements twi.Hardware. The resulting events are queued and never
// delivered from within Apply.
func (b *Bus) Apply(a twi.Action) {
	b.applied.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == wireRemote {
		b.applyRemote(a)
		return
	}

	switch a.Op {
	case twi.OpStart:
		switch b.state {
		case wireIdle:
			b.masterStart()
		default:
			// repeated start while owning the bus
			b.state = wireStarted
			b.fresh = false
			b.emit(twi.StatusRepeatedStart, 0)
		}

	case twi.OpSend:
		switch b.state {
		case wireStarted:
			b.sendAddress(a.Data)
		case wireWrite:
			b.sendData(a.Data)
		default:
			b.logger.Warn("sim: send without bus ownership", "state", b.state.String())
		}

	case twi.OpAck, twi.OpNack:
		if b.state != wireRead {
			b.logger.Warn("sim: acknowledge without master read", "state", b.state.String(), "op", a.Op.String())
			return
		}
		d := b.cur.Read()
		if a.Op == twi.OpAck {
			b.emit(twi.StatusDataRecvAck, d)
		} else {
			b.emit(twi.StatusDataRecvNack, d)
		}

	case twi.OpStop, twi.OpListen:
		b.release()
		b.startRemote()
	}
}

// --- twi.EventMasker ---

// MaskEvents implements twi.EventMasker.
func (b *Bus) MaskEvents() {
	b.masked.Add(1)
}

// UnmaskEvents implements twi.EventMasker.
func (b *Bus) UnmaskEvents() {
	if b.masked.Add(-1) == 0 {
		b.notify()
	}
}

// --- event delivery ---

// Drain delivers queued events to the attached handler until the queue is
// empty and returns the number delivered. Events produced by the handler
// while draining are delivered in the same call.
//
// Drain is a no-op while another Drain is running or events are masked.
func (b *Bus) Drain() int {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()

	if h == nil || !b.draining.CompareAndSwap(false, true) {
		return 0
	}
	defer b.draining.Store(false)

	n := 0
	for b.masked.Load() == 0 {
		ev, ok := b.events.Dequeue()
		if !ok {
			break
		}
		h.HandleEvent(ev)
		n++
	}

	return n
}

// Step delivers a single queued event and reports whether there was one.
func (b *Bus) Step() bool {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()

	if h == nil || b.masked.Load() != 0 {
		return false
	}

	ev, ok := b.events.Dequeue()
	if !ok {
		return false
	}
	h.HandleEvent(ev)

	return true
}

// Run delivers events in the background until ctx is done, like an
// interrupt source would.
func (b *Bus) Run(ctx context.Context) error {
	b.notify()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.signal:
			if n := b.Drain(); n > 0 && b.events.Length() > 0 && b.masked.Load() == 0 {
				b.notify()
			}
		}
	}
}

// Inject queues a raw status event.
func (b *Bus) Inject(ev twi.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.emit(ev.Status, ev.Data)
}

// InjectBusFault aborts whatever is on the wire and reports a bus error.
func (b *Bus) InjectBusFault() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		b.session.tx.finish()
		b.session = nil
	}
	b.abort()
	b.emit(twi.StatusBusError, 0)
}

// InjectArbitrationLoss makes the next master transfer lose arbitration on
// byte n, counting the address byte as 0. The winner's transfer does not
// involve this device. Each call arms one loss.
func (b *Bus) InjectArbitrationLoss(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.losses = append(b.losses, n)
}

// Remote queues a remote master transaction. It starts as soon as the bus
// is free; a start requested by the controller meanwhile waits for it.
func (b *Bus) Remote(tx *Transaction) *Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.remotes.Enqueue(tx)
	b.startRemote()

	return tx
}

// RemoteWrite queues a remote master writing data to address.
func (b *Bus) RemoteWrite(address uint8, data []byte) *Transaction {
	return b.Remote(NewRemoteWrite(address, data))
}

// RemoteRead queues a remote master reading n bytes from address.
func (b *Bus) RemoteRead(address uint8, n int) *Transaction {
	return b.Remote(NewRemoteRead(address, n))
}

// Collide arms a remote master that starts together with the next master
// transfer of the controller and wins arbitration during its address byte.
func (b *Bus) Collide(tx *Transaction) *Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.collisions.Enqueue(tx)

	return tx
}

// --- internals, called with mu held ---

func (b *Bus) emit(status twi.Status, data byte) {
	b.logger.Debug("sim: event", "status", status.String(), "data", data, "state", b.state.String())
	b.events.Enqueue(twi.Event{Status: status, Data: data})
	b.notify()
}

func (b *Bus) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// release ends any master transaction of the controller.
func (b *Bus) release() {
	if b.cur != nil {
		b.cur.Stop()
		b.cur = nil
	}
	b.state = wireIdle
	b.fresh = false
}

// abort drops the master transaction of the controller without a stop
// condition reaching the target.
func (b *Bus) abort() {
	if a, ok := b.cur.(Aborter); ok {
		a.Abort()
	} else if b.cur != nil {
		b.cur.Stop()
	}
	b.cur = nil
	b.state = wireIdle
	b.fresh = false
}

// masterStart handles a start requested on a free bus. Queued remote
// masters go first; the start condition is generated once none of them
// addresses this device.
func (b *Bus) masterStart() {
	b.startRemote()
	if b.state != wireIdle {
		return
	}

	b.state = wireStarted
	b.fresh = true
	b.bytesSent = 0
	b.emit(twi.StatusStart, 0)
}

func (b *Bus) sendAddress(sla byte) {
	addr := sla >> 1
	read := sla&0x01 == 1
	b.bytesSent = 0

	if tx, ok := b.collisions.Peek(); b.fresh && ok {
		b.collisions.Dequeue()
		b.fresh = false

		if b.addressedToUs(tx) {
			b.beginSession(tx, true)
			return
		}

		b.runRemote(tx)
		b.loseArbitration()

		return
	}
	b.fresh = false

	if b.consumeLoss(0) {
		b.loseArbitration()
		return
	}

	t := b.targets[addr]
	if b.cur != nil && b.cur != t {
		b.cur.Stop()
		b.cur = nil
	}

	if t == nil || !t.Start(read) {
		b.state = wireAddrNack
		if read {
			b.emit(twi.StatusAddrReadNack, 0)
		} else {
			b.emit(twi.StatusAddrWriteNack, 0)
		}

		return
	}

	b.cur = t
	if read {
		b.state = wireRead
		b.emit(twi.StatusAddrReadAck, 0)
	} else {
		b.state = wireWrite
		b.emit(twi.StatusAddrWriteAck, 0)
	}
}

func (b *Bus) sendData(d byte) {
	if b.consumeLoss(b.bytesSent + 1) {
		b.loseArbitration()
		return
	}

	b.bytesSent++
	if b.cur.Write(d) {
		b.emit(twi.StatusDataSentAck, 0)
	} else {
		b.emit(twi.StatusDataSentNack, 0)
	}
}

func (b *Bus) consumeLoss(n int) bool {
	if len(b.losses) == 0 || b.losses[0] != n {
		return false
	}
	b.losses = b.losses[1:]

	return true
}

// loseArbitration reports the loss. The winner completes at once, so the
// bus is free again when the controller asks for a new start.
func (b *Bus) loseArbitration() {
	b.abort()
	b.emit(twi.StatusArbitrationLost, 0)
}

func (b *Bus) addressedToUs(tx *Transaction) bool {
	if !b.setup.SlaveEnabled {
		return false
	}
	if tx.Address == 0 {
		return !tx.Read && b.setup.GeneralCall
	}

	return tx.Address == b.setup.OwnAddress
}

// startRemote runs queued remote masters while the bus is free. Transfers
// to other devices complete at once; the first one addressing this device
// opens a slave session and stops the loop.
func (b *Bus) startRemote() {
	for b.state == wireIdle {
		tx, ok := b.remotes.Dequeue()
		if !ok {
			return
		}

		if b.addressedToUs(tx) {
			b.beginSession(tx, false)
			return
		}
		b.runRemote(tx)
	}
}

// runRemote plays a remote transaction against the simulated targets.
func (b *Bus) runRemote(tx *Transaction) {
	defer tx.finish()

	t := b.targets[tx.Address]
	if t == nil || !t.Start(tx.Read) {
		return
	}
	tx.setAddressAcked(true)
	defer t.Stop()

	if tx.Read {
		for i := 0; i < tx.Length; i++ {
			tx.receive(t.Read())
		}

		return
	}

	for _, d := range tx.Data {
		if !t.Write(d) {
			return
		}
		tx.incAcked()
	}
}
