package twi

import (
	"fmt"
	"sync"

	"github.com/arloliu/go-twi/logger"
)

// Controller drives one two-wire peripheral as master and, when
// configured, as slave.
//
// New work enters only through BeginWrite, BeginRead and
// BeginEnhancedAccess. Everything else happens in HandleEvent, which the
// event source must call once per bus condition and never concurrently
// with itself.
type Controller struct {
	cfg    *Config
	hw     Hardware
	logger logger.Logger

	// mu guards st between the initiator and the event handler.
	mu      sync.Mutex
	st      *busState
	enabled bool
	notes   []notice

	handlersMu sync.RWMutex
	handlers   Handlers

	metrics Metrics
}

// NewController creates a controller for hw. Call Enable before starting
// transfers.
func NewController(hw Hardware, cfg *Config) (*Controller, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if hw == nil {
		return nil, fmt.Errorf("twi: hardware is nil")
	}

	return &Controller{
		cfg:    cfg,
		hw:     hw,
		logger: cfg.logger,
		st:     newBusState(cfg),
		notes:  make([]notice, 0, 2),
	}, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() *Config {
	return c.cfg
}

// Metrics returns the controller metrics.
func (c *Controller) Metrics() *Metrics {
	return &c.metrics
}

// SetHandlers replaces the completion handlers.
func (c *Controller) SetHandlers(h Handlers) {
	c.handlersMu.Lock()
	c.handlers = h
	c.handlersMu.Unlock()
}

// Enable programs the hardware setup and starts listening on the bus.
func (c *Controller) Enable() error {
	defer c.acquire()()

	if c.enabled {
		return nil
	}

	setup := c.cfg.Setup()
	if err := c.hw.Configure(setup); err != nil {
		return fmt.Errorf("twi: configure hardware: %w", err)
	}
	c.hw.Apply(listen())
	c.enabled = true

	c.logger.Debug("twi: controller enabled",
		"slave", setup.SlaveEnabled,
		"ownAddress", setup.OwnAddress,
		"bitRate", setup.BitRate,
		"prescaler", setup.Prescaler.String(),
	)

	return nil
}

// State returns a snapshot of the shared bus state.
func (c *Controller) State() State {
	defer c.acquire()()

	return c.st.snapshot()
}

// acquire enters the initiator critical section and returns the release
// function. Event delivery is masked for hardware that supports it.
func (c *Controller) acquire() func() {
	masker, _ := c.hw.(EventMasker)
	if masker != nil {
		masker.MaskEvents()
	}
	c.mu.Lock()

	return func() {
		c.mu.Unlock()
		if masker != nil {
			masker.UnmaskEvents()
		}
	}
}

// --- Transfer initiator ---

// BeginWrite starts writing data to the device at address.
//
// An empty data slice probes the address: the transfer completes once the
// address is acknowledged.
func (c *Controller) BeginWrite(address uint8, data []byte) error {
	defer c.acquire()()

	if err := c.checkStart(address); err != nil {
		return err
	}
	if len(data) > len(c.st.master) {
		return fmt.Errorf("%w: write of %d bytes exceeds master buffer of %d", ErrBufferOverflow, len(data), len(c.st.master))
	}

	st := c.st
	copy(st.master, data)
	st.count = len(data)
	c.begin(ModeMasterWrite, address)

	return nil
}

// BeginRead starts reading length bytes from the device at address.
func (c *Controller) BeginRead(address uint8, length int) error {
	defer c.acquire()()

	if err := c.checkStart(address); err != nil {
		return err
	}
	if length <= 0 {
		return ErrEmptyTransfer
	}
	if length > len(c.st.master) {
		return fmt.Errorf("%w: read of %d bytes exceeds master buffer of %d", ErrBufferOverflow, length, len(c.st.master))
	}

	c.st.count = length
	c.begin(ModeMasterRead, address)

	return nil
}

// BeginEnhancedAccess writes subAddress to the device at address, issues a
// repeated start and reads readLength bytes.
func (c *Controller) BeginEnhancedAccess(address uint8, subAddress []byte, readLength int) error {
	defer c.acquire()()

	if !c.cfg.enhancedAddressing {
		return fmt.Errorf("%w: enhanced addressing", ErrNotSupported)
	}
	if err := c.checkStart(address); err != nil {
		return err
	}
	if len(subAddress) > len(c.st.sub) {
		return fmt.Errorf("%w: sub-address of %d bytes exceeds buffer of %d", ErrBufferOverflow, len(subAddress), len(c.st.sub))
	}
	if readLength <= 0 {
		return ErrEmptyTransfer
	}
	if readLength > len(c.st.master) {
		return fmt.Errorf("%w: read of %d bytes exceeds master buffer of %d", ErrBufferOverflow, readLength, len(c.st.master))
	}

	st := c.st
	copy(st.sub, subAddress)
	st.subCount = len(subAddress)
	st.count = readLength
	c.begin(ModeEnhanced, address)

	return nil
}

// SetSlaveResponse loads the bytes a remote master reads from this device.
// It fails with ErrBusBusy while a slave session is in progress.
func (c *Controller) SetSlaveResponse(data []byte) error {
	defer c.acquire()()

	if !c.cfg.slaveEnabled {
		return fmt.Errorf("%w: slave mode", ErrNotSupported)
	}
	if c.st.slaveActive {
		return ErrBusBusy
	}
	if len(data) == 0 || len(data) > len(c.st.slaveOut) {
		return fmt.Errorf("%w: response of %d bytes, slave out buffer holds 1 to %d", ErrBufferOverflow, len(data), len(c.st.slaveOut))
	}

	copy(c.st.slaveOut, data)
	c.st.slaveOutCount = len(data)

	return nil
}

func (c *Controller) checkStart(address uint8) error {
	if !c.enabled {
		return ErrNotEnabled
	}
	if address > MaxAddress {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidAddress, address)
	}
	if c.st.busy || c.st.slaveActive {
		return ErrBusBusy
	}

	return nil
}

// begin commits a validated transfer and requests the start condition.
// The caller holds the critical section.
func (c *Controller) begin(mode Mode, address uint8) {
	st := c.st
	st.mode = mode
	st.address = address
	st.index = 0
	st.subIndex = 0
	st.flags = 0
	st.arbLosses = 0
	st.interrupted = false
	st.phase = PhaseAddress
	st.busy = true

	c.metrics.incTransferStartCount()
	c.logger.Debug("twi: begin transfer",
		"mode", mode.String(),
		"addr", address,
		"count", st.count,
		"subCount", st.subCount,
	)

	c.hw.Apply(start())
}

// --- Event handler ---

// HandleEvent runs the protocol engines for one bus condition. It programs
// exactly one action on the hardware for every status except
// StatusNoInfo, then invokes the completion handlers.
func (c *Controller) HandleEvent(ev Event) {
	c.mu.Lock()

	switch {
	case ev.Status == StatusNoInfo:
		// nothing latched, nothing to program
	case ev.Status == StatusBusError:
		c.apply(c.handleBusError())
	case ev.Status.IsMaster():
		c.apply(c.handleMaster(ev))
	case ev.Status.IsSlave():
		c.apply(c.handleSlave(ev))
	default:
		c.logger.Warn("twi: unexpected status", "status", ev.Status.String())
		c.apply(listen())
	}

	var notes []notice
	if len(c.notes) > 0 {
		notes = make([]notice, len(c.notes))
		copy(notes, c.notes)
		c.notes = c.notes[:0]
	}
	c.mu.Unlock()

	if notes != nil {
		c.dispatch(notes)
	}
}

func (c *Controller) apply(a Action) {
	c.hw.Apply(a)
}

// handleBusError records the fault and forces a stop regardless of phase.
func (c *Controller) handleBusError() Action {
	st := c.st
	st.flags |= FlagBusFault

	c.logger.Warn("twi: bus fault",
		"mode", st.mode.String(),
		"phase", st.phase.String(),
		"slaveActive", st.slaveActive,
	)

	if st.busy {
		c.metrics.incTransferErrCount()
		st.finish(PhaseError)
	}
	st.slaveActive = false
	c.notifyError()

	return stop()
}
