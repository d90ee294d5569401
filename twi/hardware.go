package twi

import "fmt"

// Event is a single bus condition reported by the peripheral.
//
// Data holds the data register and is meaningful only for statuses that
// report a received byte.
type Event struct {
	Status Status
	Data   byte
}

func (e Event) String() string {
	return fmt.Sprintf("%s data=0x%02X", e.Status, e.Data)
}

// Op is the bus primitive programmed in response to an event.
type Op uint8

const (
	// OpListen releases the bus and leaves the peripheral addressable when
	// the slave capability is enabled.
	OpListen Op = iota
	// OpSend transmits Data as master (address or data byte).
	OpSend
	// OpAck continues the transfer and acknowledges the next received byte.
	// As slave transmitter Data is loaded and more bytes are expected.
	OpAck
	// OpNack continues the transfer and does not acknowledge the next
	// received byte. As slave transmitter Data is loaded as the last byte.
	OpNack
	// OpStart generates a start condition, or a repeated start while this
	// device still owns the bus. When the bus is busy the start is generated
	// as soon as it becomes free.
	OpStart
	// OpStop generates a stop condition and releases the bus.
	OpStop
)

func (op Op) String() string {
	switch op {
	case OpListen:
		return "Listen"
	case OpSend:
		return "Send"
	case OpAck:
		return "Ack"
	case OpNack:
		return "Nack"
	case OpStart:
		return "Start"
	case OpStop:
		return "Stop"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// Action is the next bus primitive together with the byte loaded into the
// data register, if any.
type Action struct {
	Op   Op
	Data byte
	// Load is true when Data was written to the data register.
	Load bool
}

func (a Action) String() string {
	if a.Load {
		return fmt.Sprintf("%s data=0x%02X", a.Op, a.Data)
	}

	return a.Op.String()
}

func listen() Action         { return Action{Op: OpListen} }
func send(b byte) Action     { return Action{Op: OpSend, Data: b, Load: true} }
func ack() Action            { return Action{Op: OpAck} }
func nack() Action           { return Action{Op: OpNack} }
func start() Action          { return Action{Op: OpStart} }
func stop() Action           { return Action{Op: OpStop} }
func loadAck(b byte) Action  { return Action{Op: OpAck, Data: b, Load: true} }
func loadNack(b byte) Action { return Action{Op: OpNack, Data: b, Load: true} }

// Setup holds the register values programmed once when the controller is
// enabled.
type Setup struct {
	// OwnAddress is the 7-bit slave address; meaningful when SlaveEnabled.
	OwnAddress uint8
	// GeneralCall enables recognition of the general call address.
	GeneralCall bool
	// SlaveEnabled makes the peripheral acknowledge its own address.
	SlaveEnabled bool
	// Pullups enables the internal pull-ups on the clock and data pins.
	Pullups bool
	// BitRate is the bit rate register value.
	BitRate uint8
	// Prescaler is the bit rate prescaler.
	Prescaler Prescaler
}

// Hardware is the register-level surface of a two-wire peripheral.
//
// Apply is called exactly once for every event that carries a bus
// condition, and once by the initiator to request a start condition.
// Implementations must not call back into the controller from Apply; the
// next event is delivered after Apply returns.
type Hardware interface {
	// Configure programs the address, bit rate and pin setup.
	Configure(setup Setup) error
	// Apply programs the next bus primitive.
	Apply(a Action)
}

// EventMasker is implemented by hardware that can suspend event delivery.
// The controller masks events while the initiator mutates shared state.
type EventMasker interface {
	MaskEvents()
	UnmaskEvents()
}
