// Package twi implements an event-driven controller for a two-wire,
// multi-master serial bus (clock + data, start/stop framing, 7-bit
// addressing, acknowledge/not-acknowledge per byte).
//
// The controller acts as bus master and, optionally, as slave. It never
// blocks and never polls: the peripheral reports every bus condition as
// an [Event] carrying a [Status] code, and [Controller.HandleEvent] answers
// each one by programming exactly one [Action] on the [Hardware].
//
// # Transfers
//
// New work enters only through the transfer initiator:
//
//   - [Controller.BeginWrite]: address, then data bytes, then stop.
//   - [Controller.BeginRead]: address, then data bytes, then stop.
//   - [Controller.BeginEnhancedAccess]: address, sub-address bytes,
//     repeated start, address in the read direction, data bytes, stop.
//     This is the random read of serial EEPROMs and register files.
//
// At most one master transfer is in progress. The initiator returns
// [ErrBusBusy] while one is, and [ErrBufferOverflow] when the request does
// not fit the fixed buffers. Completion is reported asynchronously through
// [Handlers].
//
// # Acknowledge Lookahead
//
// The not-acknowledge that ends a read must be programmed together with the
// request for the final byte, so the "last byte" decision is always made
// one byte early. The slave engine applies the same rule to its receive
// buffer.
//
// # Multi-Master Operation
//
// Arbitration loss rewinds the transfer and requests a new start for when
// the bus becomes free. Retries are unbounded unless
// [WithArbitrationRetryLimit] is set. When this device is addressed as
// slave while its own transfer is pending, the transfer is marked
// interrupted and restarted as soon as the slave session ends.
//
// # Concurrency
//
// HandleEvent must be called from a single event source, one event at a
// time. The initiator may be called from any goroutine; it masks event
// delivery (see [EventMasker]) and locks the shared state for the short
// critical section that commits a transfer. Handlers run after the lock is
// released and may start the next transfer.
package twi
