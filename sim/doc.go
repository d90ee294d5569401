/*
Package sim provides a software model of a two-wire peripheral and the bus
it is attached to.

A Bus implements twi.Hardware and delivers the resulting status events to a
controller, so the protocol engines can be exercised without a device:

	bus := sim.NewBus()
	ctrl, _ := twi.NewController(bus, cfg)
	bus.Attach(ctrl)
	_ = ctrl.Enable()

	mem := sim.NewMemory(256, 1, 8)
	_ = bus.AddMemory(0x50, mem)

	_ = ctrl.BeginWrite(0x50, []byte{0x00, 0xCA, 0xFE})
	bus.Drain()

# Event Delivery

Actions programmed by the controller never call back into it directly. The
status events they produce are queued and delivered either synchronously by
Drain, which makes unit tests deterministic, or by a background pump started
with Run, which behaves like an interrupt source for blocking callers such
as twibus.

# Bus Participants

Targets are other slave devices on the wire; Memory models a 24Cxx serial
EEPROM. Remote masters are scripted with Transaction values: Remote queues
one for when the bus is free, Collide makes one win arbitration against the
next address byte sent by the controller. InjectArbitrationLoss and
InjectBusFault reproduce the remaining multi-master failure modes.
*/
package sim
