package twi

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Prescaler is the bit rate prescaler selection (status register bits 1:0).
type Prescaler uint8

const (
	Prescaler1 Prescaler = iota
	Prescaler4
	Prescaler16
	Prescaler64
)

// Factor returns the division factor, 4^prescaler.
func (p Prescaler) Factor() int64 {
	return 1 << (2 * int64(p))
}

func (p Prescaler) String() string {
	return fmt.Sprintf("/%d", p.Factor())
}

// BitRate computes the bit rate register value and prescaler producing the
// requested bus clock:
//
//	SCL = CPU / (16 + 2 * TWBR * 4^TWPS)
//
// The smallest prescaler that fits the 8-bit register is chosen so the
// resulting clock is as close as possible to scl without exceeding it.
func BitRate(cpu, scl physic.Frequency) (uint8, Prescaler, error) {
	if cpu <= 0 || scl <= 0 {
		return 0, 0, fmt.Errorf("twi: invalid clock cpu=%s scl=%s", cpu, scl)
	}

	c, f := int64(cpu), int64(scl)
	if c < 16*f {
		return 0, 0, fmt.Errorf("twi: bus clock %s too fast for cpu clock %s", scl, cpu)
	}

	for p := Prescaler1; p <= Prescaler64; p++ {
		// smallest TWBR with 16 + 2*TWBR*4^p >= cpu/scl
		div := 2 * p.Factor() * f
		twbr := (c - 16*f + div - 1) / div
		if twbr <= 0xFF {
			return uint8(twbr), p, nil
		}
	}

	return 0, 0, fmt.Errorf("twi: bus clock %s too slow for cpu clock %s", scl, cpu)
}

// SCLFrequency returns the bus clock produced by the register values.
func SCLFrequency(cpu physic.Frequency, twbr uint8, p Prescaler) physic.Frequency {
	return cpu / physic.Frequency(16+2*int64(twbr)*p.Factor())
}
