package sim

import (
	"sync"

	"github.com/arloliu/go-twi/internal/util"
)

// Memory models a 24Cxx serial EEPROM.
//
// A write transaction starts with the word address (one or two bytes),
// followed by data latched into the page buffer. Data wraps around within
// the page and is committed by the stop condition. Reads continue from the
// internal address pointer and wrap around at the end of the array.
//
// Parts with a one-byte word address and more than 256 bytes expose one
// bank per 256 bytes; each bank answers on its own slave address.
type Memory struct {
	mu        sync.Mutex
	data      []byte
	addrBytes int
	pageSize  int

	writeProtect bool
	busyPolls    int
	busyLeft     int
	cycles       int

	ptr      int
	reading  bool
	addrLeft int
	word     int
	pageBase int
	pageOff  int
	pending  []pendingByte
}

type pendingByte struct {
	addr int
	b    byte
}

// NewMemory creates an erased (0xFF) memory of size bytes.
func NewMemory(size, addrBytes, pageSize int) *Memory {
	if addrBytes < 1 {
		addrBytes = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}

	return &Memory{
		data:      data,
		addrBytes: addrBytes,
		pageSize:  pageSize,
	}
}

// Size returns the capacity in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

// Banks returns the number of slave addresses the part occupies.
func (m *Memory) Banks() int {
	if m.addrBytes > 1 || len(m.data) <= 256 {
		return 1
	}

	return (len(m.data) + 255) / 256
}

// Bank returns the target answering for bank i.
func (m *Memory) Bank(i int) Target {
	return &memoryBank{m: m, bank: i}
}

// SetWriteProtect controls the write-protect pin. While set, data bytes of
// a write are not acknowledged.
func (m *Memory) SetWriteProtect(v bool) {
	m.mu.Lock()
	m.writeProtect = v
	m.mu.Unlock()
}

// SetBusyPolls sets how many address phases are not acknowledged after a
// page write, emulating the internal write cycle.
func (m *Memory) SetBusyPolls(n int) {
	m.mu.Lock()
	m.busyPolls = n
	m.mu.Unlock()
}

// WriteCycles returns the number of committed page writes.
func (m *Memory) WriteCycles() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cycles
}

// Load copies data into the array at offset, bypassing the bus.
func (m *Memory) Load(offset int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.data[offset:], data)
}

// Bytes returns a copy of the array.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	return util.CloneSlice(m.data, len(m.data))
}

func (m *Memory) start(bank int, read bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busyLeft > 0 {
		m.busyLeft--
		return false
	}

	m.pending = m.pending[:0]
	if read {
		m.reading = true
		return true
	}

	m.reading = false
	m.addrLeft = m.addrBytes
	m.word = 0
	if m.addrBytes == 1 {
		m.word = bank << 8
	}

	return true
}

func (m *Memory) write(b byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reading {
		return false
	}

	if m.addrLeft > 0 {
		if m.addrBytes == 1 {
			m.word |= int(b)
		} else {
			m.word = m.word<<8 | int(b)
		}
		m.addrLeft--
		if m.addrLeft == 0 {
			m.ptr = m.word % len(m.data)
			m.pageOff = m.ptr % m.pageSize
			m.pageBase = m.ptr - m.pageOff
		}

		return true
	}

	if m.writeProtect {
		return false
	}

	addr := m.pageBase + (m.pageOff+len(m.pending))%m.pageSize
	m.pending = append(m.pending, pendingByte{addr: addr, b: b})
	m.ptr = m.pageBase + (m.pageOff+len(m.pending))%m.pageSize

	return true
}

func (m *Memory) read() byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.data[m.ptr]
	m.ptr = (m.ptr + 1) % len(m.data)

	return b
}

func (m *Memory) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reading = false
	if len(m.pending) == 0 {
		return
	}

	for _, p := range m.pending {
		m.data[p.addr%len(m.data)] = p.b
	}
	m.pending = m.pending[:0]
	m.cycles++
	m.busyLeft = m.busyPolls
}

func (m *Memory) abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reading = false
	m.pending = m.pending[:0]
}

type memoryBank struct {
	m    *Memory
	bank int
}

func (t *memoryBank) Start(read bool) bool { return t.m.start(t.bank, read) }
func (t *memoryBank) Write(b byte) bool    { return t.m.write(b) }
func (t *memoryBank) Read() byte           { return t.m.read() }
func (t *memoryBank) Stop()                { t.m.stop() }
func (t *memoryBank) Abort()               { t.m.abort() }
