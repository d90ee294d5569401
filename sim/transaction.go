package sim

import (
	"sync"

	"github.com/arloliu/go-twi/internal/util"
)

// Transaction is a transfer issued by a remote master on the simulated bus.
type Transaction struct {
	// Address is the 7-bit slave address; 0 is the general call.
	Address uint8
	// Read selects a read of Length bytes instead of writing Data.
	Read   bool
	Data   []byte
	Length int

	mu           sync.Mutex
	addressAcked bool
	acked        int
	received     []byte
	done         chan struct{}
	doneOnce     sync.Once
}

// NewRemoteWrite creates a transaction writing data to address.
func NewRemoteWrite(address uint8, data []byte) *Transaction {
	return &Transaction{
		Address: address,
		Data:    util.CloneSlice(data, len(data)),
		done:    make(chan struct{}),
	}
}

// NewRemoteRead creates a transaction reading n bytes from address.
func NewRemoteRead(address uint8, n int) *Transaction {
	return &Transaction{
		Address: address,
		Read:    true,
		Length:  n,
		done:    make(chan struct{}),
	}
}

// Done is closed once the remote master has released the bus.
func (t *Transaction) Done() <-chan struct{} {
	return t.done
}

// AddressAcked reports whether a slave acknowledged the address.
func (t *Transaction) AddressAcked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.addressAcked
}

// Acked returns the number of written data bytes that were acknowledged.
func (t *Transaction) Acked() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.acked
}

// Received returns a copy of the bytes read by the remote master.
func (t *Transaction) Received() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return util.CloneSlice(t.received, len(t.received))
}

func (t *Transaction) setAddressAcked(v bool) {
	t.mu.Lock()
	t.addressAcked = v
	t.mu.Unlock()
}

func (t *Transaction) incAcked() {
	t.mu.Lock()
	t.acked++
	t.mu.Unlock()
}

// receive appends b and reports how many bytes have been read so far.
func (t *Transaction) receive(b byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.received = append(t.received, b)

	return len(t.received)
}

func (t *Transaction) finish() {
	t.doneOnce.Do(func() { close(t.done) })
}
