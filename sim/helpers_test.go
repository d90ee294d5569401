package sim

import (
	"sync"
	"testing"

	"github.com/arloliu/go-twi/twi"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	masters []twi.MasterResult
	slaves  []twi.SlaveResult
	errs    []twi.Flags
}

func (r *recorder) handlers() twi.Handlers {
	return twi.Handlers{
		MasterDone: func(res twi.MasterResult) {
			r.mu.Lock()
			r.masters = append(r.masters, res)
			r.mu.Unlock()
		},
		SlaveDone: func(res twi.SlaveResult) {
			r.mu.Lock()
			r.slaves = append(r.slaves, res)
			r.mu.Unlock()
		},
		Error: func(f twi.Flags) {
			r.mu.Lock()
			r.errs = append(r.errs, f)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.masters), len(r.slaves), len(r.errs)
}

// newRig wires an enabled controller to a fresh bus with a 256-byte memory
// at 0x50.
func newRig(t *testing.T, opts ...twi.Option) (*twi.Controller, *Bus, *Memory, *recorder) {
	t.Helper()

	cfg, err := twi.NewConfig(opts...)
	require.NoError(t, err)

	bus := NewBus()
	ctrl, err := twi.NewController(bus, cfg)
	require.NoError(t, err)
	bus.Attach(ctrl)

	rec := &recorder{}
	ctrl.SetHandlers(rec.handlers())
	require.NoError(t, ctrl.Enable())

	mem := NewMemory(256, 1, 8)
	require.NoError(t, bus.AddMemory(0x50, mem))

	return ctrl, bus, mem, rec
}
