package twi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeHardware records every programmed action.
type fakeHardware struct {
	setup      Setup
	configured int
	configErr  error
	actions    []Action
	masked     int
	unmasked   int
}

var (
	_ Hardware    = (*fakeHardware)(nil)
	_ EventMasker = (*fakeHardware)(nil)
)

func (h *fakeHardware) Configure(setup Setup) error {
	if h.configErr != nil {
		return h.configErr
	}
	h.setup = setup
	h.configured++

	return nil
}

func (h *fakeHardware) Apply(a Action) {
	h.actions = append(h.actions, a)
}

func (h *fakeHardware) MaskEvents()   { h.masked++ }
func (h *fakeHardware) UnmaskEvents() { h.unmasked++ }

func (h *fakeHardware) last() Action {
	if len(h.actions) == 0 {
		return Action{Op: 0xFF}
	}

	return h.actions[len(h.actions)-1]
}

func (h *fakeHardware) reset() {
	h.actions = h.actions[:0]
	h.masked = 0
	h.unmasked = 0
}

// recorder collects completion notifications.
type recorder struct {
	masters []MasterResult
	slaves  []SlaveResult
	errs    []Flags
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		MasterDone: func(res MasterResult) { r.masters = append(r.masters, res) },
		SlaveDone:  func(res SlaveResult) { r.slaves = append(r.slaves, res) },
		Error:      func(f Flags) { r.errs = append(r.errs, f) },
	}
}

// newTestController creates an enabled controller backed by fakeHardware.
// The actions recorded during Enable are discarded.
func newTestController(t *testing.T, opts ...Option) (*Controller, *fakeHardware, *recorder) {
	t.Helper()

	cfg, err := NewConfig(opts...)
	require.NoError(t, err)

	hw := &fakeHardware{}
	c, err := NewController(hw, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Enable())

	rec := &recorder{}
	c.SetHandlers(rec.handlers())
	hw.reset()

	return c, hw, rec
}

// step delivers one event and returns the action it programmed.
func step(t *testing.T, c *Controller, hw *fakeHardware, status Status, data ...byte) Action {
	t.Helper()

	n := len(hw.actions)
	ev := Event{Status: status}
	if len(data) > 0 {
		ev.Data = data[0]
	}
	c.HandleEvent(ev)
	require.Len(t, hw.actions, n+1, "event %s must program exactly one action", status)

	return hw.last()
}
