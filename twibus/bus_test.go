package twibus

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-twi/sim"
	"github.com/arloliu/go-twi/twi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

type rig struct {
	ctrl *twi.Controller
	sim  *sim.Bus
	mem  *sim.Memory
	bus  *Bus
}

func newRig(t *testing.T, run bool, cfgOpts []twi.Option, opts ...Option) *rig {
	t.Helper()

	cfg, err := twi.NewConfig(cfgOpts...)
	require.NoError(t, err)

	sb := sim.NewBus()
	ctrl, err := twi.NewController(sb, cfg)
	require.NoError(t, err)
	sb.Attach(ctrl)

	mem := sim.NewMemory(256, 1, 8)
	require.NoError(t, sb.AddMemory(0x50, mem))

	b, err := New(ctrl, opts...)
	require.NoError(t, err)
	require.NoError(t, ctrl.Enable())

	if run {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = sb.Run(ctx)
			close(done)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
	}

	return &rig{ctrl: ctrl, sim: sb, mem: mem, bus: b}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	cfg, err := twi.NewConfig()
	require.NoError(t, err)
	ctrl, err := twi.NewController(sim.NewBus(), cfg)
	require.NoError(t, err)

	_, err = New(ctrl, WithTimeout(0))
	require.Error(t, err)

	_, err = New(ctrl, WithLogger(nil))
	require.Error(t, err)
}

func TestBus_WriteThenEnhancedRead(t *testing.T) {
	r := newRig(t, true, []twi.Option{twi.WithEnhancedAddressing(1)})
	dev := &i2c.Dev{Bus: r.bus, Addr: 0x50}

	require.NoError(t, dev.Tx([]byte{0x20, 0x11, 0x22, 0x33}, nil))
	assert.Equal(t, []byte{0x11, 0x22, 0x33}, r.mem.Bytes()[0x20:0x23])

	buf := make([]byte, 3)
	require.NoError(t, dev.Tx([]byte{0x20}, buf))
	assert.Equal(t, []byte{0x11, 0x22, 0x33}, buf)
	assert.Equal(t, uint64(2), r.ctrl.Metrics().TransferDoneCount.Load())
}

func TestBus_WriteReadSplitWithoutEnhancedAddressing(t *testing.T) {
	r := newRig(t, true, nil)
	r.mem.Load(0x40, []byte{0xCA, 0xFE})

	buf := make([]byte, 2)
	require.NoError(t, r.bus.Tx(0x50, []byte{0x40}, buf))
	assert.Equal(t, []byte{0xCA, 0xFE}, buf)
	assert.Equal(t, uint64(2), r.ctrl.Metrics().TransferDoneCount.Load())
}

func TestBus_ReadOnly(t *testing.T) {
	r := newRig(t, true, nil)
	r.mem.Load(0, []byte{0x01, 0x02})

	buf := make([]byte, 2)
	require.NoError(t, r.bus.Tx(0x50, nil, buf))
	assert.Equal(t, []byte{0x01, 0x02}, buf)
}

func TestBus_Probe(t *testing.T) {
	r := newRig(t, true, nil)

	require.NoError(t, r.bus.Tx(0x50, nil, nil))
	require.ErrorIs(t, r.bus.Tx(0x51, nil, nil), twi.ErrNoAcknowledge)
}

func TestBus_DataNotAcknowledged(t *testing.T) {
	r := newRig(t, true, nil)
	r.mem.SetWriteProtect(true)

	err := r.bus.Tx(0x50, []byte{0x00, 0x01}, nil)
	require.ErrorIs(t, err, twi.ErrNotAcknowledged)
}

func TestBus_InvalidAddress(t *testing.T) {
	r := newRig(t, true, nil)

	require.ErrorIs(t, r.bus.Tx(0x78, nil, nil), twi.ErrInvalidAddress)
	require.ErrorIs(t, r.bus.Tx(0x3FF, []byte{0x00}, nil), twi.ErrInvalidAddress)
}

func TestBus_BufferOverflow(t *testing.T) {
	r := newRig(t, true, []twi.Option{twi.WithMasterBufferSize(4)})

	require.ErrorIs(t, r.bus.Tx(0x50, make([]byte, 5), nil), twi.ErrBufferOverflow)
}

func TestBus_Timeout(t *testing.T) {
	// Without an event pump nothing ever completes.
	r := newRig(t, false, nil, WithTimeout(20*time.Millisecond))

	require.ErrorIs(t, r.bus.Tx(0x50, []byte{0x00}, nil), ErrTimeout)
	require.ErrorIs(t, r.bus.Tx(0x50, []byte{0x00}, nil), twi.ErrBusBusy)

	// A late completion finds no waiter and is dropped.
	r.sim.Drain()
	assert.False(t, r.ctrl.State().Busy)
	require.Eventually(t, func() bool {
		return r.ctrl.Metrics().TransferDoneCount.Load() == 1
	}, time.Second, time.Millisecond)
}

func TestBus_ContextCanceled(t *testing.T) {
	r := newRig(t, false, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, r.bus.TxContext(ctx, 0x50, []byte{0x00}, nil), context.Canceled)
}

func TestBus_SetSpeed(t *testing.T) {
	r := newRig(t, false, []twi.Option{twi.WithClock(16*physic.MegaHertz, 400*physic.KiloHertz)})

	require.NoError(t, r.bus.SetSpeed(400*physic.KiloHertz))
	require.ErrorIs(t, r.bus.SetSpeed(100*physic.KiloHertz), twi.ErrNotSupported)
}

func TestBus_String(t *testing.T) {
	r := newRig(t, false, nil)
	assert.Equal(t, "twi", r.bus.String())

	r = newRig(t, false, []twi.Option{twi.WithSlave(0x2A)})
	assert.Equal(t, "twi(0x2A)", r.bus.String())
}

func TestBus_SlaveHandler(t *testing.T) {
	got := make(chan twi.SlaveResult, 1)
	r := newRig(t, true, []twi.Option{twi.WithSlave(0x2A)},
		WithSlaveHandler(func(res twi.SlaveResult) { got <- res }),
	)

	tx := r.sim.RemoteWrite(0x2A, []byte{0x10, 0x20})

	select {
	case res := <-got:
		assert.Equal(t, []byte{0x10, 0x20}, res.Data)
	case <-time.After(time.Second):
		t.Fatal("slave session not forwarded")
	}
	<-tx.Done()

	// The master side keeps working afterwards.
	require.NoError(t, r.bus.Tx(0x50, []byte{0x00, 0x01}, nil))
}

func TestBus_CollisionDuringTx(t *testing.T) {
	r := newRig(t, true, []twi.Option{twi.WithSlave(0x2A)})
	r.sim.Collide(sim.NewRemoteWrite(0x2A, []byte{0x99}))

	require.NoError(t, r.bus.Tx(0x50, []byte{0x00, 0x5A}, nil))
	assert.Equal(t, byte(0x5A), r.mem.Bytes()[0])
	assert.Equal(t, uint64(1), r.ctrl.Metrics().ArbitrationLostCount.Load())
}
