package twi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasterWrite_Scenario(t *testing.T) {
	c, hw, rec := newTestController(t)

	require.NoError(t, c.BeginWrite(0x50, []byte{0x01, 0x02, 0x03}))

	assert.Equal(t, send(0xA0), step(t, c, hw, StatusStart))
	assert.Equal(t, send(0x01), step(t, c, hw, StatusAddrWriteAck))
	assert.Equal(t, send(0x02), step(t, c, hw, StatusDataSentAck))
	assert.Equal(t, send(0x03), step(t, c, hw, StatusDataSentAck))
	assert.Empty(t, rec.masters)
	assert.Equal(t, stop(), step(t, c, hw, StatusDataSentAck))

	require.Len(t, rec.masters, 1)
	res := rec.masters[0]
	assert.Equal(t, Flags(0), res.Flags)
	require.NoError(t, res.Err())
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, res.Data)
	assert.Equal(t, uint8(0x50), res.Address)

	st := c.State()
	assert.Equal(t, 3, st.Index)
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.False(t, st.Busy)
	assert.Equal(t, uint64(3), c.Metrics().BytesSentCount.Load())
	assert.Equal(t, uint64(1), c.Metrics().TransferDoneCount.Load())
}

func TestMasterWrite_ExactlyNAcks(t *testing.T) {
	const capacity = 8

	for n := 1; n <= capacity; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			c, hw, rec := newTestController(t, WithMasterBufferSize(capacity))

			data := make([]byte, n)
			for i := range data {
				data[i] = byte(0x10 + i)
			}
			require.NoError(t, c.BeginWrite(0x3C, data))
			step(t, c, hw, StatusStart)
			step(t, c, hw, StatusAddrWriteAck)

			var sent []byte
			sent = append(sent, hw.last().Data)
			acks := 0
			for {
				a := step(t, c, hw, StatusDataSentAck)
				acks++
				if a.Op == OpStop {
					break
				}
				require.Equal(t, OpSend, a.Op)
				sent = append(sent, a.Data)
				require.LessOrEqual(t, acks, n)
			}

			assert.Equal(t, n, acks)
			assert.Equal(t, data, sent)
			assert.Equal(t, n, c.State().Index)
			require.Len(t, rec.masters, 1)
		})
	}
}

func TestMasterWrite_ZeroLengthProbe(t *testing.T) {
	c, hw, rec := newTestController(t)

	require.NoError(t, c.BeginWrite(0x50, nil))
	assert.Equal(t, send(0xA0), step(t, c, hw, StatusStart))
	assert.Equal(t, stop(), step(t, c, hw, StatusAddrWriteAck))

	require.Len(t, rec.masters, 1)
	assert.Empty(t, rec.masters[0].Data)
	require.NoError(t, rec.masters[0].Err())
}

func TestMasterRead_Scenario(t *testing.T) {
	c, hw, rec := newTestController(t)

	require.NoError(t, c.BeginRead(0x50, 2))

	assert.Equal(t, send(0xA1), step(t, c, hw, StatusStart))
	assert.Equal(t, ack(), step(t, c, hw, StatusAddrReadAck))
	// The request preceding the second byte carries the not-acknowledge.
	assert.Equal(t, nack(), step(t, c, hw, StatusDataRecvAck, 0x11))
	assert.Equal(t, stop(), step(t, c, hw, StatusDataRecvNack, 0x22))

	require.Len(t, rec.masters, 1)
	assert.Equal(t, []byte{0x11, 0x22}, rec.masters[0].Data)
	assert.Equal(t, Flags(0), rec.masters[0].Flags)
	assert.Equal(t, 2, c.State().Index)
	assert.Equal(t, uint64(2), c.Metrics().BytesRecvCount.Load())
}

func TestMasterRead_LookaheadLaw(t *testing.T) {
	const capacity = 10

	for n := 1; n <= capacity; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			c, hw, rec := newTestController(t, WithMasterBufferSize(capacity))

			require.NoError(t, c.BeginRead(0x48, n))
			step(t, c, hw, StatusStart)

			// requests[k] is the action that requested byte k+1.
			requests := []Action{step(t, c, hw, StatusAddrReadAck)}
			for k := 1; k < n; k++ {
				require.Equal(t, OpAck, requests[k-1].Op, "byte %d must be acknowledged", k)
				requests = append(requests, step(t, c, hw, StatusDataRecvAck, byte(k)))
			}

			for k, a := range requests {
				if k == n-1 {
					assert.Equal(t, OpNack, a.Op, "request for byte %d", k+1)
				} else {
					assert.Equal(t, OpAck, a.Op, "request for byte %d", k+1)
				}
			}

			assert.Equal(t, stop(), step(t, c, hw, StatusDataRecvNack, byte(n)))
			require.Len(t, rec.masters, 1)
			assert.Len(t, rec.masters[0].Data, n)
			assert.Equal(t, byte(n), rec.masters[0].Data[n-1])
			assert.Equal(t, n, c.State().Index)
		})
	}
}

func TestMasterRead_OverflowGuard(t *testing.T) {
	c, hw, rec := newTestController(t)

	require.NoError(t, c.BeginRead(0x50, 1))
	step(t, c, hw, StatusStart)
	assert.Equal(t, nack(), step(t, c, hw, StatusAddrReadAck))
	step(t, c, hw, StatusDataRecvAck, 0x01)

	// A peripheral that keeps acknowledging past the requested length must
	// not overrun the buffer.
	assert.Equal(t, stop(), step(t, c, hw, StatusDataRecvAck, 0x02))
	require.Len(t, rec.errs, 1)
	assert.True(t, rec.errs[0].Has(FlagBufferOverflow))
	assert.Equal(t, 1, c.State().Index)
	assert.Equal(t, PhaseError, c.State().Phase)
}

func TestMasterEnhanced_RoundTrip(t *testing.T) {
	c, hw, rec := newTestController(t, WithEnhancedAddressing(2))

	require.NoError(t, c.BeginEnhancedAccess(0x50, []byte{0x12, 0x34}, 3))

	assert.Equal(t, send(0xA0), step(t, c, hw, StatusStart))
	assert.Equal(t, send(0x12), step(t, c, hw, StatusAddrWriteAck))
	assert.Equal(t, PhaseSubAddress, c.State().Phase)
	assert.Equal(t, send(0x34), step(t, c, hw, StatusDataSentAck))
	assert.Equal(t, start(), step(t, c, hw, StatusDataSentAck))
	assert.Equal(t, send(0xA1), step(t, c, hw, StatusRepeatedStart))
	assert.Equal(t, ack(), step(t, c, hw, StatusAddrReadAck))
	assert.Equal(t, ack(), step(t, c, hw, StatusDataRecvAck, 0xA))
	assert.Equal(t, nack(), step(t, c, hw, StatusDataRecvAck, 0xB))
	assert.Equal(t, stop(), step(t, c, hw, StatusDataRecvNack, 0xC))

	require.Len(t, rec.masters, 1)
	assert.Equal(t, ModeEnhanced, rec.masters[0].Mode)
	assert.Equal(t, []byte{0xA, 0xB, 0xC}, rec.masters[0].Data)

	// Sub-address bytes go out in order, before any read request.
	var sends []byte
	firstRead := -1
	for i, a := range hw.actions {
		if a.Op == OpSend {
			sends = append(sends, a.Data)
		}
		if (a.Op == OpAck || a.Op == OpNack) && firstRead < 0 {
			firstRead = i
		}
	}
	assert.Equal(t, []byte{0xA0, 0x12, 0x34, 0xA1}, sends)
	assert.Greater(t, firstRead, 3)
}

func TestMasterEnhanced_EmptySubAddress(t *testing.T) {
	c, hw, rec := newTestController(t, WithEnhancedAddressing(2))

	require.NoError(t, c.BeginEnhancedAccess(0x50, nil, 1))
	step(t, c, hw, StatusStart)
	assert.Equal(t, start(), step(t, c, hw, StatusAddrWriteAck))
	assert.Equal(t, send(0xA1), step(t, c, hw, StatusRepeatedStart))
	assert.Equal(t, nack(), step(t, c, hw, StatusAddrReadAck))
	assert.Equal(t, stop(), step(t, c, hw, StatusDataRecvNack, 0x5A))

	require.Len(t, rec.masters, 1)
	assert.Equal(t, []byte{0x5A}, rec.masters[0].Data)
}

func TestMasterWrite_ArbitrationLossRecovery(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}

	for i := 1; i < len(data); i++ {
		t.Run(fmt.Sprintf("lost_at_%d", i), func(t *testing.T) {
			c, hw, rec := newTestController(t)

			require.NoError(t, c.BeginWrite(0x50, data))
			step(t, c, hw, StatusStart)
			step(t, c, hw, StatusAddrWriteAck)
			for k := 1; k < i; k++ {
				step(t, c, hw, StatusDataSentAck)
			}
			require.Equal(t, i, c.State().Index)

			assert.Equal(t, start(), step(t, c, hw, StatusArbitrationLost))
			st := c.State()
			assert.Equal(t, 0, st.Index)
			assert.True(t, st.Busy)
			assert.True(t, st.Flags.Has(FlagArbitrationLost))
			assert.Empty(t, rec.errs)

			hw.reset()
			assert.Equal(t, send(0xA0), step(t, c, hw, StatusStart))
			step(t, c, hw, StatusAddrWriteAck)
			for {
				if step(t, c, hw, StatusDataSentAck).Op == OpStop {
					break
				}
			}

			var sent []byte
			for _, a := range hw.actions[1:] {
				if a.Op == OpSend {
					sent = append(sent, a.Data)
				}
			}
			assert.Equal(t, data, sent)

			require.Len(t, rec.masters, 1)
			assert.True(t, rec.masters[0].Flags.Has(FlagArbitrationLost))
			require.NoError(t, rec.masters[0].Err())
			assert.Equal(t, uint64(1), c.Metrics().ArbitrationLostCount.Load())
		})
	}
}

func TestMasterEnhanced_ArbitrationLossRewindsSubAddress(t *testing.T) {
	c, hw, _ := newTestController(t, WithEnhancedAddressing(2))

	require.NoError(t, c.BeginEnhancedAccess(0x50, []byte{0x12, 0x34}, 1))
	step(t, c, hw, StatusStart)
	step(t, c, hw, StatusAddrWriteAck)
	assert.Equal(t, 1, c.State().SubIndex)

	step(t, c, hw, StatusArbitrationLost)
	assert.Equal(t, 0, c.State().SubIndex)

	assert.Equal(t, send(0xA0), step(t, c, hw, StatusStart))
	assert.Equal(t, send(0x12), step(t, c, hw, StatusAddrWriteAck))
}

func TestMaster_ArbitrationRetryLimit(t *testing.T) {
	c, hw, rec := newTestController(t, WithArbitrationRetryLimit(2))

	require.NoError(t, c.BeginWrite(0x50, []byte{1}))
	for i := 0; i < 2; i++ {
		step(t, c, hw, StatusStart)
		assert.Equal(t, start(), step(t, c, hw, StatusArbitrationLost))
	}

	step(t, c, hw, StatusStart)
	assert.Equal(t, listen(), step(t, c, hw, StatusArbitrationLost))

	require.Len(t, rec.errs, 1)
	assert.True(t, rec.errs[0].Has(FlagArbitrationTimeout))
	require.ErrorIs(t, rec.errs[0].Err(), ErrArbitrationTimeout)
	assert.False(t, c.State().Busy)
	assert.Equal(t, uint64(3), c.Metrics().ArbitrationLostCount.Load())
}

func TestMaster_UnboundedArbitrationRetry(t *testing.T) {
	c, hw, rec := newTestController(t)

	require.NoError(t, c.BeginWrite(0x50, []byte{1}))
	for i := 0; i < 100; i++ {
		step(t, c, hw, StatusStart)
		require.Equal(t, start(), step(t, c, hw, StatusArbitrationLost))
	}
	assert.Empty(t, rec.errs)
	assert.True(t, c.State().Busy)
}

func TestMaster_AddressNotAcknowledged(t *testing.T) {
	tests := []struct {
		name   string
		begin  func(c *Controller) error
		status Status
	}{
		{"write", func(c *Controller) error { return c.BeginWrite(0x50, []byte{1}) }, StatusAddrWriteNack},
		{"read", func(c *Controller) error { return c.BeginRead(0x50, 1) }, StatusAddrReadNack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, hw, rec := newTestController(t)

			require.NoError(t, tt.begin(c))
			step(t, c, hw, StatusStart)
			assert.Equal(t, stop(), step(t, c, hw, tt.status))

			require.Len(t, rec.errs, 1)
			assert.Equal(t, FlagNoAcknowledge, rec.errs[0])
			assert.Empty(t, rec.masters)
			assert.Equal(t, PhaseError, c.State().Phase)
			assert.False(t, c.State().Busy)
			assert.Equal(t, uint64(1), c.Metrics().TransferErrCount.Load())
		})
	}
}

func TestMasterWrite_DataNotAcknowledged(t *testing.T) {
	c, hw, rec := newTestController(t)

	require.NoError(t, c.BeginWrite(0x50, []byte{1, 2, 3}))
	step(t, c, hw, StatusStart)
	step(t, c, hw, StatusAddrWriteAck)
	assert.Equal(t, stop(), step(t, c, hw, StatusDataSentNack))

	require.Len(t, rec.masters, 1)
	assert.Equal(t, FlagNotAcknowledged, rec.masters[0].Flags)
	require.ErrorIs(t, rec.masters[0].Err(), ErrNotAcknowledged)
	assert.Empty(t, rec.errs)
	assert.False(t, c.State().Busy)
	assert.Equal(t, 1, c.State().Index)
}

func TestMaster_StatusWithoutTransfer(t *testing.T) {
	c, hw, rec := newTestController(t)

	assert.Equal(t, listen(), step(t, c, hw, StatusDataSentAck))
	assert.Empty(t, rec.masters)
	assert.Empty(t, rec.errs)
}
