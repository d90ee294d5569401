package twi

import (
	"testing"

	"github.com/arloliu/go-twi/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultMasterBufferSize, cfg.MasterBufferSize())
	assert.False(t, cfg.SlaveEnabled())
	assert.False(t, cfg.GeneralCall())
	assert.Equal(t, DefaultSlaveInBufferSize, cfg.SlaveInBufferSize())
	assert.Equal(t, DefaultSlaveOutBufferSize, cfg.SlaveOutBufferSize())
	assert.False(t, cfg.EnhancedAddressing())
	assert.Equal(t, DefaultCPUFrequency, cfg.CPUFrequency())
	assert.Equal(t, DefaultBusFrequency, cfg.BusFrequency())
	assert.False(t, cfg.Pullups())
	assert.Equal(t, 0, cfg.ArbitrationRetryLimit())
	assert.NotNil(t, cfg.GetLogger())

	twbr, p := cfg.BitRate()
	assert.Equal(t, uint8(72), twbr)
	assert.Equal(t, Prescaler1, p)
}

func TestNewConfig_Options(t *testing.T) {
	l := logger.NewSlog(logger.DebugLevel, false)
	cfg, err := NewConfig(
		WithMasterBufferSize(64),
		WithSlave(0x42),
		WithGeneralCall(true),
		WithSlaveBufferSizes(8, 12),
		WithEnhancedAddressing(3),
		WithClock(8*physic.MegaHertz, 400*physic.KiloHertz),
		WithPullups(true),
		WithArbitrationRetryLimit(5),
		WithLogger(l),
	)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.MasterBufferSize())
	assert.True(t, cfg.SlaveEnabled())
	assert.Equal(t, uint8(0x42), cfg.OwnAddress())
	assert.True(t, cfg.GeneralCall())
	assert.Equal(t, 8, cfg.SlaveInBufferSize())
	assert.Equal(t, 12, cfg.SlaveOutBufferSize())
	assert.True(t, cfg.EnhancedAddressing())
	assert.Equal(t, 3, cfg.SubAddressBufferSize())
	assert.True(t, cfg.Pullups())
	assert.Equal(t, 5, cfg.ArbitrationRetryLimit())
	assert.Same(t, l, cfg.GetLogger())

	setup := cfg.Setup()
	assert.Equal(t, uint8(0x42), setup.OwnAddress)
	assert.True(t, setup.GeneralCall)
	assert.True(t, setup.SlaveEnabled)
	assert.True(t, setup.Pullups)
	assert.Equal(t, uint8(2), setup.BitRate)
	assert.Equal(t, Prescaler1, setup.Prescaler)
}

func TestNewConfig_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"master buffer zero", WithMasterBufferSize(0)},
		{"master buffer too large", WithMasterBufferSize(MaxBufferSize + 1)},
		{"own address general call", WithSlave(GeneralCallAddress)},
		{"own address reserved", WithSlave(0x78)},
		{"slave in zero", WithSlaveBufferSizes(0, 4)},
		{"slave out too large", WithSlaveBufferSizes(4, MaxBufferSize+1)},
		{"sub-address zero", WithEnhancedAddressing(0)},
		{"sub-address too large", WithEnhancedAddressing(MaxSubAddressSize + 1)},
		{"negative clock", WithClock(-1, DefaultBusFrequency)},
		{"bus faster than cpu allows", WithClock(DefaultCPUFrequency, DefaultCPUFrequency)},
		{"bus too slow", WithClock(DefaultCPUFrequency, 100*physic.Hertz)},
		{"negative retry limit", WithArbitrationRetryLimit(-1)},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.opt)
			require.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
