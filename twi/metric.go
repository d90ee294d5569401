package twi

import "sync/atomic"

// Metrics contains atomic counters for a controller.
// Counters can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// TransferStartCount indicates the number of master transfers accepted by the initiator.
	TransferStartCount atomic.Uint64
	// TransferDoneCount indicates the number of master transfers delivered to master-done.
	TransferDoneCount atomic.Uint64
	// TransferErrCount indicates the number of master transfers delivered to the error handler.
	TransferErrCount atomic.Uint64
	// ArbitrationLostCount indicates the number of arbitration losses, including collisions.
	ArbitrationLostCount atomic.Uint64

	// BytesSentCount indicates the number of data and sub-address bytes sent as master.
	BytesSentCount atomic.Uint64
	// BytesRecvCount indicates the number of data bytes received as master.
	BytesRecvCount atomic.Uint64

	// SlaveSessionCount indicates the number of completed slave sessions.
	SlaveSessionCount atomic.Uint64
	// SlaveBytesRecvCount indicates the number of bytes written to this device by remote masters.
	SlaveBytesRecvCount atomic.Uint64
	// SlaveBytesSentCount indicates the number of bytes read from this device by remote masters.
	SlaveBytesSentCount atomic.Uint64
}

func (m *Metrics) incTransferStartCount() {
	m.TransferStartCount.Add(1)
}

func (m *Metrics) incTransferDoneCount() {
	m.TransferDoneCount.Add(1)
}

func (m *Metrics) incTransferErrCount() {
	m.TransferErrCount.Add(1)
}

func (m *Metrics) incArbitrationLostCount() {
	m.ArbitrationLostCount.Add(1)
}

func (m *Metrics) incBytesSentCount() {
	m.BytesSentCount.Add(1)
}

func (m *Metrics) incBytesRecvCount() {
	m.BytesRecvCount.Add(1)
}

func (m *Metrics) addSlaveSession(dir Direction, n int) {
	m.SlaveSessionCount.Add(1)
	if dir == DirTransmit {
		m.SlaveBytesSentCount.Add(uint64(n))
	} else {
		m.SlaveBytesRecvCount.Add(uint64(n))
	}
}
