package twi

import "fmt"

// Status is the masked value of the status register delivered with every
// bus event. The prescaler bits are already removed.
type Status uint8

// Statuses shared by both roles.
const (
	StatusBusError Status = 0x00 // illegal start or stop detected
	StatusNoInfo   Status = 0xF8 // no relevant state, the interrupt flag is clear
)

// Master statuses.
const (
	StatusStart           Status = 0x08 // start condition transmitted
	StatusRepeatedStart   Status = 0x10 // repeated start condition transmitted
	StatusAddrWriteAck    Status = 0x18 // SLA+W transmitted, ACK received
	StatusAddrWriteNack   Status = 0x20 // SLA+W transmitted, NACK received
	StatusDataSentAck     Status = 0x28 // data byte transmitted, ACK received
	StatusDataSentNack    Status = 0x30 // data byte transmitted, NACK received
	StatusArbitrationLost Status = 0x38 // arbitration lost in SLA+R/W or data
	StatusAddrReadAck     Status = 0x40 // SLA+R transmitted, ACK received
	StatusAddrReadNack    Status = 0x48 // SLA+R transmitted, NACK received
	StatusDataRecvAck     Status = 0x50 // data byte received, ACK returned
	StatusDataRecvNack    Status = 0x58 // data byte received, NACK returned
)

// Slave statuses.
const (
	StatusOwnAddrWrite     Status = 0x60 // own SLA+W received, ACK returned
	StatusLostOwnAddrWrite Status = 0x68 // arbitration lost as master, own SLA+W received
	StatusGeneralCall      Status = 0x70 // general call received, ACK returned
	StatusLostGeneralCall  Status = 0x78 // arbitration lost as master, general call received
	StatusSlaveRecvAck     Status = 0x80 // addressed with own SLA+W, data received, ACK returned
	StatusSlaveRecvNack    Status = 0x88 // addressed with own SLA+W, data received, NACK returned
	StatusGeneralRecvAck   Status = 0x90 // addressed by general call, data received, ACK returned
	StatusGeneralRecvNack  Status = 0x98 // addressed by general call, data received, NACK returned
	StatusSlaveStop        Status = 0xA0 // stop or repeated start received while addressed
	StatusOwnAddrRead      Status = 0xA8 // own SLA+R received, ACK returned
	StatusLostOwnAddrRead  Status = 0xB0 // arbitration lost as master, own SLA+R received
	StatusSlaveSentAck     Status = 0xB8 // data byte transmitted, ACK received
	StatusSlaveSentNack    Status = 0xC0 // data byte transmitted, NACK received
	StatusSlaveLastSentAck Status = 0xC8 // last data byte transmitted, ACK received
)

var statusNames = map[Status]string{
	StatusBusError:         "BusError",
	StatusNoInfo:           "NoInfo",
	StatusStart:            "Start",
	StatusRepeatedStart:    "RepeatedStart",
	StatusAddrWriteAck:     "AddrWriteAck",
	StatusAddrWriteNack:    "AddrWriteNack",
	StatusDataSentAck:      "DataSentAck",
	StatusDataSentNack:     "DataSentNack",
	StatusArbitrationLost:  "ArbitrationLost",
	StatusAddrReadAck:      "AddrReadAck",
	StatusAddrReadNack:     "AddrReadNack",
	StatusDataRecvAck:      "DataRecvAck",
	StatusDataRecvNack:     "DataRecvNack",
	StatusOwnAddrWrite:     "OwnAddrWrite",
	StatusLostOwnAddrWrite: "LostOwnAddrWrite",
	StatusGeneralCall:      "GeneralCall",
	StatusLostGeneralCall:  "LostGeneralCall",
	StatusSlaveRecvAck:     "SlaveRecvAck",
	StatusSlaveRecvNack:    "SlaveRecvNack",
	StatusGeneralRecvAck:   "GeneralRecvAck",
	StatusGeneralRecvNack:  "GeneralRecvNack",
	StatusSlaveStop:        "SlaveStop",
	StatusOwnAddrRead:      "OwnAddrRead",
	StatusLostOwnAddrRead:  "LostOwnAddrRead",
	StatusSlaveSentAck:     "SlaveSentAck",
	StatusSlaveSentNack:    "SlaveSentNack",
	StatusSlaveLastSentAck: "SlaveLastSentAck",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("%s(0x%02X)", name, uint8(s))
	}

	return fmt.Sprintf("Status(0x%02X)", uint8(s))
}

// IsMaster reports whether the status is produced while this device drives
// the bus as master.
func (s Status) IsMaster() bool {
	return s >= StatusStart && s <= StatusDataRecvNack
}

// IsSlave reports whether the status is produced while this device is
// addressed by another master.
func (s Status) IsSlave() bool {
	return s >= StatusOwnAddrWrite && s <= StatusSlaveLastSentAck
}

// isCollision reports whether the status means this device lost arbitration
// as master and was addressed as slave in the same address phase.
func (s Status) isCollision() bool {
	return s == StatusLostOwnAddrWrite || s == StatusLostGeneralCall || s == StatusLostOwnAddrRead
}

// isGeneralCall reports whether the status belongs to a general call session.
func (s Status) isGeneralCall() bool {
	switch s {
	case StatusGeneralCall, StatusLostGeneralCall, StatusGeneralRecvAck, StatusGeneralRecvNack:
		return true
	default:
		return false
	}
}
