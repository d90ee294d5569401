package sim

import "github.com/arloliu/go-twi/twi"

// session is a remote master transaction addressing this device.
type session struct {
	tx      *Transaction
	general bool
	pos     int
	// responded is set once the peripheral answered the address.
	responded bool
	ended     bool
	// startPending records a start requested before the session was seen.
	startPending bool
}

func (b *Bus) beginSession(tx *Transaction, collision bool) {
	if b.cur != nil {
		b.cur.Stop()
		b.cur = nil
	}

	s := &session{tx: tx, general: tx.Address == 0}
	b.session = s
	b.state = wireRemote
	tx.setAddressAcked(true)

	switch {
	case tx.Read && collision:
		b.emit(twi.StatusLostOwnAddrRead, 0)
	case tx.Read:
		b.emit(twi.StatusOwnAddrRead, 0)
	case s.general && collision:
		b.emit(twi.StatusLostGeneralCall, 0)
	case s.general:
		b.emit(twi.StatusGeneralCall, 0)
	case collision:
		b.emit(twi.StatusLostOwnAddrWrite, 0)
	default:
		b.emit(twi.StatusOwnAddrWrite, 0)
	}
}

// applyRemote drives the remote master from the peripheral's response.
func (b *Bus) applyRemote(a twi.Action) {
	s := b.session

	switch a.Op {
	case twi.OpStart:
		if !s.responded {
			// The controller started a transfer before it saw the address
			// match. The hardware keeps the start until the bus is free.
			s.startPending = true
			return
		}
		b.endSession(true)

	case twi.OpListen, twi.OpStop:
		b.endSession(s.startPending)

	case twi.OpAck, twi.OpNack:
		s.responded = true
		if s.ended {
			b.logger.Warn("sim: response after remote master finished", "op", a.Op.String())
			return
		}
		if s.tx.Read {
			b.remoteReceive(a)
		} else {
			b.remoteTransmit(a.Op == twi.OpAck)
		}

	default:
		b.logger.Warn("sim: unexpected action during slave session", "op", a.Op.String())
	}
}

// remoteTransmit sends the next byte of a remote write. ack tells whether
// the peripheral will acknowledge it.
func (b *Bus) remoteTransmit(ack bool) {
	s := b.session
	tx := s.tx

	if s.pos >= len(tx.Data) {
		s.ended = true
		b.emit(twi.StatusSlaveStop, 0)

		return
	}

	d := tx.Data[s.pos]
	s.pos++

	switch {
	case ack && s.general:
		tx.incAcked()
		b.emit(twi.StatusGeneralRecvAck, d)
	case ack:
		tx.incAcked()
		b.emit(twi.StatusSlaveRecvAck, d)
	case s.general:
		// not acknowledged: the remote master gives up after this byte
		s.ended = true
		b.emit(twi.StatusGeneralRecvNack, d)
	default:
		s.ended = true
		b.emit(twi.StatusSlaveRecvNack, d)
	}
}

// remoteReceive takes the byte loaded by the peripheral. The remote master
// acknowledges it until it has read its requested length.
func (b *Bus) remoteReceive(a twi.Action) {
	s := b.session
	n := s.tx.receive(a.Data)

	switch {
	case n >= s.tx.Length:
		s.ended = true
		b.emit(twi.StatusSlaveSentNack, 0)
	case a.Op == twi.OpNack:
		// peripheral announced its last byte, the remote wants more
		s.ended = true
		b.emit(twi.StatusSlaveLastSentAck, 0)
	default:
		b.emit(twi.StatusSlaveSentAck, 0)
	}
}

func (b *Bus) endSession(restart bool) {
	b.session.tx.finish()
	b.session = nil
	b.state = wireIdle

	if restart {
		b.masterStart()
		return
	}
	b.startRemote()
}
