package twi

const (
	dirWrite = 0x00
	dirRead  = 0x01
)

// handleMaster is the master protocol engine. It runs with the state lock
// held and returns the single action to program.
func (c *Controller) handleMaster(ev Event) Action {
	st := c.st

	if !st.busy {
		c.logger.Warn("twi: master status without a transfer", "status", ev.Status.String())
		return listen()
	}

	switch ev.Status {
	case StatusStart:
		// A fresh start always begins with the write half, except for a
		// plain read.
		st.phase = PhaseAddress
		if st.mode == ModeMasterRead {
			return send(st.address<<1 | dirRead)
		}

		return send(st.address<<1 | dirWrite)

	case StatusRepeatedStart:
		// Only the enhanced mode restarts, to switch to its read half.
		st.phase = PhaseAddress
		if st.mode == ModeEnhanced || st.mode == ModeMasterRead {
			return send(st.address<<1 | dirRead)
		}

		return send(st.address<<1 | dirWrite)

	case StatusAddrWriteAck:
		return c.nextWrite()

	case StatusDataSentAck:
		return c.nextWrite()

	case StatusAddrWriteNack, StatusAddrReadNack:
		st.flags |= FlagNoAcknowledge
		c.failMaster(ev.Status)

		return stop()

	case StatusDataSentNack:
		// The peer ended the data phase early. Terminating, but reported
		// through master-done since it is often the normal end of a transfer.
		st.flags |= FlagNotAcknowledged
		c.logger.Debug("twi: data not acknowledged",
			"addr", st.address,
			"index", st.index,
			"count", st.count,
		)
		c.notifyMasterDone()
		st.finish(PhaseComplete)

		return stop()

	case StatusArbitrationLost:
		return c.arbitrationLost()

	case StatusAddrReadAck:
		st.phase = PhaseData
		return c.requestByte()

	case StatusDataRecvAck:
		if !c.storeByte(ev.Data) {
			return stop()
		}

		return c.requestByte()

	case StatusDataRecvNack:
		if !c.storeByte(ev.Data) {
			return stop()
		}
		c.notifyMasterDone()
		st.finish(PhaseComplete)

		return stop()
	}

	return listen()
}

// nextWrite sends the next sub-address or data byte after an acknowledge.
func (c *Controller) nextWrite() Action {
	st := c.st

	switch st.mode {
	case ModeMasterWrite:
		if st.index == st.count {
			c.notifyMasterDone()
			st.finish(PhaseComplete)

			return stop()
		}
		st.phase = PhaseData
		b := st.master[st.index]
		st.index++
		c.metrics.incBytesSentCount()

		return send(b)

	case ModeEnhanced:
		if st.subIndex == st.subCount {
			// Sub-address done: restart in the read direction instead of
			// releasing the bus.
			return start()
		}
		st.phase = PhaseSubAddress
		b := st.sub[st.subIndex]
		st.subIndex++
		c.metrics.incBytesSentCount()

		return send(b)
	}

	c.logger.Warn("twi: write acknowledge in read mode", "mode", st.mode.String())
	st.flags |= FlagBusFault
	c.failMaster(StatusDataSentAck)

	return stop()
}

// requestByte asks for the next byte. The byte that fills the buffer is
// requested with a not-acknowledge so the target releases the bus after it.
func (c *Controller) requestByte() Action {
	st := c.st
	if st.index+1 >= st.count {
		return nack()
	}

	return ack()
}

// storeByte writes a received byte into the master buffer. It records an
// overflow and terminates the transfer instead of writing past count.
func (c *Controller) storeByte(b byte) bool {
	st := c.st
	if st.index >= st.count {
		st.flags |= FlagBufferOverflow
		c.failMaster(StatusDataRecvAck)

		return false
	}

	st.master[st.index] = b
	st.index++
	c.metrics.incBytesRecvCount()

	return true
}

// arbitrationLost rewinds the transfer and requests a new start for when the
// bus becomes free.
func (c *Controller) arbitrationLost() Action {
	st := c.st
	st.flags |= FlagArbitrationLost
	st.arbLosses++
	c.metrics.incArbitrationLostCount()

	if c.retryLimitReached() {
		st.flags |= FlagArbitrationTimeout
		c.failMaster(StatusArbitrationLost)

		return listen()
	}

	c.logger.Debug("twi: arbitration lost, restarting",
		"addr", st.address,
		"index", st.index,
		"subIndex", st.subIndex,
		"losses", st.arbLosses,
	)
	st.rewind()

	return start()
}

func (c *Controller) retryLimitReached() bool {
	limit := c.cfg.arbitrationRetryLimit
	return limit > 0 && c.st.arbLosses > limit
}

// failMaster ends the master transfer in the error phase and queues the
// error notification.
func (c *Controller) failMaster(status Status) {
	st := c.st

	c.logger.Warn("twi: transfer failed",
		"status", status.String(),
		"mode", st.mode.String(),
		"addr", st.address,
		"flags", st.flags.String(),
	)
	c.metrics.incTransferErrCount()
	st.finish(PhaseError)
	c.notifyError()
}
