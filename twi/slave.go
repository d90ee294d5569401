package twi

// handleSlave is the slave protocol engine. It runs with the state lock
// held and returns the single action to program.
func (c *Controller) handleSlave(ev Event) Action {
	st := c.st

	if !c.cfg.slaveEnabled {
		c.logger.Warn("twi: slave status in master-only mode", "status", ev.Status.String())
		return listen()
	}

	switch ev.Status {
	case StatusOwnAddrWrite, StatusLostOwnAddrWrite, StatusGeneralCall, StatusLostGeneralCall:
		c.preempt(ev.Status)
		st.slaveActive = true
		st.slaveDir = DirReceive
		st.slaveGeneral = ev.Status.isGeneralCall()
		st.slaveInIndex = 0

		return c.slaveRequestByte()

	case StatusSlaveRecvAck, StatusGeneralRecvAck:
		if !c.slaveStore(ev.Data) {
			return c.endSlaveSession(st.slaveIn[:st.slaveInIndex])
		}

		return c.slaveRequestByte()

	case StatusSlaveRecvNack, StatusGeneralRecvNack:
		c.slaveStore(ev.Data)
		return c.endSlaveSession(st.slaveIn[:st.slaveInIndex])

	case StatusSlaveStop:
		// A remote master that stops before filling the buffer ends the
		// receive session here. Otherwise it is a repeated start and the
		// peripheral simply stays ready for the next address.
		if st.slaveActive && st.slaveDir == DirReceive {
			return c.endSlaveSession(st.slaveIn[:st.slaveInIndex])
		}

		return c.resumeOrListen()

	case StatusOwnAddrRead, StatusLostOwnAddrRead:
		c.preempt(ev.Status)
		st.slaveActive = true
		st.slaveDir = DirTransmit
		st.slaveGeneral = false
		st.slaveOutIndex = 0

		return c.slaveLoad()

	case StatusSlaveSentAck:
		st.slaveOutIndex++
		if st.slaveOutIndex >= st.slaveOutCount {
			// The remote acknowledged a byte announced as the last one.
			st.flags |= FlagBufferOverflow
			c.logger.Warn("twi: remote master read past slave out buffer", "count", st.slaveOutCount)

			return c.endSlaveSession(st.slaveOut[:st.slaveOutCount])
		}

		return c.slaveLoad()

	case StatusSlaveSentNack, StatusSlaveLastSentAck:
		// The remote master ends the transfer; ack or nack does not matter.
		st.slaveOutIndex++

		return c.endSlaveSession(st.slaveOut[:st.slaveOutIndex])
	}

	return listen()
}

// preempt handles being addressed as slave while a master transfer of this
// device is pending, either because its start is still waiting for the bus
// or because it lost arbitration to the addressing master. The transfer is
// rewound and resumed once the slave session ends.
func (c *Controller) preempt(status Status) {
	st := c.st

	if !st.busy {
		return
	}

	if st.interrupted {
		st.flags |= FlagDoubleInterrupt
		c.logger.Warn("twi: collision while a preempted transfer is pending",
			"status", status.String(),
			"addr", st.address,
		)
		c.notifyError()

		return
	}

	if status.isCollision() {
		st.flags |= FlagArbitrationLost
		st.arbLosses++
		c.metrics.incArbitrationLostCount()

		if c.retryLimitReached() {
			st.flags |= FlagArbitrationTimeout
			c.failMaster(status)

			return
		}
	}

	c.logger.Debug("twi: preempted by remote master",
		"status", status.String(),
		"addr", st.address,
		"losses", st.arbLosses,
	)
	st.interrupted = true
	st.rewind()
}

// slaveRequestByte acknowledges the next byte unless it is the last one
// the receive buffer can hold.
func (c *Controller) slaveRequestByte() Action {
	st := c.st
	if st.slaveInIndex+1 >= len(st.slaveIn) {
		return nack()
	}

	return ack()
}

// slaveStore writes a received byte into the slave in buffer.
func (c *Controller) slaveStore(b byte) bool {
	st := c.st
	if st.slaveInIndex >= len(st.slaveIn) {
		st.flags |= FlagBufferOverflow
		c.logger.Warn("twi: remote master wrote past slave in buffer", "capacity", len(st.slaveIn))

		return false
	}

	st.slaveIn[st.slaveInIndex] = b
	st.slaveInIndex++

	return true
}

// slaveLoad loads the byte at slaveOutIndex, announcing it as the last one
// when the response ends there.
func (c *Controller) slaveLoad() Action {
	st := c.st
	b := st.slaveOut[st.slaveOutIndex]
	if st.slaveOutIndex+1 >= st.slaveOutCount {
		return loadNack(b)
	}

	return loadAck(b)
}

// endSlaveSession closes the slave session, queues slave-done and resumes
// a preempted master transfer if there is one.
func (c *Controller) endSlaveSession(data []byte) Action {
	st := c.st

	c.logger.Debug("twi: slave session done",
		"direction", st.slaveDir.String(),
		"generalCall", st.slaveGeneral,
		"bytes", len(data),
	)
	c.notifySlaveDone(data)
	st.slaveActive = false

	return c.resumeOrListen()
}

func (c *Controller) resumeOrListen() Action {
	st := c.st
	if st.interrupted {
		st.interrupted = false
		c.logger.Debug("twi: resuming preempted transfer", "addr", st.address)

		return start()
	}

	return listen()
}
