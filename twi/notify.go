package twi

import "github.com/arloliu/go-twi/internal/util"

// MasterResult is delivered to the master-done handler.
type MasterResult struct {
	Mode    Mode
	Address uint8
	Flags   Flags
	// Data is a copy of the master buffer: the bytes sent for a write or the
	// bytes received for a read.
	Data []byte
}

// Err returns the terminal errors recorded for the transfer.
func (r MasterResult) Err() error {
	return r.Flags.Err()
}

// SlaveResult is delivered to the slave-done handler.
type SlaveResult struct {
	Direction   Direction
	GeneralCall bool
	// Data is a copy of the bytes received from, or sent to, the remote master.
	Data []byte
}

// Handlers are the completion callbacks of a controller. A nil field is a
// no-op.
//
// Handlers run on the goroutine that delivers bus events, after the shared
// state has been released, so they may start a new transfer.
type Handlers struct {
	MasterDone func(MasterResult)
	SlaveDone  func(SlaveResult)
	Error      func(Flags)
}

type noticeKind uint8

const (
	noticeMasterDone noticeKind = iota
	noticeSlaveDone
	noticeError
)

type notice struct {
	kind   noticeKind
	master MasterResult
	slave  SlaveResult
	flags  Flags
}

func (c *Controller) notifyMasterDone() {
	st := c.st
	n := st.index
	if st.mode == ModeMasterWrite {
		n = st.count
	}

	c.metrics.incTransferDoneCount()
	c.notes = append(c.notes, notice{
		kind: noticeMasterDone,
		master: MasterResult{
			Mode:    st.mode,
			Address: st.address,
			Flags:   st.flags,
			Data:    util.CloneSlice(st.master[:n], n),
		},
	})
}

func (c *Controller) notifySlaveDone(data []byte) {
	st := c.st

	c.metrics.addSlaveSession(st.slaveDir, len(data))
	c.notes = append(c.notes, notice{
		kind: noticeSlaveDone,
		slave: SlaveResult{
			Direction:   st.slaveDir,
			GeneralCall: st.slaveGeneral,
			Data:        util.CloneSlice(data, len(data)),
		},
	})
}

func (c *Controller) notifyError() {
	c.notes = append(c.notes, notice{kind: noticeError, flags: c.st.flags})
}

// dispatch invokes the handlers for the pending notices. It must be called
// without holding the state lock.
func (c *Controller) dispatch(notes []notice) {
	c.handlersMu.RLock()
	h := c.handlers
	c.handlersMu.RUnlock()

	for _, n := range notes {
		switch n.kind {
		case noticeMasterDone:
			if h.MasterDone != nil {
				h.MasterDone(n.master)
			}
		case noticeSlaveDone:
			if h.SlaveDone != nil {
				h.SlaveDone(n.slave)
			}
		case noticeError:
			if h.Error != nil {
				h.Error(n.flags)
			}
		}
	}
}
