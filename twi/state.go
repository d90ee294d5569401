package twi

// Mode selects the kind of master transfer in progress.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeMasterWrite
	ModeMasterRead
	// ModeEnhanced writes a sub-address, restarts and reads.
	ModeEnhanced
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "Idle"
	case ModeMasterWrite:
		return "MasterWrite"
	case ModeMasterRead:
		return "MasterRead"
	case ModeEnhanced:
		return "Enhanced"
	default:
		return "Unknown"
	}
}

// Phase is the position of the master engine within a transfer.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAddress
	PhaseSubAddress
	PhaseData
	PhaseComplete
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseAddress:
		return "Address"
	case PhaseSubAddress:
		return "SubAddress"
	case PhaseData:
		return "Data"
	case PhaseComplete:
		return "Complete"
	case PhaseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Direction is the data direction of a slave session, seen from this device.
type Direction uint8

const (
	// DirReceive means a remote master wrote to this device.
	DirReceive Direction = iota
	// DirTransmit means a remote master read from this device.
	DirTransmit
)

func (d Direction) String() string {
	if d == DirTransmit {
		return "Transmit"
	}

	return "Receive"
}

// busState is the mutable record shared by the initiator and the engines.
//
// Buffers are allocated once with their configured capacity and never
// resized. Index/count pairs satisfy 0 <= index <= count <= capacity.
type busState struct {
	mode        Mode
	phase       Phase
	busy        bool
	flags       Flags
	interrupted bool
	address     uint8

	master []byte
	index  int
	count  int

	sub      []byte
	subIndex int
	subCount int

	slaveActive   bool
	slaveDir      Direction
	slaveGeneral  bool
	slaveIn       []byte
	slaveInIndex  int
	slaveOut      []byte
	slaveOutIndex int
	slaveOutCount int

	// arbLosses counts consecutive arbitration losses of the current transfer.
	arbLosses int
}

func newBusState(cfg *Config) *busState {
	st := &busState{
		master: make([]byte, cfg.masterBufferSize),
	}
	if cfg.enhancedAddressing {
		st.sub = make([]byte, cfg.subAddressBufferSize)
	}
	if cfg.slaveEnabled {
		st.slaveIn = make([]byte, cfg.slaveInBufferSize)
		st.slaveOut = make([]byte, cfg.slaveOutBufferSize)
		st.slaveOutCount = cfg.slaveOutBufferSize
	}

	return st
}

// rewind resets the master-side indices so the transfer restarts cleanly.
func (st *busState) rewind() {
	st.index = 0
	st.subIndex = 0
	st.phase = PhaseAddress
}

// finish ends the master transfer in the given terminal phase.
func (st *busState) finish(p Phase) {
	st.phase = p
	st.busy = false
	st.interrupted = false
	st.arbLosses = 0
}

// State is a point-in-time copy of the shared bus state.
type State struct {
	Mode        Mode
	Phase       Phase
	Busy        bool
	Interrupted bool
	Flags       Flags
	Address     uint8

	Index    int
	Count    int
	SubIndex int
	SubCount int

	SlaveActive    bool
	SlaveDirection Direction
	SlaveInIndex   int
	SlaveOutIndex  int
	SlaveOutCount  int
}

func (st *busState) snapshot() State {
	return State{
		Mode:           st.mode,
		Phase:          st.phase,
		Busy:           st.busy,
		Interrupted:    st.interrupted,
		Flags:          st.flags,
		Address:        st.address,
		Index:          st.index,
		Count:          st.count,
		SubIndex:       st.subIndex,
		SubCount:       st.subCount,
		SlaveActive:    st.slaveActive,
		SlaveDirection: st.slaveDir,
		SlaveInIndex:   st.slaveInIndex,
		SlaveOutIndex:  st.slaveOutIndex,
		SlaveOutCount:  st.slaveOutCount,
	}
}
