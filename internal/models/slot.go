package models

// SlotPhase is the lifecycle of one grid cell.
type SlotPhase int

const (
	PhaseWaitingForJob SlotPhase = iota
	PhaseResolvingSlot
	PhaseCacheCheck
	PhasePolling
	PhaseReady
	PhaseFailed
	PhaseCancelled
)

// String returns the human-readable phase name.
func (p SlotPhase) String() string {
	switch p {
	case PhaseWaitingForJob:
		return "Waiting for job"
	case PhaseResolvingSlot:
		return "Resolving slot"
	case PhaseCacheCheck:
		return "Checking cache"
	case PhasePolling:
		return "Polling"
	case PhaseReady:
		return "Ready"
	case PhaseFailed:
		return "Failed"
	case PhaseCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions happen from p.
func (p SlotPhase) IsTerminal() bool {
	return p == PhaseReady || p == PhaseFailed || p == PhaseCancelled
}

// SlotState is a snapshot of one grid cell. It is never persisted.
type SlotState struct {
	Number    int
	Phase     SlotPhase
	Result    ThemeResult
	Bytes     []byte
	Engine    string
	Attempts  int
	FromCache bool
	Err       error
}

// Loading reports whether the slot is still working towards an image.
func (s SlotState) Loading() bool {
	return !s.Phase.IsTerminal()
}

// Cancelled reports whether the slot was stopped before finishing.
func (s SlotState) Cancelled() bool {
	return s.Phase == PhaseCancelled
}
