package model

// ItemState is the lifecycle state of one item inside the fetcher.
type ItemState int

const (
	StatePending ItemState = iota
	StateResolvingFormat
	StateTransferring
	StateMerging
	StateVerified
	StateFailed
)

// String returns the state name.
func (s ItemState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolvingFormat:
		return "resolving-format"
	case StateTransferring:
		return "transferring"
	case StateMerging:
		return "merging"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s ItemState) IsTerminal() bool {
	return s == StateVerified || s == StateFailed
}

// IsActive reports whether the item is currently being worked on.
func (s ItemState) IsActive() bool {
	return s == StateResolvingFormat || s == StateTransferring || s == StateMerging
}

// CanTransition reports whether moving from s to next is allowed.
//
//	Pending -> ResolvingFormat -> Transferring -> (Merging) -> Verified
//	any non-terminal state -> Failed
func (s ItemState) CanTransition(next ItemState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	switch s {
	case StatePending:
		return next == StateResolvingFormat
	case StateResolvingFormat:
		return next == StateTransferring
	case StateTransferring:
		return next == StateMerging || next == StateVerified
	case StateMerging:
		return next == StateVerified
	}
	return false
}
