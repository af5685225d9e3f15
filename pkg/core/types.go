package core

// OrderStatus represents the lifecycle state of a trade
type OrderStatus string

// Trade lifecycle statuses
const (
	StatusUnknown   OrderStatus = "UNKNOWN"
	StatusValidated OrderStatus = "VALIDATED"
	StatusExecuted  OrderStatus = "EXECUTED"
	StatusCleared   OrderStatus = "CLEARED"
	StatusSettled   OrderStatus = "SETTLED"
	StatusFailed    OrderStatus = "FAILED"
)

// statusRank orders the happy-path statuses. FAILED is reachable from any
// non-terminal status and is not part of the sequence.
var statusRank = map[OrderStatus]int{
	StatusUnknown:   0,
	StatusValidated: 1,
	StatusExecuted:  2,
	StatusCleared:   3,
	StatusSettled:   4,
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusSettled || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next respects the
// lifecycle sequence UNKNOWN→VALIDATED→EXECUTED→CLEARED→SETTLED, with
// FAILED allowed from any non-terminal status.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt == cur+1
}

// ParseOrderStatus converts a wire string to an OrderStatus, returning
// StatusUnknown for anything unrecognized.
func ParseOrderStatus(s string) OrderStatus {
	switch OrderStatus(s) {
	case StatusValidated, StatusExecuted, StatusCleared, StatusSettled, StatusFailed:
		return OrderStatus(s)
	default:
		return StatusUnknown
	}
}

// Stage identifies one pipeline step
type Stage string

// Pipeline stages
const (
	StageValidation Stage = "VALIDATION"
	StageExecution  Stage = "EXECUTION"
	StageClearing   Stage = "CLEARING"
	StageSettlement Stage = "SETTLEMENT"
)

// Stages lists the pipeline stages in processing order.
var Stages = []Stage{StageValidation, StageExecution, StageClearing, StageSettlement}
