package core

import "sync/atomic"

// ControlState is the state of a control pass.
type ControlState int32

// Control pass states.
const (
	StatePending ControlState = iota
	StateControllingCatch
	StateControllingGroups
	StateValid
	StateInvalid
	StateCancelled
)

func (s ControlState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateControllingCatch:
		return "CONTROLLING_CATCH"
	case StateControllingGroups:
		return "CONTROLLING_GROUPS"
	case StateValid:
		return "VALID"
	case StateInvalid:
		return "INVALID"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can happen.
func (s ControlState) Terminal() bool {
	return s == StateValid || s == StateInvalid || s == StateCancelled
}

// Progress is the observable, cancellable progress of one control pass. It is
// safe for concurrent use.
type Progress struct {
	current   atomic.Int64
	total     atomic.Int64
	state     atomic.Int32
	cancelled atomic.Bool
}

// NewProgress returns a pending progress.
func NewProgress() *Progress {
	return &Progress{}
}

// Current is the number of completed checks.
func (p *Progress) Current() int64 { return p.current.Load() }

// Total is the number of checks planned for the pass.
func (p *Progress) Total() int64 { return p.total.Load() }

// State returns the current state.
func (p *Progress) State() ControlState { return ControlState(p.state.Load()) }

// Cancel asks the controller to stop before the next group.
func (p *Progress) Cancel() { p.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (p *Progress) Cancelled() bool { return p.cancelled.Load() }

func (p *Progress) setState(s ControlState) { p.state.Store(int32(s)) }

func (p *Progress) setTotal(n int) { p.total.Store(int64(n)) }

func (p *Progress) step() { p.current.Add(1) }

func (p *Progress) complete() { p.current.Store(p.total.Load()) }
