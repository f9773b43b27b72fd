package view

import (
	"errors"
	"fmt"
)

// Phase is where a screen is in its load/edit cycle.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseLoading        Phase = "loading"
	PhaseLoaded         Phase = "loaded"
	PhaseLoadFailed     Phase = "load_failed"
	PhaseModalOpen      Phase = "modal_open"
	PhaseValidating     Phase = "validating"
	PhaseSubmitting     Phase = "submitting"
	PhaseConfirmDiscard Phase = "confirm_discard"
)

// ErrBusy is returned when a screen cannot leave its current phase for the
// requested one, typically because a submit is already in flight.
var ErrBusy = errors.New("screen is busy")

var errSubmitInFlight = fmt.Errorf("%w: a submit is in flight", ErrBusy)

// transitions lists the valid next phases for each phase. Unmount is not a
// transition: it resets any phase to idle. A submitting screen only loads
// through Controller.Refetch.
var transitions = map[Phase][]Phase{
	PhaseIdle:           {PhaseLoading},
	PhaseLoading:        {PhaseLoading, PhaseLoaded, PhaseLoadFailed},
	PhaseLoaded:         {PhaseLoading, PhaseModalOpen, PhaseValidating},
	PhaseLoadFailed:     {PhaseLoading, PhaseModalOpen, PhaseValidating},
	PhaseModalOpen:      {PhaseLoading, PhaseValidating, PhaseConfirmDiscard, PhaseLoaded, PhaseLoadFailed},
	PhaseValidating:     {PhaseSubmitting, PhaseModalOpen},
	PhaseSubmitting:     {PhaseLoaded, PhaseLoadFailed, PhaseModalOpen},
	PhaseConfirmDiscard: {PhaseLoaded, PhaseLoadFailed, PhaseModalOpen},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Phase) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrBusy, from, to)
	}
	return nil
}
