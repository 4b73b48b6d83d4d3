package login

import (
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-oauth-login/gate"
	"github.com/jrsteele09/go-oauth-login/outcome"
)

// resultSlot holds the single outcome of one AuthRequest.
//
// Filling is two-phase: claim decides, with one compare-and-swap, which of the
// competing resolutions (automatic, manual, cancel, timeout) owns the slot; only
// the winner may then fill it. The outcome is written before the gate opens, so
// anyone who observes the gate open also observes the outcome.
type resultSlot struct {
	requestID string
	claimed   atomic.Bool
	done      *gate.Gate
	outcome   outcome.Outcome
}

func newResultSlot(requestID string) *resultSlot {
	return &resultSlot{
		requestID: requestID,
		done:      gate.New(false),
	}
}

func (s *resultSlot) claim() bool {
	return s.claimed.CompareAndSwap(false, true)
}

// fill must only be called by the goroutine that won claim.
func (s *resultSlot) fill(o outcome.Outcome) {
	s.outcome = o
	s.done.Open()
}

func (s *resultSlot) wait(timeout time.Duration) (outcome.Outcome, bool) {
	if !s.done.WaitTimeout(timeout) {
		return outcome.Outcome{}, false
	}
	return s.outcome, true
}
