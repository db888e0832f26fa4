package core

import (
	"sync"
	"testing"
)

func TestControlStateStrings(t *testing.T) {
	cases := map[ControlState]string{
		StatePending:           "PENDING",
		StateControllingCatch:  "CONTROLLING_CATCH",
		StateControllingGroups: "CONTROLLING_GROUPS",
		StateValid:             "VALID",
		StateInvalid:           "INVALID",
		StateCancelled:         "CANCELLED",
		ControlState(42):       "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: expected %s, got %s", state, want, got)
		}
	}
	for _, s := range []ControlState{StatePending, StateControllingCatch, StateControllingGroups} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}

func TestProgressConcurrentSteps(t *testing.T) {
	p := NewProgress()
	p.setTotal(100)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.step()
		}()
	}
	wg.Wait()
	if p.Current() != 100 || p.Total() != 100 {
		t.Fatalf("expected 100/100, got %d/%d", p.Current(), p.Total())
	}
	if p.Cancelled() {
		t.Fatalf("new progress must not be cancelled")
	}
	p.Cancel()
	if !p.Cancelled() {
		t.Fatalf("expected cancelled")
	}
}
