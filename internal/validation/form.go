package validation

import (
	"context"
	"sync"

	"catchcore/pkg/domain"
)

// Form is the default domain.Form. It is pending until every asynchronous
// validator has reported.
type Form struct {
	mu     sync.RWMutex
	errs   domain.ErrorMap
	err    error
	done   chan struct{}
	closed bool
}

func newForm(errs domain.ErrorMap) *Form {
	return &Form{errs: errs, done: make(chan struct{})}
}

func (f *Form) finish(extra domain.ErrorMap, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if len(extra) > 0 {
		if f.errs == nil {
			f.errs = domain.ErrorMap{}
		}
		f.errs.Merge(extra)
	}
	f.err = err
	f.closed = true
	close(f.done)
}

// Pending reports whether asynchronous validators are still running.
func (f *Form) Pending() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

// WaitWhilePending blocks until the form settles or ctx is done. The error of
// a failed asynchronous validator is returned once settled.
func (f *Form) WaitWhilePending(ctx context.Context) error {
	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Valid reports whether the settled form holds no error. A pending form is
// never valid.
func (f *Form) Valid() bool {
	if f.Pending() {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.errs) == 0 && f.err == nil
}

// Errors returns a copy of the field errors collected so far.
func (f *Form) Errors() domain.ErrorMap {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.errs) == 0 {
		return nil
	}
	out := make(domain.ErrorMap, len(f.errs))
	out.Merge(f.errs)
	return out
}
