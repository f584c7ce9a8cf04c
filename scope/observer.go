package scope

import "time"

// Observer receives lifecycle notifications from a scope tree. Callbacks run
// synchronously on the digesting goroutine.
type Observer interface {
	ScopeCreated(s *Scope)
	ScopeDestroyed(s *Scope)
	DigestCompleted(s *Scope, rounds int, elapsed time.Duration)
	DigestFailed(s *Scope, err error)
	WatchFailed(s *Scope, err error)
}

// BaseObserver implements Observer with no-ops so implementations can embed
// it and override selectively.
type BaseObserver struct{}

func (BaseObserver) ScopeCreated(*Scope)                        {}
func (BaseObserver) ScopeDestroyed(*Scope)                      {}
func (BaseObserver) DigestCompleted(*Scope, int, time.Duration) {}
func (BaseObserver) DigestFailed(*Scope, error)                 {}
func (BaseObserver) WatchFailed(*Scope, error)                  {}

func (r *rootState) notify(fn func(Observer)) {
	for _, observer := range r.observers {
		if observer != nil {
			fn(observer)
		}
	}
}
