package activity

import (
	"context"
	"time"

	"github.com/goliatone/go-opular/scope"
)

// Observer turns scope notifications into activity events. Hook errors are
// logged through the emitter logger since observers cannot fail.
type Observer struct {
	emitter *Emitter
	ctx     context.Context
}

var _ scope.Observer = (*Observer)(nil)

// NewObserver returns an observer emitting through emitter with ctx.
func NewObserver(ctx context.Context, emitter *Emitter) *Observer {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Observer{emitter: emitter, ctx: ctx}
}

// ScopeCreated implements scope.Observer.
func (o *Observer) ScopeCreated(s *scope.Scope) {
	o.emit(BuildScopeCreatedEvent(refOf(s)))
}

// ScopeDestroyed implements scope.Observer.
func (o *Observer) ScopeDestroyed(s *scope.Scope) {
	o.emit(BuildScopeDestroyedEvent(refOf(s)))
}

// DigestCompleted implements scope.Observer.
func (o *Observer) DigestCompleted(s *scope.Scope, rounds int, elapsed time.Duration) {
	o.emit(BuildDigestEvent(refOf(s), DigestStats{Rounds: rounds, Elapsed: elapsed}))
}

// DigestFailed implements scope.Observer.
func (o *Observer) DigestFailed(s *scope.Scope, err error) {
	o.emit(BuildDigestEvent(refOf(s), DigestStats{Err: err}))
}

// WatchFailed implements scope.Observer.
func (o *Observer) WatchFailed(s *scope.Scope, err error) {
	o.emit(BuildWatchFailedEvent(refOf(s), err))
}

func (o *Observer) emit(event Event) {
	if !o.emitter.Enabled() {
		return
	}
	if err := o.emitter.Emit(o.ctx, event); err != nil {
		o.emitter.logger.Error("activity: hook failed", "verb", event.Verb, "err", err)
	}
}

func refOf(s *scope.Scope) ScopeRef {
	ref := ScopeRef{ID: s.ID(), Isolated: s.Isolated()}
	if parent := s.HierarchyParent(); parent != nil {
		ref.ParentID = parent.ID()
	}
	return ref
}
