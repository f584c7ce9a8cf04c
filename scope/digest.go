package scope

import (
	"errors"
	"fmt"
	"time"
)

func (s *Scope) beginPhase(phase Phase) error {
	r := s.state
	if r.phase != PhaseIdle {
		err := PhaseConflictError{Active: r.phase, Requested: phase}
		r.phase = PhaseIdle
		return err
	}
	r.phase = phase
	return nil
}

func (s *Scope) clearPhase() {
	s.state.phase = PhaseIdle
}

// Eval evaluates expr against s. locals shadow scope values.
func (s *Scope) Eval(expr any, locals map[string]any) (value any, err error) {
	fn := s.callable(expr)
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = fmt.Errorf("scope: evaluation panic: %v", rec)
		}
	}()
	return fn(s, locals)
}

// Apply evaluates expr inside the apply phase, then digests the whole tree.
// The evaluation error and the digest error are joined. If the tree is busy
// the phase is cleared and a PhaseConflictError returned without digesting.
func (s *Scope) Apply(expr any) (any, error) {
	if err := s.beginPhase(PhaseApply); err != nil {
		return nil, err
	}
	value, evalErr := s.Eval(expr, nil)
	s.clearPhase()
	digestErr := s.root.Digest()
	return value, errors.Join(evalErr, digestErr)
}

// EvalAsync queues expr for the next digest. When the tree is idle and
// nothing else is queued, a root digest is scheduled.
func (s *Scope) EvalAsync(expr any) {
	r := s.state
	if r.phase == PhaseIdle && len(r.asyncQueue) == 0 {
		r.scheduler.Schedule(func() {
			if len(r.asyncQueue) == 0 {
				return
			}
			if err := s.root.Digest(); err != nil {
				r.logger.Error("scope: scheduled digest failed", "scope", s.root.id, "err", err)
			}
		})
	}
	r.asyncQueue = append(r.asyncQueue, queued{scope: s, fn: s.callable(expr)})
}

// ApplyAsync queues expr to be evaluated by one coalesced Apply. A digest
// starting first flushes the queue itself and cancels the pending Apply.
func (s *Scope) ApplyAsync(expr any) {
	r := s.state
	r.applyAsyncQueue = append(r.applyAsyncQueue, queued{scope: s, fn: s.callable(expr)})
	if r.applyAsyncHandle != nil {
		return
	}
	var handle Handle
	handle = r.scheduler.Schedule(func() {
		if _, err := s.root.Apply(func() { s.flushApplyAsync() }); err != nil {
			r.logger.Error("scope: scheduled apply failed", "scope", s.root.id, "err", err)
		}
		// A failed apply leaves the queue for the next ApplyAsync.
		if r.applyAsyncHandle == handle {
			r.applyAsyncHandle = nil
		}
	})
	r.applyAsyncHandle = handle
}

// PostDigest queues fn to run once after the next digest stabilises.
func (s *Scope) PostDigest(fn func()) {
	if fn == nil {
		return
	}
	s.state.postDigestQueue = append(s.state.postDigestQueue, fn)
}

func (s *Scope) flushApplyAsync() {
	r := s.state
	s.consume(&r.applyAsyncQueue)
	r.applyAsyncHandle = nil
}

// consume evaluates the items queued when it starts. Items queued meanwhile
// stay for the next pass.
func (s *Scope) consume(queue *[]queued) {
	count := len(*queue)
	for i := 0; i < count; i++ {
		item := (*queue)[i]
		if _, err := item.scope.Eval(item.fn, nil); err != nil {
			s.reportWatchError(item.scope, "scope: queued expression failed", err)
		}
	}
	*queue = (*queue)[count:]
}

// Digest runs watchers of s and its descendants until no watcher reports a
// change, at most DigestTTL rounds.
func (s *Scope) Digest() error {
	r := s.state
	if err := s.beginPhase(PhaseDigest); err != nil {
		return err
	}
	start := time.Now()
	r.lastDirtyWatch = nil

	if r.applyAsyncHandle != nil {
		r.applyAsyncHandle.Cancel()
		s.flushApplyAsync()
	}

	ttl := r.ttl
	rounds := 0
	for {
		s.consume(&r.asyncQueue)
		rounds++
		dirty := s.digestOnce()
		if !dirty && len(r.asyncQueue) == 0 {
			break
		}
		ttl--
		if ttl == 0 {
			s.clearPhase()
			err := DigestTTLError{TTL: r.ttl}
			r.logger.Error("scope: digest failed", "scope", s.id, "rounds", rounds, "err", err)
			r.notify(func(o Observer) { o.DigestFailed(s, err) })
			return err
		}
	}

	queue := r.postDigestQueue
	count := len(queue)
	for i := 0; i < count; i++ {
		s.runPostDigest(queue[i])
	}
	r.postDigestQueue = r.postDigestQueue[count:]

	s.clearPhase()
	elapsed := time.Since(start)
	r.notify(func(o Observer) { o.DigestCompleted(s, rounds, elapsed) })
	return nil
}

func (s *Scope) runPostDigest(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.reportWatchError(s, "scope: post digest failed", fmt.Errorf("scope: post digest panic: %v", rec))
		}
	}()
	fn()
}

// digestOnce runs one round over the subtree and reports whether any watcher
// changed. Reaching the last dirty watcher of the previous round while clean
// ends the round early.
func (s *Scope) digestOnce() bool {
	r := s.state
	dirty := false
	s.everyScope(func(current *Scope) bool {
		for _, w := range append([]*watcher(nil), current.watchers...) {
			if w.removed {
				continue
			}
			value, err := current.Eval(w.watch, nil)
			if err != nil {
				s.reportWatchError(current, "scope: watch failed", err)
				continue
			}
			if w.changed(value) {
				r.lastDirtyWatch = w
				if err := w.notify(value, current); err != nil {
					s.reportWatchError(current, "scope: listener failed", err)
				}
				w.record(value)
				dirty = true
				continue
			}
			if r.lastDirtyWatch == w {
				return false
			}
		}
		return true
	})
	return dirty
}

// everyScope visits s and its descendants depth first until visit returns
// false.
func (s *Scope) everyScope(visit func(*Scope) bool) bool {
	if !visit(s) {
		return false
	}
	for _, child := range append([]*Scope(nil), s.children...) {
		if !child.everyScope(visit) {
			return false
		}
	}
	return true
}

func (s *Scope) reportWatchError(target *Scope, msg string, err error) {
	r := s.state
	r.logger.Error(msg, "scope", target.id, "err", err)
	r.notify(func(o Observer) { o.WatchFailed(target, err) })
}
