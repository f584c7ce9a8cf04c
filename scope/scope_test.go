package scope_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-opular/scope"
)

type recordingObserver struct {
	scope.BaseObserver
	digests   int
	rounds    []int
	failures  []error
	watchErrs []error
	created   int
	destroyed int
	parents   []*scope.Scope
}

func (o *recordingObserver) ScopeCreated(*scope.Scope) { o.created++ }
func (o *recordingObserver) ScopeDestroyed(s *scope.Scope) {
	o.destroyed++
	o.parents = append(o.parents, s.HierarchyParent())
}

func (o *recordingObserver) DigestCompleted(_ *scope.Scope, rounds int, _ time.Duration) {
	o.digests++
	o.rounds = append(o.rounds, rounds)
}

func (o *recordingObserver) DigestFailed(_ *scope.Scope, err error) {
	o.failures = append(o.failures, err)
}

func (o *recordingObserver) WatchFailed(_ *scope.Scope, err error) {
	o.watchErrs = append(o.watchErrs, err)
}

func newRoot(t *testing.T, opts ...scope.Option) (*scope.Scope, *scope.Loop, *recordingObserver) {
	t.Helper()
	loop := scope.NewLoop()
	observer := &recordingObserver{}
	opts = append([]scope.Option{scope.WithScheduler(loop), scope.WithObserver(observer)}, opts...)
	return scope.New(nil, opts...), loop, observer
}

/*
   Property bag and lookup tree
*/

func TestScope_GetSetWithLookupFallback(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("name", "root")
	root.Set("shared", 1)

	child := root.NewChild()
	assert.Equal(t, "root", child.Get("name"))
	assert.True(t, child.Has("name"))
	assert.False(t, child.HasOwn("name"))

	child.Set("name", "child")
	assert.Equal(t, "child", child.Get("name"))
	assert.Equal(t, "root", root.Get("name"))

	child.Delete("name")
	assert.Equal(t, "root", child.Get("name"))
	assert.Nil(t, child.Get("missing"))
}

func TestScope_IsolatedCutsLookup(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("name", "root")

	isolated := root.NewChild(scope.Isolated())
	assert.True(t, isolated.Isolated())
	assert.Nil(t, isolated.Parent())
	assert.Nil(t, isolated.Get("name"))
	assert.Same(t, root, isolated.HierarchyParent())
	assert.Same(t, root, isolated.Root())
}

func TestScope_KeysKeepInsertionOrder(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("c", 1)
	root.Set("a", 2)
	root.Set("b", 3)
	root.Set("c", 4)

	assert.Equal(t, []string{"c", "a", "b"}, root.Keys())
}

func TestScope_VarsFlattenLookupChain(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("a", 1)
	root.Set("b", 1)
	child := root.NewChild()
	child.Set("b", 2)

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, child.Vars())
}

func TestScope_TraceReportsProvenance(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("a", "root")
	child := root.NewChild()

	trace := child.Trace("a")
	require.Len(t, trace.Layers, 2)
	assert.False(t, trace.Layers[0].Found)
	assert.Equal(t, child.ID(), trace.Layers[0].ScopeID)
	assert.True(t, trace.Layers[1].Found)

	value, ok := trace.Effective()
	assert.True(t, ok)
	assert.Equal(t, "root", value)

	payload, err := trace.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"name":"a"`)
}

/*
   Watchers
*/

func TestWatch_FirstListenerCallSeesNewValueAsOld(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("value", 42)

	var gotNew, gotOld any
	calls := 0
	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(newValue, oldValue any, _ *scope.Scope) {
		calls++
		gotNew, gotOld = newValue, oldValue
	}, false)

	require.NoError(t, root.Digest())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 42, gotNew)
	assert.Equal(t, 42, gotOld)

	require.NoError(t, root.Digest())
	assert.Equal(t, 1, calls, "unchanged value must not notify")

	root.Set("value", 43)
	require.NoError(t, root.Digest())
	assert.Equal(t, 2, calls)
	assert.Equal(t, 43, gotNew)
	assert.Equal(t, 42, gotOld)
}

func TestWatch_UndefinedValueStillNotifiesOnce(t *testing.T) {
	root, _, _ := newRoot(t)
	calls := 0
	root.Watch(func(*scope.Scope) any { return nil }, func(any, any, *scope.Scope) { calls++ }, false)

	require.NoError(t, root.Digest())
	require.NoError(t, root.Digest())
	assert.Equal(t, 1, calls)
}

func TestWatch_StringExpressions(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("a", 1)

	var got any
	root.Watch("a + 1", func(newValue, _ any, _ *scope.Scope) { got = newValue }, false)
	require.NoError(t, root.Digest())
	assert.Equal(t, 2, got)
}

func TestWatch_ListenerChangesTriggerAnotherRound(t *testing.T) {
	root, _, observer := newRoot(t)
	root.Set("name", "jane")

	root.Watch(func(s *scope.Scope) any { return s.Get("upper") }, func(newValue, _ any, s *scope.Scope) {
		if newValue != nil {
			s.Set("initial", newValue.(string)[:1]+".")
		}
	}, false)
	root.Watch(func(s *scope.Scope) any { return s.Get("name") }, func(newValue, _ any, s *scope.Scope) {
		if newValue != nil {
			s.Set("upper", "JANE")
		}
	}, false)

	require.NoError(t, root.Digest())
	assert.Equal(t, "J.", root.Get("initial"))
	assert.Greater(t, observer.rounds[0], 1)
}

func TestWatch_ByValueDetectsNestedChanges(t *testing.T) {
	root, _, _ := newRoot(t)
	items := map[string]any{"list": []any{1, 2}}
	root.Set("items", items)

	byValue, byRef := 0, 0
	root.Watch(func(s *scope.Scope) any { return s.Get("items") }, func(any, any, *scope.Scope) { byValue++ }, true)
	root.Watch(func(s *scope.Scope) any { return s.Get("items") }, func(any, any, *scope.Scope) { byRef++ }, false)
	require.NoError(t, root.Digest())

	items["list"] = append(items["list"].([]any), 3)
	require.NoError(t, root.Digest())

	assert.Equal(t, 2, byValue)
	assert.Equal(t, 1, byRef)
}

type chainNode struct {
	Name string
	Next *chainNode
}

func TestWatch_ByValueHandlesCycles(t *testing.T) {
	root, _, _ := newRoot(t)
	node := &chainNode{Name: "a"}
	node.Next = node

	calls := 0
	root.Watch(func(*scope.Scope) any { return node }, func(any, any, *scope.Scope) { calls++ }, true)
	require.NoError(t, root.Digest())
	require.NoError(t, root.Digest())
	assert.Equal(t, 1, calls)

	node.Name = "b"
	require.NoError(t, root.Digest())
	assert.Equal(t, 2, calls)
}

func TestWatch_NaNIsStable(t *testing.T) {
	root, _, _ := newRoot(t)
	calls := 0
	root.Watch(func(*scope.Scope) any { return math.NaN() }, func(any, any, *scope.Scope) { calls++ }, false)

	require.NoError(t, root.Digest())
	assert.Equal(t, 1, calls)
}

func TestWatch_ShortCircuitsOnLastDirtyWatch(t *testing.T) {
	root, _, _ := newRoot(t)
	values := make([]int, 100)
	for i := range values {
		values[i] = i
	}

	executions := 0
	for i := range values {
		i := i
		root.Watch(func(*scope.Scope) any {
			executions++
			return values[i]
		}, nil, false)
	}

	require.NoError(t, root.Digest())
	assert.Equal(t, 200, executions)

	values[0] = 420
	require.NoError(t, root.Digest())
	assert.Equal(t, 301, executions)
}

func TestWatch_DeregisterStopsNotifications(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("value", 1)
	calls := 0
	remove := root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) { calls++ }, false)

	require.NoError(t, root.Digest())
	remove()
	remove()
	root.Set("value", 2)
	require.NoError(t, root.Digest())

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, root.WatchCount())
}

func TestWatch_DeregisterAnotherWatcherDuringDigest(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("value", "abc")

	var removeSecond func()
	seen := []string{}
	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) {
		seen = append(seen, "first")
		removeSecond()
	}, false)
	removeSecond = root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) {
		seen = append(seen, "second")
	}, false)
	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) {
		seen = append(seen, "third")
	}, false)

	require.NoError(t, root.Digest())
	assert.Equal(t, []string{"first", "third"}, seen)
}

func TestWatch_ErrorsAreRecoveredPerWatcher(t *testing.T) {
	root, _, observer := newRoot(t)
	root.Set("value", 1)

	root.Watch(func(*scope.Scope) (any, error) { return nil, errors.New("boom") }, nil, false)
	root.Watch(func(*scope.Scope) any { panic("kaboom") }, nil, false)
	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) {
		panic("listener")
	}, false)

	calls := 0
	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) { calls++ }, false)

	require.NoError(t, root.Digest())
	assert.Equal(t, 1, calls)
	assert.NotEmpty(t, observer.watchErrs)
}

/*
   Digest, phases and TTL
*/

func TestDigest_TTLExceeded(t *testing.T) {
	root, _, observer := newRoot(t, scope.WithDigestTTL(5))
	counter := 0
	root.Watch(func(*scope.Scope) any {
		counter++
		return counter
	}, nil, false)

	err := root.Digest()
	require.Error(t, err)
	assert.True(t, errors.Is(err, scope.ErrDigestTTLExceeded))

	var ttlErr scope.DigestTTLError
	require.True(t, errors.As(err, &ttlErr))
	assert.Equal(t, 5, ttlErr.TTL)
	assert.Equal(t, 5, counter)
	assert.Equal(t, scope.PhaseIdle, root.Phase())
	assert.Len(t, observer.failures, 1)
}

func TestDigest_DefaultTTL(t *testing.T) {
	root, _, _ := newRoot(t)
	assert.Equal(t, scope.DefaultDigestTTL, root.DigestTTL())
}

func TestDigest_TraversesChildrenAndHierarchyParents(t *testing.T) {
	root, _, _ := newRoot(t)
	a := root.NewChild()
	b := root.NewChild()
	// Looks up through a, digests under b.
	c := a.NewChild(scope.WithHierarchyParent(b))
	a.Set("value", "from-a")

	var got any
	c.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(newValue, _ any, _ *scope.Scope) { got = newValue }, false)

	require.NoError(t, a.Digest())
	assert.Nil(t, got, "c is not below a in the hierarchy")

	require.NoError(t, b.Digest())
	assert.Equal(t, "from-a", got)
	assert.Equal(t, []*scope.Scope{c}, b.Children())
}

func TestDigest_DestroyedScopesAreNotDigested(t *testing.T) {
	root, _, observer := newRoot(t)
	child := root.NewChild()
	child.Set("value", 1)
	calls := 0
	child.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) { calls++ }, false)

	require.NoError(t, root.Digest())
	child.Destroy()
	child.Set("value", 2)
	require.NoError(t, root.Digest())

	assert.Equal(t, 1, calls)
	assert.Empty(t, root.Children())
	assert.Equal(t, 1, observer.destroyed)
	assert.Equal(t, []*scope.Scope{root}, observer.parents)
	assert.Nil(t, child.HierarchyParent())
}

func TestApply_DigestsFromRoot(t *testing.T) {
	root, _, _ := newRoot(t)
	child := root.NewChild()

	var got any
	root.Watch(func(s *scope.Scope) any { return s.Get("count") }, func(newValue, _ any, _ *scope.Scope) { got = newValue }, false)

	value, err := child.Apply(func(s *scope.Scope) (any, error) {
		s.Root().Set("count", 3)
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", value)
	assert.Equal(t, 3, got)
	assert.Equal(t, scope.PhaseIdle, root.Phase())
}

func TestApply_EvaluationErrorStillDigests(t *testing.T) {
	root, _, observer := newRoot(t)
	_, err := root.Apply(func(*scope.Scope) error { return errors.New("bad input") })
	require.Error(t, err)
	assert.Equal(t, 1, observer.digests)
}

func TestApply_PhaseConflictInsideDigest(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("value", 1)

	var applyErr error
	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(_ any, _ any, s *scope.Scope) {
		_, applyErr = s.Apply(func(*scope.Scope) {})
	}, false)

	require.NoError(t, root.Digest())
	require.Error(t, applyErr)
	assert.True(t, errors.Is(applyErr, scope.ErrPhaseConflict))

	var conflict scope.PhaseConflictError
	require.True(t, errors.As(applyErr, &conflict))
	assert.Equal(t, scope.PhaseDigest, conflict.Active)
	assert.Equal(t, scope.PhaseApply, conflict.Requested)

	_, err := root.Apply(func(s *scope.Scope) { s.Set("value", 2) })
	assert.NoError(t, err)
}

/*
   Async queues
*/

func TestEvalAsync_SchedulesSingleDigest(t *testing.T) {
	root, loop, observer := newRoot(t)
	runs := 0

	root.EvalAsync(func(*scope.Scope) { runs++ })
	root.EvalAsync(func(*scope.Scope) { runs++ })
	assert.Equal(t, 1, loop.Pending())
	assert.Equal(t, 0, runs)

	loop.Flush()
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, observer.digests)

	loop.Flush()
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, observer.digests)
}

func TestEvalAsync_RunsWithinCurrentDigest(t *testing.T) {
	root, loop, _ := newRoot(t)
	root.Set("value", 1)

	ran, queued := false, false
	root.Watch(func(s *scope.Scope) any {
		if !queued {
			queued = true
			s.EvalAsync(func(*scope.Scope) { ran = true })
		}
		return s.Get("value")
	}, nil, false)

	require.NoError(t, root.Digest())
	assert.True(t, ran)
	assert.Equal(t, 0, loop.Pending())
}

func TestEvalAsync_ExpressionsEvaluateOnQueuingScope(t *testing.T) {
	root, loop, _ := newRoot(t)
	child := root.NewChild()
	child.Set("name", "child")

	var got any
	child.EvalAsync(func(s *scope.Scope) { got = s.Get("name") })
	loop.Flush()
	assert.Equal(t, "child", got)
}

func TestApplyAsync_Coalesces(t *testing.T) {
	root, loop, observer := newRoot(t)
	runs := 0

	root.ApplyAsync(func(*scope.Scope) { runs++ })
	root.ApplyAsync(func(*scope.Scope) { runs++ })
	assert.Equal(t, 1, loop.Pending())

	loop.Flush()
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, observer.digests)
}

func TestApplyAsync_FlushedByDigest(t *testing.T) {
	root, loop, observer := newRoot(t)
	runs := 0

	root.ApplyAsync(func(*scope.Scope) { runs++ })
	require.NoError(t, root.Digest())

	assert.Equal(t, 1, runs)
	assert.Equal(t, 0, loop.Pending())

	loop.Flush()
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, observer.digests)
}

func TestApplyAsync_ReschedulesAfterFailedApply(t *testing.T) {
	root, loop, _ := newRoot(t)
	root.Set("value", 1)
	runs := 0

	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(_ any, _ any, s *scope.Scope) {
		s.ApplyAsync(func(*scope.Scope) { runs++ })
		loop.Flush()
	}, false)
	require.NoError(t, root.Digest())
	assert.Equal(t, 0, runs)

	root.ApplyAsync(func(*scope.Scope) { runs++ })
	assert.Equal(t, 1, loop.Pending())

	loop.Flush()
	assert.Equal(t, 2, runs)
}

func TestPostDigest_RunsAfterDigest(t *testing.T) {
	root, _, _ := newRoot(t)
	root.Set("value", 1)

	order := []string{}
	root.Watch(func(s *scope.Scope) any { return s.Get("value") }, func(any, any, *scope.Scope) {
		order = append(order, "listener")
	}, false)
	root.PostDigest(func() { order = append(order, "post") })

	assert.Empty(t, order)
	require.NoError(t, root.Digest())
	require.NoError(t, root.Digest())
	assert.Equal(t, []string{"listener", "post"}, order)
}

func TestObserver_SeesScopeLifecycle(t *testing.T) {
	root, _, observer := newRoot(t)
	root.NewChild().NewChild()
	assert.Equal(t, 3, observer.created)
}
