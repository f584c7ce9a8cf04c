package activity

import (
	"time"

	"github.com/google/uuid"
)

// Verbs of runtime events.
const (
	VerbScopeCreated    = "scope.created"
	VerbScopeDestroyed  = "scope.destroyed"
	VerbDigestCompleted = "digest.completed"
	VerbDigestFailed    = "digest.failed"
	VerbWatchFailed     = "watch.failed"
)

// Object types of runtime events.
const (
	ObjectScope  = "scope"
	ObjectDigest = "digest"
)

// ScopeRef identifies the scope an event is about.
type ScopeRef struct {
	ID       string
	ParentID string
	Isolated bool
}

// DigestStats carries the outcome of a digest.
type DigestStats struct {
	Rounds  int
	Elapsed time.Duration
	Err     error
}

// BuildScopeCreatedEvent describes a new scope.
func BuildScopeCreatedEvent(ref ScopeRef) Event {
	return buildScopeEvent(VerbScopeCreated, ref, nil)
}

// BuildScopeDestroyedEvent describes a destroyed scope.
func BuildScopeDestroyedEvent(ref ScopeRef) Event {
	return buildScopeEvent(VerbScopeDestroyed, ref, nil)
}

// BuildWatchFailedEvent describes a recovered watch or listener error.
func BuildWatchFailedEvent(ref ScopeRef, err error) Event {
	return buildScopeEvent(VerbWatchFailed, ref, map[string]any{"error": errorString(err)})
}

// BuildDigestEvent describes a digest run from ref, completed or failed
// depending on stats.Err.
func BuildDigestEvent(ref ScopeRef, stats DigestStats) Event {
	verb := VerbDigestCompleted
	metadata := map[string]any{
		"scope_id": ref.ID,
	}
	if stats.Err != nil {
		verb = VerbDigestFailed
		metadata["error"] = errorString(stats.Err)
	} else {
		metadata["rounds"] = stats.Rounds
		metadata["duration_ms"] = float64(stats.Elapsed) / float64(time.Millisecond)
	}
	return Event{
		ID:         uuid.NewString(),
		Verb:       verb,
		ObjectType: ObjectDigest,
		ObjectID:   ref.ID,
		ParentID:   ref.ParentID,
		Metadata:   metadata,
	}
}

func buildScopeEvent(verb string, ref ScopeRef, metadata map[string]any) Event {
	if ref.Isolated {
		metadata = ensureMetadata(metadata)
		metadata["isolated"] = true
	}
	return Event{
		ID:         uuid.NewString(),
		Verb:       verb,
		ObjectType: ObjectScope,
		ObjectID:   ref.ID,
		ParentID:   ref.ParentID,
		Metadata:   metadata,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
