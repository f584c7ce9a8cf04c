package scope

import (
	"errors"
	"fmt"
)

var (
	// ErrPhaseConflict is matched by PhaseConflictError.
	ErrPhaseConflict = errors.New("scope: phase already in progress")

	// ErrDigestTTLExceeded is matched by DigestTTLError.
	ErrDigestTTLExceeded = errors.New("scope: digest ttl reached")
)

// PhaseConflictError reports an attempt to enter a phase while another one
// is active on the same tree.
type PhaseConflictError struct {
	Active    Phase
	Requested Phase
}

func (e PhaseConflictError) Error() string {
	return fmt.Sprintf("scope: %s already in progress (requested %s)", e.Active, e.Requested)
}

// Unwrap allows errors.Is(err, ErrPhaseConflict).
func (e PhaseConflictError) Unwrap() error { return ErrPhaseConflict }

// DigestTTLError reports a digest that did not stabilise within TTL rounds.
type DigestTTLError struct {
	TTL int
}

func (e DigestTTLError) Error() string {
	return fmt.Sprintf("%s: %d rounds", ErrDigestTTLExceeded.Error(), e.TTL)
}

// Unwrap allows errors.Is(err, ErrDigestTTLExceeded).
func (e DigestTTLError) Unwrap() error { return ErrDigestTTLExceeded }
