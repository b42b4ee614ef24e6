package engine

import (
	"errors"
	"fmt"
)

// ErrPolicyNotExecutable is returned when a run is requested against a
// policy that is not in the active state.
var ErrPolicyNotExecutable = errors.New("policy is not executable")

// CycleDetectedError reports a node revisited during traversal. Load-time
// validation rejects cyclic graphs, so hitting this at runtime means the
// stored definition was corrupted or bypassed validation.
type CycleDetectedError struct {
	NodeID string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("cycle detected at runtime: node %q visited twice", e.NodeID)
}

// TerminalNotReachedError reports a traversal that ran out of edges before
// reaching a terminal node. The run is recorded as incomplete.
type TerminalNotReachedError struct {
	NodeID string
	Branch string
}

func (e *TerminalNotReachedError) Error() string {
	if e.Branch != "" {
		return fmt.Sprintf("no outgoing edge from node %q matches branch %q", e.NodeID, e.Branch)
	}

	return fmt.Sprintf("no outgoing edge from non-terminal node %q", e.NodeID)
}
