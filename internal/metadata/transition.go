// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/design-engine/pkg/types"
)

// Transition is one committed workflow state change.
type Transition struct {
	Spec  string
	Kind  types.ModuleKind
	From  types.WorkflowState
	To    types.WorkflowState
	Actor string
	At    time.Time
}

// TransitionRecorder receives every committed transition, after the
// metadata document has been written. Recorder errors are logged, never
// returned to the caller.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, t Transition) error
}

// allowed maps a target state to the states it may be entered from.
// PendingReview is reachable from anywhere: generation and regeneration
// both land there.
var allowed = map[types.WorkflowState][]types.WorkflowState{
	types.StatePendingReview: {types.StateNotGenerated, types.StatePendingReview, types.StateApproved, types.StateRejected},
	types.StateApproved:      {types.StatePendingReview, types.StateApproved},
	types.StateRejected:      {types.StatePendingReview, types.StateApproved},
}

// CheckTransition reports whether from may move to to.
func CheckTransition(from, to types.WorkflowState) error {
	for _, s := range allowed[to] {
		if s == from {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// apply returns entry moved to state, stamping timestamps for the new state.
func apply(entry types.ModuleMetadataEntry, to types.WorkflowState, actor string, now time.Time) types.ModuleMetadataEntry {
	switch to {
	case types.StatePendingReview:
		entry.GeneratedAt = &now
		entry.ApprovedAt = nil
		entry.ApprovedBy = ""
	case types.StateApproved:
		if entry.WorkflowState == types.StateApproved {
			return entry
		}
		entry.ApprovedAt = &now
		entry.ApprovedBy = actor
	case types.StateRejected:
		entry.ApprovedAt = nil
		entry.ApprovedBy = ""
	}
	entry.WorkflowState = to
	return entry
}
