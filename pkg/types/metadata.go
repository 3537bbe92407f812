// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"sort"
	"time"
)

// MetadataVersion is the schema version written to every metadata document.
const MetadataVersion = "1.0.0"

// WorkflowState is the review status of one module within one spec.
type WorkflowState string

const (
	StateNotGenerated  WorkflowState = "not-generated"
	StatePendingReview WorkflowState = "pending-review"
	StateApproved      WorkflowState = "approved"
	StateRejected      WorkflowState = "rejected"
)

// Valid reports whether s is a known workflow state.
func (s WorkflowState) Valid() bool {
	switch s {
	case StateNotGenerated, StatePendingReview, StateApproved, StateRejected:
		return true
	}
	return false
}

// ParseWorkflowState converts a string into a WorkflowState.
func ParseWorkflowState(s string) (WorkflowState, error) {
	st := WorkflowState(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown workflow state %q", s)
	}
	return st, nil
}

// ModuleMetadataEntry records the review status of one module.
type ModuleMetadataEntry struct {
	WorkflowState WorkflowState `json:"workflowState" yaml:"workflowState"`
	GeneratedAt   *time.Time    `json:"generatedAt,omitempty" yaml:"generatedAt,omitempty"`
	ApprovedAt    *time.Time    `json:"approvedAt,omitempty" yaml:"approvedAt,omitempty"`
	ApprovedBy    string        `json:"approvedBy,omitempty" yaml:"approvedBy,omitempty"`
}

// SpecMetadata is the durable workflow record for one spec.
type SpecMetadata struct {
	Version                string                             `json:"version" yaml:"version"`
	Modules                map[ModuleKind]ModuleMetadataEntry `json:"modules" yaml:"modules"`
	CanProgressToNextPhase bool                               `json:"canProgressToNextPhase" yaml:"canProgressToNextPhase"`
}

// NewSpecMetadata returns an empty record at the current schema version.
func NewSpecMetadata() SpecMetadata {
	return SpecMetadata{
		Version: MetadataVersion,
		Modules: map[ModuleKind]ModuleMetadataEntry{},
	}
}

// ComputeCanProgress reports whether every tracked module is Approved. An
// empty module set never progresses.
func (m SpecMetadata) ComputeCanProgress() bool {
	if len(m.Modules) == 0 {
		return false
	}
	for _, entry := range m.Modules {
		if entry.WorkflowState != StateApproved {
			return false
		}
	}
	return true
}

// State returns the workflow state for kind, NotGenerated when untracked.
func (m SpecMetadata) State(kind ModuleKind) WorkflowState {
	entry, ok := m.Modules[kind]
	if !ok || entry.WorkflowState == "" {
		return StateNotGenerated
	}
	return entry.WorkflowState
}

// Kinds returns the tracked module kinds in lexical order.
func (m SpecMetadata) Kinds() []ModuleKind {
	kinds := make([]ModuleKind, 0, len(m.Modules))
	for k := range m.Modules {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Clone returns a deep copy so cached records are never shared with callers.
func (m SpecMetadata) Clone() SpecMetadata {
	out := SpecMetadata{
		Version:                m.Version,
		Modules:                make(map[ModuleKind]ModuleMetadataEntry, len(m.Modules)),
		CanProgressToNextPhase: m.CanProgressToNextPhase,
	}
	for k, e := range m.Modules {
		out.Modules[k] = e.clone()
	}
	return out
}

func (e ModuleMetadataEntry) clone() ModuleMetadataEntry {
	out := e
	if e.GeneratedAt != nil {
		t := *e.GeneratedAt
		out.GeneratedAt = &t
	}
	if e.ApprovedAt != nil {
		t := *e.ApprovedAt
		out.ApprovedAt = &t
	}
	return out
}
