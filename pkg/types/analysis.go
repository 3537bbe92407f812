// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ReferenceKind classifies what a cross-module reference points at.
type ReferenceKind string

const (
	RefAPIEndpoint ReferenceKind = "api-endpoint"
	RefDataModel   ReferenceKind = "data-model"
	RefService     ReferenceKind = "service"
)

// Reference is a mention in one module of an identifier another module
// should define.
type Reference struct {
	SourceModule  ModuleKind    `json:"sourceModule" yaml:"sourceModule"`
	TargetModule  ModuleKind    `json:"targetModule" yaml:"targetModule"`
	Text          string        `json:"text" yaml:"text"`
	ReferenceKind ReferenceKind `json:"referenceKind" yaml:"referenceKind"`
}

// Severity grades an inconsistency.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Inconsistency is a reference with no matching definition in its target.
type Inconsistency struct {
	Module1     ModuleKind `json:"module1" yaml:"module1"`
	Module2     ModuleKind `json:"module2" yaml:"module2"`
	Description string     `json:"description" yaml:"description"`
	Severity    Severity   `json:"severity" yaml:"severity"`
	Suggestion  string     `json:"suggestion" yaml:"suggestion"`
}

// CrossLink suggests a navigation link from one module to another.
type CrossLink struct {
	TargetModule ModuleKind `json:"targetModule" yaml:"targetModule"`
	LinkText     string     `json:"linkText" yaml:"linkText"`
	Reason       string     `json:"reason" yaml:"reason"`
}

// ReferenceMap nests references by source then target module.
type ReferenceMap map[ModuleKind]map[ModuleKind][]Reference

// Count returns the total number of references.
func (m ReferenceMap) Count() int {
	n := 0
	for _, targets := range m {
		for _, refs := range targets {
			n += len(refs)
		}
	}
	return n
}
