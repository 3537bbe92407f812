// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the records shared across the design engine: module
// kinds and descriptors, workflow metadata, analyzer outputs, and configuration.
package types

import "regexp"

// ModuleKind identifies a module category. Standard kinds are fixed; custom
// kinds are lowercase kebab-case identifiers of at most 50 characters.
type ModuleKind string

const (
	KindFrontend       ModuleKind = "frontend"
	KindMobile         ModuleKind = "mobile"
	KindServerAPI      ModuleKind = "server-api"
	KindServerLogic    ModuleKind = "server-logic"
	KindServerDatabase ModuleKind = "server-database"
	KindTesting        ModuleKind = "testing"
)

// StandardKinds lists the built-in kinds in their declared priority order.
var StandardKinds = []ModuleKind{
	KindFrontend,
	KindMobile,
	KindServerAPI,
	KindServerLogic,
	KindServerDatabase,
	KindTesting,
}

// IsStandard reports whether k is one of the built-in kinds.
func (k ModuleKind) IsStandard() bool {
	for _, s := range StandardKinds {
		if s == k {
			return true
		}
	}
	return false
}

func (k ModuleKind) String() string { return string(k) }

// ParseKinds converts a list of strings into ModuleKinds, dropping blanks.
func ParseKinds(values []string) []ModuleKind {
	kinds := make([]ModuleKind, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		kinds = append(kinds, ModuleKind(v))
	}
	return kinds
}

// DetectionRule decides whether a module kind applies to a requirements text
// or a legacy section heading. Rules are read-only after load.
type DetectionRule struct {
	// Keywords match case-insensitively: on word boundaries for Latin text,
	// by containment for CJK text.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Patterns are compiled regular expressions matched against the text.
	Patterns []*regexp.Regexp `json:"-" yaml:"-"`

	// DefaultApplicable makes the kind apply to every requirements text
	// during auto-detection. It never applies to legacy section mapping.
	DefaultApplicable bool `json:"defaultApplicable" yaml:"defaultApplicable"`
}

// ModuleDescriptor describes one known module kind. The registry owns
// descriptors; they are replaced wholesale on configuration reload.
type ModuleDescriptor struct {
	Kind ModuleKind `json:"type" yaml:"type"`

	// Name is the display name (at most 100 characters).
	Name string `json:"name" yaml:"name"`

	// FileName is an explicit file name for custom kinds. Empty means the
	// configured file naming pattern applies.
	FileName string `json:"fileName,omitempty" yaml:"fileName,omitempty"`

	// PromptTemplate is the generation prompt with {{placeholders}}.
	PromptTemplate string `json:"promptTemplate,omitempty" yaml:"promptTemplate,omitempty"`

	Detection *DetectionRule `json:"detectionRules,omitempty" yaml:"detectionRules,omitempty"`

	Icon string `json:"icon,omitempty" yaml:"icon,omitempty"`

	// Priority orders kinds for detection output, generation, and tie
	// breaking during legacy migration. Lower runs first.
	Priority int `json:"priority" yaml:"priority"`

	// Custom is true for descriptors supplied by configuration.
	Custom bool `json:"custom" yaml:"custom"`
}

// CustomDetectionRules is the configuration form of a DetectionRule, with
// patterns as uncompiled strings.
type CustomDetectionRules struct {
	Keywords          []string `json:"keywords,omitempty" yaml:"keywords,omitempty" toml:"keywords" mapstructure:"keywords"`
	Patterns          []string `json:"patterns,omitempty" yaml:"patterns,omitempty" toml:"patterns" mapstructure:"patterns"`
	DefaultApplicable bool     `json:"defaultApplicable,omitempty" yaml:"defaultApplicable,omitempty" toml:"defaultApplicable" mapstructure:"defaultApplicable"`
}

// CustomModuleDefinition is a user-supplied module kind as read from
// settings or a definitions file.
type CustomModuleDefinition struct {
	Type           string                `json:"type" yaml:"type" toml:"type" mapstructure:"type"`
	Name           string                `json:"name" yaml:"name" toml:"name" mapstructure:"name"`
	FileName       string                `json:"fileName" yaml:"fileName" toml:"fileName" mapstructure:"fileName"`
	PromptTemplate string                `json:"promptTemplate,omitempty" yaml:"promptTemplate,omitempty" toml:"promptTemplate" mapstructure:"promptTemplate"`
	DetectionRules *CustomDetectionRules `json:"detectionRules,omitempty" yaml:"detectionRules,omitempty" toml:"detectionRules" mapstructure:"detectionRules"`
	Icon           string                `json:"icon,omitempty" yaml:"icon,omitempty" toml:"icon" mapstructure:"icon"`
}
