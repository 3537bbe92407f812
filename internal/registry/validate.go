// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/design-engine/pkg/types"
)

const (
	maxTypeLength = 50
	maxNameLength = 100
)

var kebabCase = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// FieldError names the definition and field that failed validation.
type FieldError struct {
	Index   int    `json:"index" yaml:"index"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

func (e FieldError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("customModules[%d] (%s).%s: %s", e.Index, e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("customModules[%d].%s: %s", e.Index, e.Field, e.Message)
}

// DefinitionErrors collects every field error found in one batch of
// custom definitions.
type DefinitionErrors []FieldError

func (errs DefinitionErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidDefinition) match.
func (errs DefinitionErrors) Is(target error) bool { return target == ErrInvalidDefinition }

// ValidateDefinitions checks every definition and reports all field errors.
// Duplicate types within defs are errors; reuse of a standard type is not.
func ValidateDefinitions(defs []types.CustomModuleDefinition) DefinitionErrors {
	var errs DefinitionErrors
	seen := map[string]int{}
	for i, d := range defs {
		add := func(field, format string, args ...any) {
			errs = append(errs, FieldError{Index: i, Type: d.Type, Field: field, Message: fmt.Sprintf(format, args...)})
		}

		switch {
		case d.Type == "":
			add("type", "is required")
		case len(d.Type) > maxTypeLength:
			add("type", "must be at most %d characters", maxTypeLength)
		case !kebabCase.MatchString(d.Type):
			add("type", "must be lowercase kebab-case")
		default:
			if first, dup := seen[d.Type]; dup {
				add("type", "duplicates customModules[%d]", first)
			} else {
				seen[d.Type] = i
			}
		}

		switch {
		case strings.TrimSpace(d.Name) == "":
			add("name", "is required")
		case utf8.RuneCountInString(d.Name) > maxNameLength:
			add("name", "must be at most %d characters", maxNameLength)
		}

		switch {
		case d.FileName == "":
			add("fileName", "is required")
		case strings.ContainsAny(d.FileName, `/\`):
			add("fileName", "must not contain path separators")
		case strings.ContainsFunc(d.FileName, unicode.IsControl):
			add("fileName", "must not contain control characters")
		case d.FileName == types.ModuleFileExt || !strings.HasSuffix(d.FileName, types.ModuleFileExt):
			add("fileName", "must end in %s", types.ModuleFileExt)
		}

		if d.DetectionRules != nil {
			for j, p := range d.DetectionRules.Patterns {
				if _, err := regexp.Compile(p); err != nil {
					add(fmt.Sprintf("detectionRules.patterns[%d]", j), "invalid pattern: %v", err)
				}
			}
		}
	}
	return errs
}
