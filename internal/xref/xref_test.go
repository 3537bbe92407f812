// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package xref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/design-engine/pkg/types"
)

const apiDoc = `# API

## GET /api/users

Returns users.

## POST /api/users/{id}/avatar

| Method | Path |
|--------|------|
| GET | /api/orders |

Model: User
Model: Widget
Service: BillingService
`

func TestDetectInconsistencies_UndefinedEndpoint(t *testing.T) {
	contents := Contents{
		types.KindFrontend:  "# Widgets page\n\nThe list loads with `fetch('/api/widgets')` and shows a table.\n",
		types.KindServerAPI: "# API\n\n## GET /api/users\n\n## POST /api/users\n",
	}

	got := DetectInconsistencies(contents)
	require.Len(t, got, 1)
	assert.Equal(t, types.SeverityError, got[0].Severity)
	assert.Equal(t, types.KindFrontend, got[0].Module1)
	assert.Equal(t, types.KindServerAPI, got[0].Module2)
	assert.Contains(t, got[0].Description, "/api/widgets")
	assert.NotEmpty(t, got[0].Suggestion)
}

func TestAnalyzeReferences_HTTPCallStyles(t *testing.T) {
	contents := Contents{
		types.KindMobile: "Calls GET /api/orders?page=2 then `axios.post('/api/orders')` and " +
			"fetch(`/api/users/${id}`) plus http.delete(\"/api/users/:id\").",
	}

	refs := AnalyzeReferences(contents)
	list := refs[types.KindMobile][types.KindServerAPI]
	var texts []string
	for _, r := range list {
		texts = append(texts, r.Text)
		assert.Equal(t, types.RefAPIEndpoint, r.ReferenceKind)
	}
	assert.Equal(t, []string{"/api/orders", "/api/users/${id}"}, texts)
}

func TestDetectInconsistencies_ParameterisedPathsMatch(t *testing.T) {
	contents := Contents{
		types.KindFrontend:  "fetch(`/api/users/${userId}/avatar`); GET /api/orders; fetch('/api/users')",
		types.KindServerAPI: apiDoc,
	}
	assert.Empty(t, errorsOnly(DetectInconsistencies(contents)))
}

func TestDetectInconsistencies_DataModelsAreWarnings(t *testing.T) {
	contents := Contents{
		types.KindServerAPI:      apiDoc,
		types.KindServerDatabase: "# Database\n\nCREATE TABLE users (id INTEGER PRIMARY KEY);\n",
	}

	got := DetectInconsistencies(contents)
	require.Len(t, got, 1)
	assert.Equal(t, types.SeverityWarning, got[0].Severity)
	assert.Equal(t, types.KindServerDatabase, got[0].Module2)
	assert.Contains(t, got[0].Description, "Widget")
}

func TestDetectInconsistencies_ServiceDefinedByHeading(t *testing.T) {
	contents := Contents{
		types.KindServerAPI:   "Service: BillingService\nService: AuditService\n",
		types.KindServerLogic: "# Logic\n\n## Billing Service\n\nCharges cards.\n",
	}

	got := DetectInconsistencies(contents)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Description, "AuditService")
	assert.Equal(t, types.SeverityWarning, got[0].Severity)
}

func TestDetectInconsistencies_AbsentTargetNotReported(t *testing.T) {
	contents := Contents{types.KindServerAPI: apiDoc}

	refs := AnalyzeReferences(contents)
	assert.NotEmpty(t, refs[types.KindServerAPI][types.KindServerLogic])
	assert.Empty(t, DetectInconsistencies(contents))
}

func TestDetectInconsistencies_Empty(t *testing.T) {
	assert.Empty(t, DetectInconsistencies(Contents{}))
	assert.Empty(t, AnalyzeReferences(nil))
}

func TestAnalyze_IsPure(t *testing.T) {
	contents := Contents{
		types.KindFrontend:       "fetch('/api/widgets'); fetch('/api/gadgets'); GET /api/users",
		types.KindMobile:         "POST /api/sessions",
		types.KindServerAPI:      apiDoc,
		types.KindServerDatabase: "CREATE TABLE users (id INT);",
		types.KindServerLogic:    "# Logic\n",
	}

	first := Analyze(contents)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Analyze(contents))
	}
	assert.Equal(t, 3, first.Errors())
	assert.Equal(t, 2, first.Warnings())
	assert.Equal(t, types.SeverityError, first.Inconsistencies[0].Severity)
}

func TestNormalizeIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Users", "user"},
		{"user_accounts", "useraccount"},
		{"Categories", "category"},
		{"Address", "address"},
		{"Order", "order"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeIdent(tt.in))
		})
	}
}

func TestGenerateCrossLinks(t *testing.T) {
	contents := Contents{
		types.KindFrontend:  "ui",
		types.KindServerAPI: "api",
		types.KindTesting:   "tests",
		"payments":          "custom",
	}

	assert.Equal(t, []types.ModuleKind{types.KindServerAPI, types.KindTesting},
		linkTargets(GenerateCrossLinks(types.KindFrontend, contents)))
	assert.Equal(t, []types.ModuleKind{types.KindTesting},
		linkTargets(GenerateCrossLinks(types.KindServerAPI, contents)))
	assert.Equal(t, []types.ModuleKind{types.KindFrontend, types.KindServerAPI, "payments"},
		linkTargets(GenerateCrossLinks(types.KindTesting, contents)))
	assert.Equal(t, []types.ModuleKind{types.KindTesting},
		linkTargets(GenerateCrossLinks("payments", contents)))
	assert.Empty(t, GenerateCrossLinks(types.KindMobile, Contents{}))
}

func TestFormatCrossLinks(t *testing.T) {
	links := []types.CrossLink{{TargetModule: types.KindServerAPI, LinkText: "server-api module", Reason: "UI calls these API endpoints"}}

	md := FormatCrossLinks(links, func(k types.ModuleKind) string { return "design-" + string(k) + ".md" })
	assert.Equal(t, "## Related modules\n\n- [server-api module](design-server-api.md): UI calls these API endpoints\n", md)
	assert.Equal(t, "## Related modules\n\n- server-api module: UI calls these API endpoints\n", FormatCrossLinks(links, nil))
	assert.Empty(t, FormatCrossLinks(nil, nil))
}

func linkTargets(links []types.CrossLink) []types.ModuleKind {
	var out []types.ModuleKind
	for _, l := range links {
		out = append(out, l.TargetModule)
	}
	return out
}

func errorsOnly(incs []types.Inconsistency) []types.Inconsistency {
	var out []types.Inconsistency
	for _, i := range incs {
		if i.Severity == types.SeverityError {
			out = append(out, i)
		}
	}
	return out
}
