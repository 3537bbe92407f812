// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/pkg/types"
)

const pattern = "design-{moduleType}.md"

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(pattern, nil)
	require.NoError(t, err)
	return r
}

func TestNew_RejectsBadPattern(t *testing.T) {
	for _, p := range []string{"design.md", "design-{moduleType}.txt", "docs/design-{moduleType}.md"} {
		_, err := New(p, nil)
		require.Error(t, err, p)
		assert.Equal(t, apperr.CategoryConfiguration, apperr.Classify(err))
	}
}

func TestStandardKindsInPriorityOrder(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, types.StandardKinds, r.Kinds())
	for _, d := range r.Descriptors() {
		assert.NotEmpty(t, d.PromptTemplate, d.Kind)
		assert.Contains(t, d.PromptTemplate, "{{requirements}}", d.Kind)
	}
}

func TestGet_UnknownKind(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Get("blockchain")
	assert.True(t, errors.Is(err, ErrUnknownModuleKind))
}

func TestFileName(t *testing.T) {
	r := newRegistry(t)
	name, err := r.FileName(types.KindServerAPI)
	require.NoError(t, err)
	assert.Equal(t, "design-server-api.md", name)

	k, ok := r.KindForFile("design-server-api.md")
	assert.True(t, ok)
	assert.Equal(t, types.KindServerAPI, k)

	_, ok = r.KindForFile("requirements.md")
	assert.False(t, ok)
}

func TestDetect_ReactRestPostgres(t *testing.T) {
	r := newRegistry(t)
	got := r.Detect("Build a React dashboard backed by a REST API that stores orders in PostgreSQL.")
	assert.Equal(t, []types.ModuleKind{
		types.KindFrontend,
		types.KindServerAPI,
		types.KindServerLogic,
		types.KindServerDatabase,
		types.KindTesting,
	}, got)
}

func TestDetect_Chinese(t *testing.T) {
	r := newRegistry(t)
	got := r.Detect("开发一个手机应用，数据保存在数据库中")
	assert.Contains(t, got, types.KindMobile)
	assert.Contains(t, got, types.KindServerDatabase)
	assert.NotContains(t, got, types.KindFrontend)
}

func TestScore_WordBoundaries(t *testing.T) {
	rule := &types.DetectionRule{Keywords: []string{"api", "ui"}}
	assert.Equal(t, 0, Score(rule, "rapid build"))
	assert.Equal(t, 0, Score(rule, "guide"))
	assert.Equal(t, 1, Score(rule, "the API."))
	assert.Equal(t, 2, Score(rule, "UI/API"))
}

func TestRank_OrdersByScoreThenPriority(t *testing.T) {
	r := newRegistry(t)
	got := r.Rank("Database and API schema")
	require.Len(t, got, 2)
	assert.Equal(t, types.KindServerDatabase, got[0].Kind)
	assert.Equal(t, 2, got[0].Score)
	assert.Equal(t, types.KindServerAPI, got[1].Kind)

	assert.Empty(t, r.Rank("Introduction"))
}

func TestMerge_AddsCustomKind(t *testing.T) {
	r := newRegistry(t)
	err := r.Merge([]types.CustomModuleDefinition{{
		Type:     "ml-pipeline",
		Name:     "ML Pipeline",
		FileName: "design-ml.md",
		DetectionRules: &types.CustomDetectionRules{
			Keywords: []string{"machine learning"},
			Patterns: []string{`(?i)\bmodel training\b`},
		},
	}})
	require.NoError(t, err)

	d, err := r.Get("ml-pipeline")
	require.NoError(t, err)
	assert.True(t, d.Custom)
	assert.Equal(t, customPriorityBase, d.Priority)
	assert.Contains(t, d.PromptTemplate, "{{moduleName}}")

	name, err := r.FileName("ml-pipeline")
	require.NoError(t, err)
	assert.Equal(t, "design-ml.md", name)

	assert.Contains(t, r.Detect("nightly Model Training jobs"), types.ModuleKind("ml-pipeline"))
	assert.Equal(t, types.ModuleKind("ml-pipeline"), r.Kinds()[len(r.Kinds())-1])
}

func TestMerge_FieldErrors(t *testing.T) {
	r := newRegistry(t)
	err := r.Merge([]types.CustomModuleDefinition{
		{Type: "Bad_Type", Name: "x", FileName: "x.md"},
		{Type: "ok", Name: "", FileName: "dir/x.md"},
		{Type: "ok", Name: strings.Repeat("n", 101), FileName: "x.txt"},
		{Type: "rx", Name: "rx", FileName: "rx.md", DetectionRules: &types.CustomDetectionRules{Patterns: []string{"("}}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
	assert.Equal(t, apperr.CategoryValidation, apperr.Classify(err))

	var defErrs DefinitionErrors
	require.True(t, errors.As(err, &defErrs))
	fields := map[string]bool{}
	for _, fe := range defErrs {
		fields[fe.Field] = true
	}
	assert.True(t, fields["type"])
	assert.True(t, fields["name"])
	assert.True(t, fields["fileName"])
	assert.True(t, fields["detectionRules.patterns[0]"])

	// Nothing was merged.
	assert.Equal(t, types.StandardKinds, r.Kinds())
}

func TestMerge_RejectsAlreadyRegisteredCustom(t *testing.T) {
	r := newRegistry(t)
	def := types.CustomModuleDefinition{Type: "infra", Name: "Infra", FileName: "design-infra.md"}
	require.NoError(t, r.Merge([]types.CustomModuleDefinition{def}))
	assert.Error(t, r.Merge([]types.CustomModuleDefinition{def}))
}

func TestMerge_StandardOverrideKeepsPriority(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Merge([]types.CustomModuleDefinition{
		{Type: "frontend", Name: "Web Client", FileName: "web-client.md"},
	}))
	d, err := r.Get(types.KindFrontend)
	require.NoError(t, err)
	assert.Equal(t, "Web Client", d.Name)
	assert.Equal(t, 10, d.Priority)
	assert.NotNil(t, d.Detection)
}

func TestReload_ReplacesCustomSet(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Merge([]types.CustomModuleDefinition{{Type: "a", Name: "A", FileName: "a.md"}}))
	require.NoError(t, r.Reload([]types.CustomModuleDefinition{{Type: "b", Name: "B", FileName: "b.md"}}))
	assert.False(t, r.Has("a"))
	assert.True(t, r.Has("b"))

	// A failed reload keeps the previous set.
	require.Error(t, r.Reload([]types.CustomModuleDefinition{{Type: "C", Name: "C", FileName: "c.md"}}))
	assert.True(t, r.Has("b"))
}

func TestSortKinds(t *testing.T) {
	r := newRegistry(t)
	got := r.SortKinds([]types.ModuleKind{"zzz", types.KindTesting, types.KindFrontend})
	assert.Equal(t, []types.ModuleKind{types.KindFrontend, types.KindTesting, "zzz"}, got)
}

func TestLoadDefinitionsFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"list.yaml": "- type: infra\n  name: Infrastructure\n  fileName: design-infra.md\n  detectionRules:\n    keywords: [terraform]\n",
		"keyed.yml": "customModules:\n  - type: infra\n    name: Infrastructure\n    fileName: design-infra.md\n",
		"defs.toml": "[[customModules]]\ntype = \"infra\"\nname = \"Infrastructure\"\nfileName = \"design-infra.md\"\n",
		"defs.json": `[{"type":"infra","name":"Infrastructure","fileName":"design-infra.md"}]`,
		"keyed.json": `{"customModules":[{"type":"infra","name":"Infrastructure","fileName":"design-infra.md"}]}`,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		defs, err := LoadDefinitionsFile(path)
		require.NoError(t, err, name)
		require.Len(t, defs, 1, name)
		assert.Equal(t, "infra", defs[0].Type, name)
		assert.Equal(t, "design-infra.md", defs[0].FileName, name)
	}

	_, err := LoadDefinitionsFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "defs.ini")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))
	_, err = LoadDefinitionsFile(bad)
	assert.True(t, errors.Is(err, ErrUnsupportedFileType))
}
