// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/design-engine/internal/metadata"
	"github.com/pdiddy/design-engine/internal/registry"
	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/pkg/types"
)

const legacyDoc = "# Shop Design\n\nIntro paragraph.\n\n" +
	"## Frontend Design\n\nReact pages.\n\n```md\n## not a heading\n```\n\n### Components\n\n- list\n\n" +
	"## API Design\n\n| Method | Path |\n|---|---|\n| GET | /api/widgets |\n"

type fixture struct {
	root     string
	migrator *Migrator
	store    *metadata.Store
}

func setup(t *testing.T, legacy string) fixture {
	t.Helper()
	root := t.TempDir()
	layout := workspace.Layout{Root: root}
	reg, err := registry.New("design-"+types.KindPlaceholder+types.ModuleFileExt, nil)
	require.NoError(t, err)
	store := metadata.New(metadata.Options{Layout: layout})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shop"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "shop", workspace.LegacyDesignFile), []byte(legacy), 0o644))
	return fixture{root: root, migrator: New(reg, layout, store, nil), store: store}
}

func (f fixture) path(name string) string { return filepath.Join(f.root, "shop", name) }

func TestMigrate_FrontendAndAPI(t *testing.T) {
	f := setup(t, legacyDoc)

	report, err := f.migrator.Migrate(context.Background(), "shop", Options{})
	require.NoError(t, err)
	assert.Equal(t, []types.ModuleKind{types.KindFrontend, types.KindServerAPI}, report.Migrated)
	assert.Empty(t, report.Conflicts)
	assert.Equal(t, f.path("design.md.backup"), report.BackupPath)

	frontend, err := os.ReadFile(f.path("design-frontend.md"))
	require.NoError(t, err)
	api, err := os.ReadFile(f.path("design-server-api.md"))
	require.NoError(t, err)
	assert.Equal(t, "## Frontend Design\n\nReact pages.\n\n```md\n## not a heading\n```\n\n### Components\n\n- list\n\n", string(frontend))
	assert.Equal(t, "## API Design\n\n| Method | Path |\n|---|---|\n| GET | /api/widgets |\n", string(api))

	backup, err := os.ReadFile(report.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, legacyDoc, string(backup))
	assert.NoFileExists(t, f.path(workspace.LegacyDesignFile))

	md, err := f.store.Load("shop")
	require.NoError(t, err)
	assert.Equal(t, []types.ModuleKind{types.KindFrontend, types.KindServerAPI}, md.Kinds())
	for _, k := range md.Kinds() {
		assert.Equal(t, types.StatePendingReview, md.State(k))
	}
	assert.False(t, md.CanProgressToNextPhase)
}

func TestMigrate_ConcatenationIsVerbatim(t *testing.T) {
	f := setup(t, legacyDoc)
	analysis, err := f.migrator.Analyze("shop")
	require.NoError(t, err)

	_, err = f.migrator.Migrate(context.Background(), "shop", Options{})
	require.NoError(t, err)

	var want, got strings.Builder
	for _, m := range analysis.Mappings {
		want.WriteString(m.Section.Raw)
	}
	for _, name := range []string{"design-frontend.md", "design-server-api.md"} {
		b, err := os.ReadFile(f.path(name))
		require.NoError(t, err)
		got.Write(b)
	}
	assert.Equal(t, want.String(), got.String())
	assert.Equal(t, legacyDoc, analysis.Preamble+want.String())
}

func TestMigrate_EmptyDocument(t *testing.T) {
	f := setup(t, "")

	report, err := f.migrator.Migrate(context.Background(), "shop", Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Migrated)
	assert.Empty(t, report.BackupPath)
	assert.FileExists(t, f.path(workspace.LegacyDesignFile))
	assert.NoFileExists(t, f.path(workspace.MetadataFile))
}

func TestMigrate_NoRecognizableSections(t *testing.T) {
	f := setup(t, "## Overview\n\nSome text.\n\n## Glossary\n\nTerms.\n")

	report, err := f.migrator.Migrate(context.Background(), "shop", Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Migrated)
	assert.Equal(t, []string{"Overview", "Glossary"}, report.Unmapped)
	assert.FileExists(t, f.path(workspace.LegacyDesignFile))
}

func TestMigrate_ExistingModuleIsConflict(t *testing.T) {
	f := setup(t, legacyDoc)
	require.NoError(t, os.WriteFile(f.path("design-frontend.md"), []byte("existing"), 0o644))

	report, err := f.migrator.Migrate(context.Background(), "shop", Options{})
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, types.KindFrontend, report.Conflicts[0].Kind)
	assert.Equal(t, []types.ModuleKind{types.KindServerAPI}, report.Migrated)

	b, err := os.ReadFile(f.path("design-frontend.md"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(b))
}

func TestMigrate_WriteFailureRollsBack(t *testing.T) {
	f := setup(t, legacyDoc)
	orig := writeFile
	t.Cleanup(func() { writeFile = orig })
	writeFile = func(path string, content []byte) error {
		if strings.HasSuffix(path, "design-server-api.md") {
			return errors.New("no space left on device")
		}
		return orig(path, content)
	}

	_, err := f.migrator.Migrate(context.Background(), "shop", Options{})
	require.Error(t, err)
	assert.NoFileExists(t, f.path("design-frontend.md"))
	assert.NoFileExists(t, f.path("design.md.backup"))
	assert.NoFileExists(t, f.path(workspace.MetadataFile))

	b, err := os.ReadFile(f.path(workspace.LegacyDesignFile))
	require.NoError(t, err)
	assert.Equal(t, legacyDoc, string(b))
}

func TestMigrate_ExistingBackupRefused(t *testing.T) {
	f := setup(t, legacyDoc)
	require.NoError(t, os.WriteFile(f.path("design.md.backup"), []byte("old"), 0o644))

	_, err := f.migrator.Migrate(context.Background(), "shop", Options{})
	require.Error(t, err)
	assert.NoFileExists(t, f.path("design-frontend.md"))
}

func TestMigrate_IncludeSecondary(t *testing.T) {
	doc := "## API and Database Design\n\nTables and routes.\n"

	f := setup(t, doc)
	report, err := f.migrator.Migrate(context.Background(), "shop", Options{})
	require.NoError(t, err)
	assert.Equal(t, []types.ModuleKind{types.KindServerAPI}, report.Migrated)

	f = setup(t, doc)
	report, err = f.migrator.Migrate(context.Background(), "shop", Options{IncludeSecondary: true})
	require.NoError(t, err)
	assert.Equal(t, []types.ModuleKind{types.KindServerAPI, types.KindServerDatabase}, report.Migrated)
}

func TestNeedsMigration(t *testing.T) {
	f := setup(t, legacyDoc)

	need, err := f.migrator.NeedsMigration("shop")
	require.NoError(t, err)
	assert.True(t, need)

	_, err = f.migrator.Migrate(context.Background(), "shop", Options{})
	require.NoError(t, err)

	need, err = f.migrator.NeedsMigration("shop")
	require.NoError(t, err)
	assert.False(t, need)

	need, err = f.migrator.NeedsMigration("absent")
	require.NoError(t, err)
	assert.False(t, need)
}

func TestAnalyzeLegacyContent_Chinese(t *testing.T) {
	reg, err := registry.New("design-"+types.KindPlaceholder+types.ModuleFileExt, nil)
	require.NoError(t, err)

	a := AnalyzeLegacyContent("## 前端设计\n\n页面。\n\n## 数据库设计\n\n表。\n", reg)
	require.Len(t, a.Mappings, 2)
	assert.Equal(t, types.KindFrontend, a.Mappings[0].Primary())
	assert.Equal(t, types.KindServerDatabase, a.Mappings[1].Primary())
}

func TestSplitSections(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		headings []string
		preamble string
	}{
		{"no headings", "plain text\n", nil, "plain text\n"},
		{"title only", "# Title\n\nbody\n", []string{"Title"}, ""},
		{"title skipped", "# Title\n## A\n### A1\n## B\n", []string{"A", "B"}, "# Title\n"},
		{"two top level", "# A\n## A1\n# B\n", []string{"A", "B"}, ""},
		{"fenced heading ignored", "## A\n~~~\n## B\n~~~\n", []string{"A"}, ""},
		{"closing hashes", "## A ##\n", []string{"A"}, ""},
		{"needs space", "##A\n## B\n", []string{"B"}, "##A\n"},
		{"missing final newline", "## A\ntext", []string{"A"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pre, sections := splitSections(tt.in)
			var headings []string
			for _, s := range sections {
				headings = append(headings, s.Heading)
			}
			assert.Equal(t, tt.headings, headings)
			assert.Equal(t, tt.preamble, pre)
		})
	}
}
