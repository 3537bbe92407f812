// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/design-engine/internal/apperr"
)

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/specs"}

	p, err := l.RequirementsPath("shop")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/specs", "shop", "requirements.md"), p)

	p, err = l.BackupPath("shop")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/specs", "shop", "design.md.backup"), p)

	p, err = l.ModulePath("shop", "design-frontend.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/specs", "shop", "design-frontend.md"), p)

	_, err = l.ModulePath("shop", "../x.md")
	assert.Error(t, err)
}

func TestValidateSpecName(t *testing.T) {
	for _, bad := range []string{"", "  ", "a/b", `a\b`, "..", ".hidden"} {
		err := ValidateSpecName(bad)
		require.Error(t, err, bad)
		assert.Equal(t, apperr.CategoryValidation, apperr.Classify(err))
	}
	assert.NoError(t, ValidateSpecName("user-auth"))
}

func TestSpecs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"b", "a", ".design-engine"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644))

	specs, err := Layout{Root: root}.Specs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, specs)

	specs, err = Layout{Root: filepath.Join(root, "missing")}.Specs()
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.md")

	require.NoError(t, WriteFileAtomic(path, []byte("one")))
	require.NoError(t, WriteFileAtomic(path, []byte("two")))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	ok, err := Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Exists(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadRequirementsMissing(t *testing.T) {
	_, err := Layout{Root: t.TempDir()}.ReadRequirements("shop")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
