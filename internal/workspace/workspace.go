// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workspace knows where a spec's files live on disk: the
// requirements document, module documents, the metadata document, and the
// legacy design document with its backup.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/design-engine/internal/apperr"
)

const (
	RequirementsFile = "requirements.md"
	LegacyDesignFile = "design.md"
	BackupSuffix     = ".backup"
	MetadataFile     = ".module-metadata.json"
)

// Layout resolves paths under a specs root directory.
type Layout struct {
	Root string
}

// ValidateSpecName rejects names that would escape the specs root.
func ValidateSpecName(spec string) error {
	switch {
	case strings.TrimSpace(spec) == "":
		return apperr.Validation("resolving spec", "spec", "is required")
	case strings.ContainsAny(spec, `/\`):
		return apperr.Validation("resolving spec", "spec", "must not contain path separators")
	case strings.HasPrefix(spec, "."):
		return apperr.Validation("resolving spec", "spec", "must not start with a dot")
	}
	return nil
}

// SpecDir returns the directory holding spec.
func (l Layout) SpecDir(spec string) (string, error) {
	if err := ValidateSpecName(spec); err != nil {
		return "", err
	}
	return filepath.Join(l.Root, spec), nil
}

func (l Layout) join(spec, name string) (string, error) {
	dir, err := l.SpecDir(spec)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (l Layout) RequirementsPath(spec string) (string, error) {
	return l.join(spec, RequirementsFile)
}

func (l Layout) MetadataPath(spec string) (string, error) {
	return l.join(spec, MetadataFile)
}

func (l Layout) LegacyPath(spec string) (string, error) {
	return l.join(spec, LegacyDesignFile)
}

func (l Layout) BackupPath(spec string) (string, error) {
	return l.join(spec, LegacyDesignFile+BackupSuffix)
}

// ModulePath joins a module file name onto the spec directory.
func (l Layout) ModulePath(spec, fileName string) (string, error) {
	if fileName == "" || strings.ContainsAny(fileName, `/\`) {
		return "", apperr.Validation("resolving module path", "fileName", fmt.Sprintf("invalid file name %q", fileName))
	}
	return l.join(spec, fileName)
}

// Specs lists the spec directories under the root, sorted.
func (l Layout) Specs() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("listing specs: %w", err), "listing specs")
	}
	var specs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			specs = append(specs, e.Name())
		}
	}
	sort.Strings(specs)
	return specs, nil
}

// ReadRequirements returns the requirements document of spec.
func (l Layout) ReadRequirements(spec string) (string, error) {
	path, err := l.RequirementsPath(spec)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", apperr.Wrap(fmt.Errorf("reading requirements: %w", err), "reading requirements")
	}
	return string(b), nil
}

// Exists reports whether path exists. Errors other than not-exist are
// returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// WriteFileAtomic writes content to a temp file in the target directory,
// syncs it, and renames it over path, creating parent directories first.
func WriteFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".design-engine-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
