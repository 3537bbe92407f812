// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/internal/engine"
	"github.com/pdiddy/design-engine/pkg/types"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	bindEnv(v)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultEngineConfig().Modular, cfg.Modular)
	assert.Equal(t, "specs", cfg.SpecsDir)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "design-engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
specsDir: docs/specs
modular:
  parallelGeneration: false
  cacheTTL: 30s
  customModules:
    - type: infra
      name: Infrastructure
      promptTemplate: "Infra for {{specName}}"
provider:
  name: command
  command: ai
`), 0o644))
	t.Setenv("DESIGN_ENGINE_MODULAR_MAXCONCURRENCY", "7")

	v := viper.New()
	v.SetConfigFile(path)
	bindEnv(v)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "docs/specs", cfg.SpecsDir)
	assert.False(t, cfg.Modular.ParallelGeneration)
	assert.Equal(t, 30*time.Second, cfg.Modular.CacheTTL)
	assert.Equal(t, 7, cfg.Modular.MaxConcurrency)
	assert.Equal(t, types.ProviderCommand, cfg.Provider.Name)
	require.Len(t, cfg.Modular.CustomModules, 1)
	assert.Equal(t, "infra", cfg.Modular.CustomModules[0].Type)
	assert.True(t, cfg.Modular.AutoDetectModules, "unset keys keep their defaults")
}

func TestLoadConfig_Invalid(t *testing.T) {
	v := viper.New()
	bindEnv(v)
	v.Set("modular.fileNamingPattern", "design.md")

	_, err := loadConfig(v)
	require.Error(t, err)
	assert.Equal(t, apperr.CategoryConfiguration, apperr.Classify(err))
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, apperr.Validation("approving", "kind", "unknown module kind"), false)
	out := buf.String()
	assert.Contains(t, out, "error: kind: unknown module kind")
	assert.Contains(t, out, "approving: kind: unknown module kind")
	assert.Contains(t, out, "actions: acknowledge, view-log")

	buf.Reset()
	reportError(&buf, fmt.Errorf("generating shop: %w", engine.ErrLegacyPending), false)
	assert.Contains(t, buf.String(), "design-engine migrate")

	buf.Reset()
	reportError(&buf, errors.New("dial tcp: connection refused"), true)
	assert.True(t, strings.HasPrefix(buf.String(), "error: A network error occurred."))
	assert.Contains(t, buf.String(), "dial tcp: connection refused")
	assert.Contains(t, buf.String(), "retry")
}

func TestRenderStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out := renderStatus(engine.StatusReport{
		Spec: "shop",
		Modules: []engine.ModuleStatus{
			{Kind: types.KindFrontend, File: "design-frontend.md", FileExists: true, State: types.StateApproved, ApprovedBy: "ana", ApprovedAt: &at},
			{Kind: types.KindServerAPI, File: "design-server-api.md", State: types.StatePendingReview},
		},
	})
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "design-frontend.md")
	assert.Contains(t, out, "by ana")
	assert.Contains(t, out, "(missing)")
	assert.Contains(t, out, "waiting for approvals")
}

func TestWriteStructured(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStructured(&buf, "yaml", types.CrossLink{TargetModule: types.KindTesting, LinkText: "Testing", Reason: "tests"}))
	assert.Contains(t, buf.String(), "targetModule: testing")

	buf.Reset()
	require.NoError(t, writeStructured(&buf, "json", []string{"a"}))
	assert.JSONEq(t, `["a"]`, buf.String())

	assert.Error(t, writeStructured(&buf, "xml", nil))
}
