// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// KindPlaceholder is the token a file naming pattern must embed.
const KindPlaceholder = "{moduleType}"

// ModuleFileExt is the extension every module document carries.
const ModuleFileExt = ".md"

// ModularConfig holds the settings that govern the modular design layout.
type ModularConfig struct {
	// Enabled gates whether specs use the modular layout at all.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// DefaultModules is the kind set used when auto-detection is off.
	DefaultModules []string `json:"defaultModules" yaml:"defaultModules" mapstructure:"defaultModules"`

	// FileNamingPattern names module documents, e.g. "design-{moduleType}.md".
	FileNamingPattern string `json:"fileNamingPattern" yaml:"fileNamingPattern" mapstructure:"fileNamingPattern"`

	// AutoDetectModules lets detection rules choose kinds from requirements.
	AutoDetectModules bool `json:"autoDetectModules" yaml:"autoDetectModules" mapstructure:"autoDetectModules"`

	// ParallelGeneration selects MaxConcurrency (true) or sequential runs.
	ParallelGeneration bool `json:"parallelGeneration" yaml:"parallelGeneration" mapstructure:"parallelGeneration"`

	// MaxConcurrency caps in-flight generation units when parallel (default 4).
	MaxConcurrency int `json:"maxConcurrency" yaml:"maxConcurrency" mapstructure:"maxConcurrency"`

	CacheEnabled bool          `json:"cacheEnabled" yaml:"cacheEnabled" mapstructure:"cacheEnabled"`
	CacheTTL     time.Duration `json:"cacheTTL" yaml:"cacheTTL" mapstructure:"cacheTTL"`

	// CustomModules are merged into the module registry at load time.
	CustomModules []CustomModuleDefinition `json:"customModules" yaml:"customModules" mapstructure:"customModules"`

	// CustomModulesFile optionally points at a YAML, TOML, or JSON file of
	// additional definitions.
	CustomModulesFile string `json:"customModulesFile" yaml:"customModulesFile" mapstructure:"customModulesFile"`

	AutoMigrateLegacy   bool `json:"autoMigrateLegacy" yaml:"autoMigrateLegacy" mapstructure:"autoMigrateLegacy"`
	ShowMigrationPrompt bool `json:"showMigrationPrompt" yaml:"showMigrationPrompt" mapstructure:"showMigrationPrompt"`

	ValidateCrossReferences bool `json:"validateCrossReferences" yaml:"validateCrossReferences" mapstructure:"validateCrossReferences"`
	WarnOnInconsistencies   bool `json:"warnOnInconsistencies" yaml:"warnOnInconsistencies" mapstructure:"warnOnInconsistencies"`
}

// Concurrency returns the scheduler width implied by the settings.
func (c ModularConfig) Concurrency() int {
	if !c.ParallelGeneration {
		return 1
	}
	if c.MaxConcurrency <= 0 {
		return 4
	}
	return c.MaxConcurrency
}

// ProviderName selects the content-generation provider implementation.
type ProviderName string

const (
	ProviderClaude  ProviderName = "claude"
	ProviderGemini  ProviderName = "gemini"
	ProviderCommand ProviderName = "command"
)

// ProviderConfig holds settings for the external content-generation provider.
type ProviderConfig struct {
	Name ProviderName `json:"name" yaml:"name" mapstructure:"name"`

	// Model is the AI model identifier. Empty selects the provider default.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey authenticates API providers. Usually loaded from .secrets/ or .env.
	APIKey string `json:"apiKey,omitempty" yaml:"apiKey,omitempty" mapstructure:"apiKey"`

	// Command and Args launch an external CLI for the command provider. The
	// prompt is written to its stdin.
	Command string   `json:"command,omitempty" yaml:"command,omitempty" mapstructure:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`

	// CaptureStdout makes the command provider write the tool's stdout to
	// the module file instead of expecting the tool to write it.
	CaptureStdout bool `json:"captureStdout,omitempty" yaml:"captureStdout,omitempty" mapstructure:"captureStdout"`

	// Timeout races each provider call against a timer. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// RetryConfig holds the retry executor defaults for provider calls.
type RetryConfig struct {
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries" mapstructure:"maxRetries"`
	InitialDelay time.Duration `json:"initialDelay" yaml:"initialDelay" mapstructure:"initialDelay"`
	Exponential  bool          `json:"exponential" yaml:"exponential" mapstructure:"exponential"`
}

// SchedulerConfig holds batch scheduler settings.
type SchedulerConfig struct {
	BatchDelay       time.Duration `json:"batchDelay" yaml:"batchDelay" mapstructure:"batchDelay"`
	StopOnFirstError bool          `json:"stopOnFirstError" yaml:"stopOnFirstError" mapstructure:"stopOnFirstError"`
}

// LedgerConfig controls the SQLite transition and run history.
type LedgerConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// EngineConfig groups every setting the engine consumes.
type EngineConfig struct {
	// SpecsDir is the directory holding one subdirectory per spec.
	SpecsDir string `json:"specsDir" yaml:"specsDir" mapstructure:"specsDir"`

	Modular   ModularConfig   `json:"modular" yaml:"modular" mapstructure:"modular"`
	Provider  ProviderConfig  `json:"provider" yaml:"provider" mapstructure:"provider"`
	Retry     RetryConfig     `json:"retry" yaml:"retry" mapstructure:"retry"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler" mapstructure:"scheduler"`
	Ledger    LedgerConfig    `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
}

// DefaultEngineConfig returns the settings used when nothing is configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SpecsDir: "specs",
		Modular: ModularConfig{
			Enabled: true,
			DefaultModules: []string{
				string(KindFrontend),
				string(KindServerAPI),
				string(KindServerLogic),
				string(KindServerDatabase),
				string(KindTesting),
			},
			FileNamingPattern:       "design-" + KindPlaceholder + ModuleFileExt,
			AutoDetectModules:       true,
			ParallelGeneration:      true,
			MaxConcurrency:          4,
			CacheEnabled:            true,
			CacheTTL:                5 * time.Minute,
			ShowMigrationPrompt:     true,
			ValidateCrossReferences: true,
			WarnOnInconsistencies:   true,
		},
		Provider: ProviderConfig{Name: ProviderClaude},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: time.Second,
			Exponential:  true,
		},
		Ledger: LedgerConfig{Enabled: true},
	}
}

// LedgerPath returns the configured ledger path or its default location.
func (c EngineConfig) LedgerPath() string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	return filepath.Join(c.SpecsDir, ".design-engine", "ledger.db")
}

// Validate rejects malformed settings. Custom module definitions are
// validated separately by the registry.
func (c EngineConfig) Validate() error {
	if strings.TrimSpace(c.SpecsDir) == "" {
		return fmt.Errorf("specsDir is required")
	}
	if err := ValidateFileNamingPattern(c.Modular.FileNamingPattern); err != nil {
		return fmt.Errorf("modular.fileNamingPattern: %w", err)
	}
	if c.Modular.CacheTTL < 0 {
		return fmt.Errorf("modular.cacheTTL: must not be negative")
	}
	if c.Modular.MaxConcurrency < 0 {
		return fmt.Errorf("modular.maxConcurrency: must not be negative")
	}
	switch c.Provider.Name {
	case ProviderClaude, ProviderGemini:
	case ProviderCommand:
		if c.Provider.Command == "" {
			return fmt.Errorf("provider.command: required for the command provider")
		}
	default:
		return fmt.Errorf("provider.name: unknown provider %q", c.Provider.Name)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.maxRetries: must not be negative")
	}
	return nil
}

// ValidateFileNamingPattern checks that a pattern embeds the kind
// placeholder, ends in the module extension, and names no directories.
func ValidateFileNamingPattern(pattern string) error {
	if !strings.Contains(pattern, KindPlaceholder) {
		return fmt.Errorf("pattern %q must contain %s", pattern, KindPlaceholder)
	}
	if !strings.HasSuffix(pattern, ModuleFileExt) {
		return fmt.Errorf("pattern %q must end in %s", pattern, ModuleFileExt)
	}
	if strings.ContainsAny(pattern, `/\`) {
		return fmt.Errorf("pattern %q must not contain path separators", pattern)
	}
	return nil
}
