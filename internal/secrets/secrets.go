// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves provider API keys. Keys come from a directory of
// plain-text files (file name = key name, trimmed contents = value), a
// dotenv file, and the process environment, in that order.
//
// Key files: anthropic-api-key, gemini-api-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pdiddy/design-engine/internal/logging"
	"github.com/pdiddy/design-engine/pkg/types"
)

// Source names one provider's key file and environment variables.
type Source struct {
	File string
	Env  []string
}

var sources = map[types.ProviderName]Source{
	types.ProviderClaude: {File: "anthropic-api-key", Env: []string{"ANTHROPIC_API_KEY"}},
	types.ProviderGemini: {File: "gemini-api-key", Env: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}},
}

// Secrets holds the values read from the key directory and dotenv file.
type Secrets struct {
	Files  map[string]string
	DotEnv map[string]string

	// Getenv reads the process environment; nil uses os.Getenv.
	Getenv func(string) string
}

// Open reads the key directory and dotenv file. Either may be missing.
func Open(dir, envFile string, logger *slog.Logger) (Secrets, error) {
	files, err := Load(dir, logger)
	if err != nil {
		return Secrets{}, err
	}
	env, err := LoadDotEnv(envFile)
	if err != nil {
		return Secrets{}, err
	}
	return Secrets{Files: files, DotEnv: env}, nil
}

// APIKey returns the key for provider, or "" when none is configured.
func (s Secrets) APIKey(provider types.ProviderName) string {
	src, ok := sources[provider]
	if !ok {
		return ""
	}
	if v := s.Files[src.File]; v != "" {
		return v
	}
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range src.Env {
		if v := strings.TrimSpace(s.DotEnv[name]); v != "" {
			return v
		}
	}
	for _, name := range src.Env {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// Load reads all files in dir and returns a map of file name to trimmed
// contents. A missing directory yields an empty map. Unreadable files are
// logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	logger = logging.OrDiscard(logger)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable secret", "name", name, "err", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// LoadDotEnv parses a dotenv file without touching the process
// environment. A missing file or empty path yields an empty map.
func LoadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return env, nil
}
