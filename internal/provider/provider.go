// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider defines the content-generation provider contract and
// its implementations: the Claude Messages API, Gemini through genai, and
// an external CLI launched as a child process.
package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/pkg/types"
)

// Request is one fully rendered generation call.
type Request struct {
	Spec       string
	Kind       types.ModuleKind
	Prompt     string
	OutputPath string
}

// Response reports what the provider produced. Success false means the
// provider answered but declined or failed to produce content; Message
// carries its reason.
type Response struct {
	Success bool
	Content string
	Message string
}

// Provider generates module content from a prompt. Errors are reserved for
// failures to reach the provider; they are classified so the retry executor
// can tell transient from permanent.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// New builds the provider named in cfg. ctx is only used while
// constructing clients that need it.
func New(ctx context.Context, cfg types.ProviderConfig) (Provider, error) {
	switch cfg.Name {
	case types.ProviderClaude:
		model := cfg.Model
		if model == "" {
			model = defaultClaudeModel
		}
		return &Claude{APIKey: cfg.APIKey, Model: model}, nil
	case types.ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case types.ProviderCommand:
		return &Command{Bin: cfg.Command, Args: cfg.Args, CaptureStdout: cfg.CaptureStdout}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Name)
}

// Lazy returns a Provider that builds the configured provider on its first
// Generate call, so commands that never generate need no credentials.
func Lazy(cfg types.ProviderConfig) Provider {
	return &lazy{cfg: cfg}
}

type lazy struct {
	cfg types.ProviderConfig

	mu  sync.Mutex
	p   Provider
	err error
}

func (l *lazy) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.p != nil {
		return l.p.Name()
	}
	return string(l.cfg.Name)
}

func (l *lazy) Generate(ctx context.Context, req Request) (Response, error) {
	l.mu.Lock()
	if l.p == nil && l.err == nil {
		l.p, l.err = New(ctx, l.cfg)
	}
	p, err := l.p, l.err
	l.mu.Unlock()
	if err != nil {
		return Response{}, apperr.Configuration("creating provider", err)
	}
	return p.Generate(ctx, req)
}

// writeOutput persists generated text for providers that return it rather
// than writing files themselves.
func writeOutput(path, content string) error {
	if path == "" {
		return nil
	}
	if err := workspace.WriteFileAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
