// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/pkg/types"
)

func withClaudeServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	old := claudeAPIURL
	claudeAPIURL = ts.URL
	t.Cleanup(func() { claudeAPIURL = old })
}

func TestClaude_WritesOutput(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body claudeRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		assert.Equal(t, "m1", body.Model)
		if assert.Len(t, body.Messages, 1) {
			assert.Equal(t, "the prompt", body.Messages[0].Content)
		}

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"# Frontend\n"}],"stop_reason":"end_turn"}`))
	})

	out := filepath.Join(t.TempDir(), "design-frontend.md")
	c := &Claude{APIKey: "test-key", Model: "m1"}
	resp, err := c.Generate(context.Background(), Request{Prompt: "the prompt", OutputPath: out})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# Frontend\n", string(b))
}

func TestClaude_EmptyContentIsNonSuccess(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	})
	out := filepath.Join(t.TempDir(), "x.md")
	resp, err := (&Claude{APIKey: "k"}).Generate(context.Background(), Request{Prompt: "p", OutputPath: out})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NoFileExists(t, out)
}

func TestClaude_RateLimitIsRetryable(t *testing.T) {
	withClaudeServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := (&Claude{APIKey: "k"}).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))
}

func TestClaude_MissingKey(t *testing.T) {
	_, err := (&Claude{}).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, apperr.CategoryConfiguration, apperr.Classify(err))
	assert.False(t, apperr.IsRetryable(err))
}

type fakeModels struct {
	resp *genai.GenerateContentResponse
	err  error
	got  string
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.got = contents[0].Parts[0].Text
	return f.resp, f.err
}

func TestGemini_WritesOutput(t *testing.T) {
	fm := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "# API"}, {Text: "\nbody"}}}}},
	}}
	g := &Gemini{models: fm, model: "gemini-test"}
	out := filepath.Join(t.TempDir(), "design-server-api.md")

	resp, err := g.Generate(context.Background(), Request{Prompt: "p", OutputPath: out})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "p", fm.got)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# API\nbody", string(b))
}

func TestGemini_NoCandidates(t *testing.T) {
	g := &Gemini{models: &fakeModels{resp: &genai.GenerateContentResponse{}}, model: "m"}
	resp, err := g.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestGemini_ErrorIsClassified(t *testing.T) {
	g := &Gemini{models: &fakeModels{err: errors.New("503 service unavailable")}, model: "m"}
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))
}

// mockExecutor records the last invocation and replays a scripted result.
type mockExecutor struct {
	available bool
	stdout    string
	stderr    string
	err       error

	args  []string
	env   []string
	stdin string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.available {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Run(_ context.Context, _ string, args, env []string, stdin io.Reader, stdout, stderr io.Writer) error {
	m.args, m.env = args, env
	b, _ := io.ReadAll(stdin)
	m.stdin = string(b)
	_, _ = io.WriteString(stdout, m.stdout)
	_, _ = io.WriteString(stderr, m.stderr)
	return m.err
}

func TestCommand_SubstitutesArgsAndPipesPrompt(t *testing.T) {
	m := &mockExecutor{available: true}
	c := &Command{Bin: "ai", Args: []string{"--out", "{output}", "--module={module}"}, exec: m}

	resp, err := c.Generate(context.Background(), Request{Spec: "shop", Kind: types.KindFrontend, Prompt: "hello", OutputPath: "/tmp/x.md"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"--out", "/tmp/x.md", "--module=frontend"}, m.args)
	assert.Equal(t, "hello", m.stdin)
	assert.Contains(t, m.env, "DESIGN_ENGINE_OUTPUT=/tmp/x.md")
}

func TestCommand_NonZeroExitIsNonSuccess(t *testing.T) {
	m := &mockExecutor{available: true, stderr: "quota exceeded", err: errors.New("exit status 1")}
	resp, err := (&Command{Bin: "ai", exec: m}).Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "quota exceeded")
}

func TestCommand_MissingBinary(t *testing.T) {
	_, err := (&Command{Bin: "ai", exec: &mockExecutor{}}).Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, apperr.CategoryConfiguration, apperr.Classify(err))
}

func TestCommand_CaptureStdout(t *testing.T) {
	out := filepath.Join(t.TempDir(), "design-testing.md")
	m := &mockExecutor{available: true, stdout: "# Testing\n"}
	resp, err := (&Command{Bin: "ai", CaptureStdout: true, exec: m}).Generate(context.Background(), Request{Prompt: "p", OutputPath: out})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# Testing\n", string(b))

	m.stdout = "  "
	resp, err = (&Command{Bin: "ai", CaptureStdout: true, exec: m}).Generate(context.Background(), Request{Prompt: "p", OutputPath: out})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestNew(t *testing.T) {
	p, err := New(context.Background(), types.ProviderConfig{Name: types.ProviderClaude})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Name(), "claude:"))

	p, err = New(context.Background(), types.ProviderConfig{Name: types.ProviderCommand, Command: "ai"})
	require.NoError(t, err)
	assert.Equal(t, "command:ai", p.Name())

	_, err = New(context.Background(), types.ProviderConfig{Name: "other"})
	assert.Error(t, err)
}

func TestLazy(t *testing.T) {
	p := Lazy(types.ProviderConfig{Name: "other"})
	assert.Equal(t, "other", p.Name())

	_, err := p.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, apperr.CategoryConfiguration, apperr.Classify(err))

	p = Lazy(types.ProviderConfig{Name: types.ProviderCommand, Command: "ai"})
	assert.Equal(t, "command", p.Name())
}
