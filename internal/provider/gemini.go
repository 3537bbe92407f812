// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/pdiddy/design-engine/internal/apperr"
)

const defaultGeminiModel = "gemini-2.5-pro"

// contentGenerator is the slice of genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Gemini API through the official genai client.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini builds a Gemini provider. An empty apiKey lets genai read
// GEMINI_API_KEY or GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, apperr.Configuration("creating Gemini client", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{models: cli.Models, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini:" + g.model }

// Generate sends the prompt as a single text part.
func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "text/plain"},
	)
	if err != nil {
		return Response{}, apperr.Wrap(fmt.Errorf("calling Gemini API: %w", err), "calling Gemini API")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{Message: "Gemini API returned no candidates"}, nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Response{Message: "Gemini API returned no text content"}, nil
	}

	if err := writeOutput(req.OutputPath, text.String()); err != nil {
		return Response{}, err
	}
	return Response{Success: true, Content: text.String()}, nil
}
