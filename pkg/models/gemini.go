package models

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiLLM struct {
	Client       *genai.Client
	Model        string
	PromptPrefix string
	Sampling     SamplingOptions
}

func NewGeminiLLM(ctx context.Context, model, promptPrefix string) (*GeminiLLM, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiLLM{Client: client, Model: model, PromptPrefix: promptPrefix}, nil
}

func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (any, error) {
	model := g.Client.GenerativeModel(g.Model)
	s := g.Sampling.ForModel(g.Model)
	if s.Temperature != nil {
		model.SetTemperature(*s.Temperature)
	}
	if s.TopP != nil {
		model.SetTopP(*s.TopP)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(withPrefix(g.PromptPrefix, prompt, " ")))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

// Close releases the underlying client.
func (g *GeminiLLM) Close() error {
	return g.Client.Close()
}

var _ Agent = (*GeminiLLM)(nil)
