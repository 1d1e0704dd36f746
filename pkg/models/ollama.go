package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

type OllamaLLM struct {
	Client       *ollama.Client
	Model        string
	PromptPrefix string
	Sampling     SamplingOptions
}

func NewOllamaLLM(model string, promptPrefix string) (*OllamaLLM, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	c := ollama.NewClient(u, httpClient)
	return &OllamaLLM{Client: c, Model: model, PromptPrefix: promptPrefix}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (any, error) {
	req := &ollama.GenerateRequest{
		Model:  o.Model,
		Prompt: withPrefix(o.PromptPrefix, prompt, "\n\n"),
	}
	s := o.Sampling.ForModel(o.Model)
	if !s.IsZero() {
		req.Options = map[string]any{}
		if s.Temperature != nil {
			req.Options["temperature"] = *s.Temperature
		}
		if s.TopP != nil {
			req.Options["top_p"] = *s.TopP
		}
		if s.PresencePenalty != nil {
			req.Options["presence_penalty"] = *s.PresencePenalty
		}
		if s.FrequencyPenalty != nil {
			req.Options["frequency_penalty"] = *s.FrequencyPenalty
		}
	}

	var text strings.Builder
	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	return text.String(), nil
}

var _ Agent = (*OllamaLLM)(nil)
