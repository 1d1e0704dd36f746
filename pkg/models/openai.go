package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAILLM struct {
	Client       *openai.Client
	Model        string
	PromptPrefix string
	Sampling     SamplingOptions
}

func NewOpenAILLM(model string, promptPrefix string) *OpenAILLM {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	cfg := openai.DefaultConfig(apiKey)
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	return &OpenAILLM{Client: openai.NewClientWithConfig(cfg), Model: model, PromptPrefix: promptPrefix}
}

func (o *OpenAILLM) request(prompt string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: o.Model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: withPrefix(o.PromptPrefix, prompt, "\n"),
		}},
	}
	// reasoning models reject these fields, so they are only sent when supported
	s := o.Sampling.ForModel(o.Model)
	if s.Temperature != nil {
		req.Temperature = *s.Temperature
	}
	if s.TopP != nil {
		req.TopP = *s.TopP
	}
	if s.PresencePenalty != nil {
		req.PresencePenalty = *s.PresencePenalty
	}
	if s.FrequencyPenalty != nil {
		req.FrequencyPenalty = *s.FrequencyPenalty
	}
	return req
}

func (o *OpenAILLM) Generate(ctx context.Context, prompt string) (any, error) {
	resp, err := o.Client.CreateChatCompletion(ctx, o.request(prompt))
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateWithTools uses OpenAI function calling. The first tool call wins;
// the orchestrator executes one tool per step.
func (o *OpenAILLM) GenerateWithTools(ctx context.Context, prompt string, tools []ToolDefinition) (Completion, error) {
	req := o.request(prompt)
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := o.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("no response from OpenAI")
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return Completion{Text: msg.Content}, nil
	}

	call := msg.ToolCalls[0]
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return Completion{}, fmt.Errorf("decode tool arguments for %s: %w", call.Function.Name, err)
		}
	}
	return Completion{
		Text:     msg.Content,
		ToolCall: &ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: args},
	}, nil
}

var (
	_ Agent      = (*OpenAILLM)(nil)
	_ ToolCaller = (*OpenAILLM)(nil)
)
