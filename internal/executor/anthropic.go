package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicOptions configures the Anthropic executor.
type AnthropicOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Prompts   map[string]string // agent ID -> system prompt
}

// Anthropic executes tasks through the Messages API.
type Anthropic struct {
	client  *anthropic.Client
	model   anthropic.Model
	tokens  int64
	prompts map[string]string
}

// NewAnthropic creates an Anthropic executor.
func NewAnthropic(opts AnthropicOptions) *Anthropic {
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	model := anthropic.Model(opts.Model)
	if model == "" {
		model = anthropic.ModelClaude3_5Sonnet20241022
	}

	return &Anthropic{
		client:  &client,
		model:   model,
		tokens:  opts.MaxTokens,
		prompts: opts.Prompts,
	}
}

// Execute sends the task to the model and joins the text blocks of the reply.
func (a *Anthropic) Execute(ctx context.Context, req Request) (Result, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.tokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(a.prompts, req.Primary)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(req))),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			if text := block.AsText().Text; text != "" {
				parts = append(parts, text)
			}
		}
	}

	if len(parts) == 0 {
		return Result{Success: false, Output: "model returned no content"}, nil
	}

	return Result{Success: true, Output: strings.Join(parts, "\n")}, nil
}
