package executor

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIOptions configures the OpenAI executor.
type OpenAIOptions struct {
	APIKey    string
	BaseURL   string // optional OpenAI-compatible endpoint
	Model     string
	MaxTokens int64
	Prompts   map[string]string // agent ID -> system prompt
}

// OpenAI executes tasks as chat completions, one per task, with the primary
// agent's prompt as the system message.
type OpenAI struct {
	client  *openai.Client
	model   string
	tokens  int64
	prompts map[string]string
}

// NewOpenAI creates an OpenAI executor.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	if opts.Model == "" {
		opts.Model = openai.ChatModelGPT4oMini
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}

	return &OpenAI{
		client:  &client,
		model:   opts.Model,
		tokens:  opts.MaxTokens,
		prompts: opts.Prompts,
	}
}

// Execute sends the task to the model. An empty reply counts as a failed task.
func (o *OpenAI) Execute(ctx context.Context, req Request) (Result, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(o.prompts, req.Primary)),
			openai.UserMessage(userPrompt(req)),
		},
		Model:               o.model,
		MaxCompletionTokens: openai.Int(o.tokens),
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Result{Success: false, Output: "model returned no content"}, nil
	}

	return Result{Success: true, Output: resp.Choices[0].Message.Content}, nil
}
