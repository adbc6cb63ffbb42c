// Package openai adapts the OpenAI Chat Completions API to the generic
// provider.Provider interface. Because the wire format is shared by several
// vendors (Moonshot/Kimi, Qwen, and other OpenAI-compatible endpoints), the
// adapter accepts a custom base URL so one implementation serves them all.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/agentfleet/provider"
)

// Options configure the OpenAI provider adapter.
type Options struct {
	Model   string
	APIKey  string
	BaseURL string // empty uses the official endpoint
}

// Provider wraps the OpenAI Chat Completions API behind provider.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{Model: openai.ChatModelGPT4oMini}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates an OpenAI provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{Model: openai.ChatModelGPT4oMini}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	model := req.Model
	if model == "" {
		model = p.opts.Model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               model,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return provider.Response{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return provider.Response{}, provider.Classify(0, errors.New("no choices returned"))
	}

	choice := resp.Choices[0]

	return provider.Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: &provider.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: p.opts.Model, Provider: "openai"}
}

// classify maps SDK errors into the core taxonomy using the typed API error
// when present.
func classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return provider.Classify(apierr.StatusCode, err)
	}
	return provider.Classify(0, err)
}
