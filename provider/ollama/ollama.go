// Package ollama adapts a local Ollama server to the generic
// provider.Provider interface.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/hupe1980/agentfleet/provider"
)

const defaultHost = "http://localhost:11434"

// Options configure the Ollama provider adapter.
type Options struct {
	Model string
	Host  string // Ollama server URL, defaults to http://localhost:11434
}

// Provider wraps the Ollama chat API behind provider.Provider.
type Provider struct {
	client *api.Client
	opts   Options
}

// New creates an Ollama provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{Model: "llama3.2", Host: defaultHost}
	for _, fn := range optFns {
		fn(&opts)
	}

	parsed, err := url.Parse(opts.Host)
	if err != nil {
		parsed, _ = url.Parse(defaultHost)
	}

	return &Provider{
		client: api.NewClient(parsed, http.DefaultClient),
		opts:   opts,
	}
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	model := req.Model
	if model == "" {
		model = p.opts.Model
	}

	var messages []api.Message
	if req.System != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	var last api.ChatResponse
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		last = resp
		return nil
	})
	if err != nil {
		return provider.Response{}, classify(err)
	}

	finishReason := last.DoneReason
	if finishReason == "" {
		finishReason = "stop"
	}

	return provider.Response{
		Text:         last.Message.Content,
		FinishReason: finishReason,
		Usage: &provider.TokenUsage{
			PromptTokens:     last.PromptEvalCount,
			CompletionTokens: last.EvalCount,
			TotalTokens:      last.PromptEvalCount + last.EvalCount,
		},
	}, nil
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: p.opts.Model, Provider: "ollama"}
}

func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return provider.Classify(statusErr.StatusCode, err)
	}
	return provider.Classify(0, err)
}
