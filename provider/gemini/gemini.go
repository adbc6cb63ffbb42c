// Package gemini adapts the Google Gemini API (via the GenAI SDK) to the
// generic provider.Provider interface.
package gemini

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/genai"

	"github.com/hupe1980/agentfleet/provider"
)

// Options configure the Gemini provider adapter.
type Options struct {
	Model  string
	APIKey string
}

// Provider wraps the Gemini GenerateContent API behind provider.Provider.
// The underlying SDK client needs a context for construction, so it is
// created lazily on first use and cached.
type Provider struct {
	opts   Options
	mu     sync.Mutex
	client *genai.Client
}

// New creates a Gemini provider. The SDK client is built on first Complete.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{Model: "gemini-2.0-flash"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

func (p *Provider) ensureClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, classify(err)
	}
	p.client = client
	return client, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (provider.Response, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return provider.Response{}, err
	}

	model := req.Model
	if model == "" {
		model = p.opts.Model
	}

	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}},
	}

	result, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return provider.Response{}, classify(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return provider.Response{}, provider.Classify(0, errors.New("empty response from Gemini"))
	}

	resp := provider.Response{
		Text:         result.Text(),
		FinishReason: string(result.Candidates[0].FinishReason),
	}
	if result.UsageMetadata != nil {
		resp.Usage = &provider.TokenUsage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}

	return resp, nil
}

// Info implements provider.Provider.
func (p *Provider) Info() provider.Info {
	return provider.Info{Name: p.opts.Model, Provider: "gemini"}
}

func classify(err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		return provider.Classify(apierr.Code, err)
	}
	return provider.Classify(0, err)
}
