// Package provider defines the capability interface every remote
// text-generation API is adapted to. Concrete adapters live in subpackages
// (openai, anthropic, gemini, ollama); this package holds the normalized
// request/response structures, a shared error classifier and a MockProvider
// for tests and examples.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentfleet/core"
)

// Request captures the normalized completion input produced by a client.
// Providers translate it into their vendor wire format.
type Request struct {
	Model       string         `json:"model"`
	Prompt      string         `json:"prompt"`
	System      string         `json:"system,omitempty"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
	Params      map[string]any `json:"params,omitempty"` // vendor specific passthrough
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized completion output.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name     string `json:"name"`     // model identifier
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "ollama", "mock"
}

// Provider is the single capability interface the engine is polymorphic
// over. Implementations must be safe for concurrent use; errors crossing
// this boundary should be classified via core.Error so the client's retry
// policy can act on them.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)

	// Info returns metadata about the provider implementation.
	Info() Info
}

// Closer is implemented by providers owning a transport resource that must
// be released on shutdown. Providers without such a resource simply do not
// implement it.
type Closer interface {
	Close() error
}

// Classify maps a vendor SDK error with a known HTTP status into the core
// taxonomy. A zero status falls through to message-based classification.
func Classify(status int, err error) *core.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewErrorWithCause(core.ErrorTypeTransient, err, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return core.NewErrorWithCause(core.ErrorTypeCancelled, err, "request cancelled")
	}

	switch {
	case status == 429:
		return core.NewErrorWithCause(core.ErrorTypeRateLimit, err, "rate limit exceeded")
	case status >= 500:
		return core.NewErrorWithCause(core.ErrorTypeTransient, err, fmt.Sprintf("server error (%d)", status))
	case status >= 400:
		return core.NewErrorWithCause(core.ErrorTypeNonRetryable, err, fmt.Sprintf("request rejected (%d)", status))
	}

	return classifyMessage(err)
}

// classifyMessage falls back to pattern matching on the error text for
// transports that do not surface a typed status code.
func classifyMessage(err error) *core.Error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "temporary"),
		strings.Contains(msg, "reset"),
		strings.Contains(msg, "eof"):
		return core.NewErrorWithCause(core.ErrorTypeTransient, err, "network error")
	case strings.Contains(msg, "rate"), strings.Contains(msg, "quota"):
		return core.NewErrorWithCause(core.ErrorTypeRateLimit, err, "rate limiting detected")
	case strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "api key"):
		return core.NewErrorWithCause(core.ErrorTypeNonRetryable, err, "authentication error")
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return core.NewErrorWithCause(core.ErrorTypeNonRetryable, err, "malformed request")
	default:
		return core.NewErrorWithCause(core.ErrorTypeUnknown, err, "unclassified provider error")
	}
}
