// Package model talks to OpenAI-compatible completion, vision and embedding endpoints.
package model

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"persona-handler/prompts"
)

// Model errors
var (
	ErrProvider = errors.New("[model] provider error")
)

// ProviderError reports response with no choices or explicit error payload
type ProviderError struct {
	Model  string
	Reason string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrProvider, e.Model, e.Reason)
}

func (e *ProviderError) Unwrap() error {
	return ErrProvider
}

// Sampling parameters
type Params struct {
	Temperature float32        `json:"temperature" yaml:"temperature"`
	MaxTokens   int            `json:"max_tokens" yaml:"max_tokens"`
	LogitBias   map[string]int `json:"logit_bias,omitempty" yaml:"logit_bias,omitempty"`
}

// Request is immutable per attempt
type Request struct {
	Prompt prompts.Prompt
	Model  string
	Params Params
}

func NewRequest(p prompts.Prompt, model string, params Params) Request {
	return Request{
		Prompt: p,
		Model:  model,
		Params: params,
	}
}

// WithModel returns copy differing only by model name
func (r Request) WithModel(model string) Request {
	r.Model = model
	r.Prompt = r.Prompt.With()
	r.Params.LogitBias = maps.Clone(r.Params.LogitBias)
	return r
}

// Completer returns completion text for request
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Describer returns description of image conditioned on request prompt
type Describer interface {
	Describe(ctx context.Context, req Request, imageURL string) (string, error)
}

// Embedder returns one vector per text
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CompleterFunc adapts function to Completer
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
