// Package llm issues multimodal generation requests to AI providers.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the provider responds without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// Image is one inlined image for a multimodal request.
type Image struct {
	Data     []byte
	MIMEType string
}

// Params are the generation parameters for a single call. Phases tune these
// to the output they expect: low temperature for extraction and
// identification, higher for creative content, token ceilings sized to the
// expected response shape.
type Params struct {
	MaxOutputTokens int32
	Temperature     float32
	// ForceJSON requests the provider's JSON response mode where supported.
	ForceJSON bool
}

// Request is one multimodal generation request.
type Request struct {
	Prompt string
	Images []Image
	Params Params
}

// Usage contains token usage and cost information for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Model issues one multimodal request and returns the raw text completion.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Name identifies the underlying model for logging and payload metadata.
	Name() string
}
