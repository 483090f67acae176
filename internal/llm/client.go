// Package llm provides text generation and embedding clients behind small
// interfaces, with providers registered by name.
package llm

import (
	"context"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder maps text onto a fixed-dimension vector. The dimension is a
// property of the configured model and must stay stable for the lifetime of
// a vector index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
