package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/actigraph/internal/config"
)

func init() {
	Register("ollama", func(_ context.Context, cfg config.LLMConfig) (Generator, Embedder, error) {
		// Ollama speaks the OpenAI API under /v1; reuse that client. The
		// key is ignored server-side but the client requires one.
		baseURL := strings.TrimRight(cfg.BaseURL, "/")
		if baseURL == "" {
			return nil, nil, fmt.Errorf("ollama provider requires a base_url")
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL += "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		c := NewOpenAIClient(apiKey, cfg.Model, cfg.EmbeddingModel, baseURL)
		return c, c, nil
	})
}
