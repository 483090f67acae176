//go:build integration

package integration

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/actigraph/internal/config"
	"github.com/agenthands/actigraph/internal/extract"
	"github.com/agenthands/actigraph/internal/index"
	"github.com/agenthands/actigraph/internal/llm"
	"github.com/agenthands/actigraph/internal/loader"
	"github.com/agenthands/actigraph/internal/retrieve"
)

// TestIndexAndQuery exercises the whole read path: load a small graph, embed
// its content, then retrieve it by similarity. Needs a running Neo4j and an
// embedding-capable LLM endpoint.
func TestIndexAndQuery(t *testing.T) {
	d := graphDriver(t)
	defer d.Close(context.Background())

	llmCfg := config.LLMConfig{
		Provider:       os.Getenv("LLM_PROVIDER"),
		Model:          os.Getenv("LLM_MODEL"),
		EmbeddingModel: os.Getenv("EMBEDDING_MODEL"),
		APIKey:         os.Getenv("LLM_API_KEY"),
		BaseURL:        os.Getenv("LLM_BASE_URL"),
	}
	if llmCfg.Provider == "" {
		llmCfg.Provider = "ollama"
		llmCfg.Model = "llama3.2:3b"
		llmCfg.EmbeddingModel = "nomic-embed-text"
		llmCfg.BaseURL = "http://localhost:11434"
	}

	ctx := context.Background()
	generator, embedder, err := llm.New(ctx, llmCfg)
	require.NoError(t, err)
	if embedder == nil {
		t.Skipf("provider %s has no embedding support", llmCfg.Provider)
	}

	cleanup(t, d)
	defer cleanup(t, d)

	_, err = loader.New(d, 100).Load(ctx, extract.Extract(sampleRecords()), loader.Incremental)
	require.NoError(t, err)

	idxCfg := config.Default().Index
	idxCfg.VectorIndex = "activity_content_index_it"
	summary, err := index.New(d, embedder, idxCfg).Run(ctx, 0, true)
	require.NoError(t, err)
	assert.Positive(t, summary.ChunksCreated)
	assert.Empty(t, summary.Failed)

	rt := retrieve.New(d, embedder, generator, idxCfg.VectorIndex)
	results, err := rt.Search(ctx, "graph databases", retrieve.Options{TopK: 3, WithGraph: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	found := false
	for _, r := range results {
		if r.SourceURN == "urn:li:share:100" {
			found = true
		}
	}
	assert.True(t, found, "expected the graph-database post among the results")

	answer, err := rt.Answer(ctx, "What was written about graph databases?", results)
	require.NoError(t, err)
	assert.NotEmpty(t, answer)

	_, _ = d.ExecuteQuery(ctx, "DROP INDEX activity_content_index_it IF EXISTS", nil)
}
