// Package retrieve answers queries over the indexed activity graph with
// vector similarity search, optionally enriched by one hop of graph context.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/actigraph/internal/driver"
	"github.com/agenthands/actigraph/internal/llm"
	"github.com/agenthands/actigraph/internal/logger"
	"github.com/agenthands/actigraph/internal/model"
)

// ErrIndexNotReady means the vector index is missing or holds no chunks yet;
// run content indexing first.
var ErrIndexNotReady = errors.New("vector index not ready, run content indexing first")

const DefaultTopK = 5

type Retriever struct {
	driver    driver.GraphDriver
	embedder  llm.Embedder
	generator llm.Generator
	indexName string
}

func New(d driver.GraphDriver, embedder llm.Embedder, generator llm.Generator, indexName string) *Retriever {
	return &Retriever{
		driver:    d,
		embedder:  embedder,
		generator: generator,
		indexName: indexName,
	}
}

// Options controls a single retrieval.
type Options struct {
	TopK      int
	WithGraph bool // expand each hit with people and original-post context
	Rerank    bool // reorder hits with the generator after similarity search
}

// Search embeds the query, finds the nearest chunks and resolves each to its
// source entity. Results come back ordered by score descending; ties break
// toward the newer source.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]model.RetrievalResult, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("configured llm provider has no embedding support")
	}
	if err := r.checkIndex(ctx); err != nil {
		return nil, err
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	result, err := r.driver.ExecuteQuery(ctx, driver.VectorSearchQuery, map[string]any{
		"index_name": r.indexName,
		"top_k":      topK,
		"embedding":  vec,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	// kNN over a populated index always returns up to top_k neighbors; zero
	// records means the index exists but holds no chunks.
	if len(result.Records) == 0 {
		return nil, ErrIndexNotReady
	}

	results := make([]model.RetrievalResult, 0, len(result.Records))
	for _, rec := range result.Records {
		res := model.RetrievalResult{}
		if v, ok := rec.Get("text"); ok {
			res.Chunk.Text, _ = v.(string)
		}
		if v, ok := rec.Get("chunk_index"); ok {
			if n, ok := v.(int64); ok {
				res.Chunk.Index = int(n)
			}
		}
		if v, ok := rec.Get("score"); ok {
			res.Score, _ = v.(float64)
			res.Chunk.Score = res.Score
		}
		if v, ok := rec.Get("source_key"); ok {
			res.SourceURN, _ = v.(string)
		}
		if v, ok := rec.Get("labels"); ok {
			if labels, ok := v.([]any); ok && len(labels) > 0 {
				res.SourceLabel, _ = labels[0].(string)
			}
		}
		if v, ok := rec.Get("timestamp"); ok {
			res.SourceTimestamp, _ = v.(int64)
		}
		results = append(results, res)
	}

	if opts.WithGraph {
		for i := range results {
			if err := r.expand(ctx, &results[i]); err != nil {
				// Graph context is best-effort; the vector hit stands.
				logger.Get().Warn("graph expansion failed",
					zap.String("source", results[i].SourceURN), zap.Error(err))
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SourceTimestamp > results[j].SourceTimestamp
	})

	if opts.Rerank && r.generator != nil && len(results) > 1 {
		results = r.rerank(ctx, query, results)
	}
	return results, nil
}

// rerank asks the generator to reorder the hits by relevance. Best-effort:
// the similarity ordering stands when the model output is unusable.
func (r *Retriever) rerank(ctx context.Context, query string, results []model.RetrievalResult) []model.RetrievalResult {
	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Chunk.Text
	}
	order, err := llm.NewReranker(r.generator).Rank(ctx, query, docs)
	if err != nil || len(order) != len(results) {
		return results
	}
	reranked := make([]model.RetrievalResult, len(results))
	for pos, idx := range order {
		reranked[pos] = results[idx]
	}
	return reranked
}

func (r *Retriever) expand(ctx context.Context, res *model.RetrievalResult) error {
	result, err := r.driver.ExecuteQuery(ctx, driver.GraphContextQuery, map[string]any{
		"source_key": res.SourceURN,
	})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		return nil
	}
	rec := result.Records[0]
	if v, ok := rec.Get("people"); ok {
		if people, ok := v.([]any); ok {
			for _, p := range people {
				if s, ok := p.(string); ok && s != "" {
					res.People = append(res.People, s)
				}
			}
		}
	}
	if v, ok := rec.Get("original_post"); ok {
		res.OriginalPost, _ = v.(string)
	}
	return nil
}

// checkIndex verifies the vector index exists before searching.
func (r *Retriever) checkIndex(ctx context.Context) error {
	result, err := r.driver.ExecuteQuery(ctx, driver.ShowVectorIndexQuery, map[string]any{
		"index_name": r.indexName,
	})
	if err != nil {
		return fmt.Errorf("failed to inspect vector index: %w", err)
	}
	if len(result.Records) == 0 {
		return ErrIndexNotReady
	}
	return nil
}

// Answer generates a grounded response to the query from retrieved context.
func (r *Retriever) Answer(ctx context.Context, query string, results []model.RetrievalResult) (string, error) {
	if r.generator == nil {
		return "", fmt.Errorf("configured llm provider has no generation support")
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no retrieved context to answer from")
	}

	var sb strings.Builder
	for i, res := range results {
		fmt.Fprintf(&sb, "[%d] (%s %s", i+1, res.SourceLabel, res.SourceURN)
		if len(res.People) > 0 {
			fmt.Fprintf(&sb, ", people: %s", strings.Join(res.People, ", "))
		}
		sb.WriteString(")\n")
		sb.WriteString(res.Chunk.Text)
		sb.WriteString("\n\n")
	}

	prompt := fmt.Sprintf(`Answer the question using only the context below, drawn from a personal LinkedIn activity archive. Cite sources by their [n] marker. If the context does not contain the answer, say so.

Context:
%s
Question: %s`, sb.String(), query)

	return r.generator.Generate(ctx, prompt)
}
