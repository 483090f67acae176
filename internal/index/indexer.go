// Package index chunks entity text, embeds the chunks and maintains the
// vector index over them.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/actigraph/internal/config"
	"github.com/agenthands/actigraph/internal/driver"
	"github.com/agenthands/actigraph/internal/llm"
	"github.com/agenthands/actigraph/internal/logger"
	"github.com/agenthands/actigraph/internal/model"
)

// ErrDimensionMismatch means the configured embedding model produces vectors
// of a different dimension than the existing index. Proceeding would poison
// the index, so the run aborts before any write.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch with existing vector index")

type Indexer struct {
	driver   driver.GraphDriver
	embedder llm.Embedder
	source   ContentSource
	fetcher  *WebFetcher
	cfg      config.IndexConfig
}

func New(d driver.GraphDriver, embedder llm.Embedder, cfg config.IndexConfig) *Indexer {
	ix := &Indexer{
		driver:   d,
		embedder: embedder,
		source:   &GraphSource{Driver: d},
		cfg:      cfg,
	}
	if cfg.FetchContent {
		ix.fetcher = NewWebFetcher()
	}
	return ix
}

// Run indexes up to limit candidate entities (zero means all). With reindex,
// existing chunks for each entity are replaced. One entity failing to embed
// or write is recorded and the run continues; only systemic errors (no
// embedder, dimension mismatch, candidate query failure) abort it.
func (ix *Indexer) Run(ctx context.Context, limit int, reindex bool) (*model.IndexSummary, error) {
	log := logger.Get()
	summary := &model.IndexSummary{}

	if ix.embedder == nil {
		return summary, fmt.Errorf("configured llm provider has no embedding support")
	}

	items, err := ix.source.Items(ctx, limit, reindex, ix.fetcher != nil)
	if err != nil {
		return summary, err
	}
	if len(items) == 0 {
		log.Info("no content to index")
		return summary, nil
	}

	resolved := ix.resolveTexts(ctx, items, summary)
	if len(resolved) == 0 {
		return summary, nil
	}

	// Probe the embedding dimension with the first real chunk and verify
	// it against any existing index before writing anything.
	probeChunks := Chunk(resolved[0].Text, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	probeVec, err := ix.embedder.Embed(ctx, probeChunks[0])
	if err != nil {
		return summary, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	summary.EmbeddingsComputed++
	if err := ix.ensureVectorIndex(ctx, len(probeVec)); err != nil {
		return summary, err
	}

	cache := map[string][]float32{probeChunks[0]: probeVec}
	runID := uuid.NewString()

	for _, item := range resolved {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := ix.indexItem(ctx, item, reindex, runID, cache, summary); err != nil {
			log.Warn("failed to index item", zap.String("key", item.Key), zap.Error(err))
			summary.Failed = append(summary.Failed, item.Key)
			continue
		}
		summary.ItemsProcessed++
	}

	log.Info("content indexing complete",
		zap.Int("items", summary.ItemsProcessed),
		zap.Int("chunks", summary.ChunksCreated),
		zap.Int("embeddings", summary.EmbeddingsComputed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.Failed)))
	return summary, nil
}

// resolveTexts fills in missing item text from the web when fetching is
// enabled, and drops items that end up with no text.
func (ix *Indexer) resolveTexts(ctx context.Context, items []Item, summary *model.IndexSummary) []Item {
	log := logger.Get()
	resolved := items[:0:0]
	for _, item := range items {
		if item.Text == "" && ix.fetcher != nil && item.URL != "" {
			text, err := ix.fetcher.Fetch(ctx, item.URL)
			if err != nil {
				log.Warn("content fetch failed", zap.String("url", item.URL), zap.Error(err))
			}
			item.Text = text
		}
		if item.Text == "" {
			summary.Skipped++
			continue
		}
		resolved = append(resolved, item)
	}
	return resolved
}

func (ix *Indexer) indexItem(ctx context.Context, item Item, reindex bool, runID string, cache map[string][]float32, summary *model.IndexSummary) error {
	chunks := Chunk(item.Text, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)

	// Embed chunks concurrently; any failure fails the whole item so an
	// entity is never half-indexed.
	vectors := make([][]float32, len(chunks))
	var mu sync.Mutex
	var computed int

	g, gctx := errgroup.WithContext(ctx)
	concurrency := ix.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, chunk := range chunks {
		if vec, ok := cache[chunk]; ok {
			vectors[i] = vec
			continue
		}
		g.Go(func() error {
			vec, err := ix.embedder.Embed(gctx, chunk)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			mu.Lock()
			vectors[i] = vec
			computed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	summary.EmbeddingsComputed += computed

	if reindex {
		if _, err := ix.driver.ExecuteQuery(ctx, driver.DeleteChunksForSourceQuery, map[string]any{
			"source_key": item.Key,
		}); err != nil {
			return fmt.Errorf("failed to delete stale chunks: %w", err)
		}
	}

	rows := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		rows[i] = map[string]any{
			"id":           ChunkID(item.Key, i),
			"text":         chunk,
			"chunk_index":  i,
			"total_chunks": len(chunks),
			"embedding":    vectors[i],
			"source_key":   item.Key,
		}
	}

	batchSize := ix.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := ix.driver.ExecuteQuery(ctx, driver.ChunkMergeQuery, map[string]any{
			"batch":      rows[start:end],
			"ingest_run": runID,
		}); err != nil {
			return fmt.Errorf("failed to write chunks: %w", err)
		}
	}

	summary.ChunksCreated += len(chunks)
	return nil
}

// ensureVectorIndex creates the index at the given dimension, or verifies an
// existing one matches.
func (ix *Indexer) ensureVectorIndex(ctx context.Context, dims int) error {
	existing, found, err := ix.indexDimensions(ctx)
	if err != nil {
		return err
	}
	if found {
		if existing != dims {
			return fmt.Errorf("%w: index %s has %d dimensions, model produces %d",
				ErrDimensionMismatch, ix.cfg.VectorIndex, existing, dims)
		}
		return nil
	}

	if _, err := ix.driver.ExecuteQuery(ctx, driver.VectorIndexCreateQuery(ix.cfg.VectorIndex, dims), nil); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	logger.Get().Info("created vector index",
		zap.String("name", ix.cfg.VectorIndex), zap.Int("dimensions", dims))
	return nil
}

func (ix *Indexer) indexDimensions(ctx context.Context) (dims int, found bool, err error) {
	result, err := ix.driver.ExecuteQuery(ctx, driver.ShowVectorIndexQuery, map[string]any{
		"index_name": ix.cfg.VectorIndex,
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to inspect vector index: %w", err)
	}
	if len(result.Records) == 0 {
		return 0, false, nil
	}

	v, _ := result.Records[0].Get("options")
	options, _ := v.(map[string]any)
	indexConfig, _ := options["indexConfig"].(map[string]any)
	switch d := indexConfig["vector.dimensions"].(type) {
	case int64:
		return int(d), true, nil
	case float64:
		return int(d), true, nil
	}
	// Index exists but its config is unreadable; treat the dimension as
	// unknown rather than guessing.
	return 0, false, fmt.Errorf("vector index %s exists but its dimensions could not be read", ix.cfg.VectorIndex)
}
