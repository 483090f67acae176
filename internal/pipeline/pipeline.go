// Package pipeline wires the stages together: fetch changelog events into
// the record store, build the graph from stored records, index content, and
// report status.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/agenthands/actigraph/internal/analyze"
	"github.com/agenthands/actigraph/internal/changelog"
	"github.com/agenthands/actigraph/internal/config"
	"github.com/agenthands/actigraph/internal/driver"
	"github.com/agenthands/actigraph/internal/extract"
	"github.com/agenthands/actigraph/internal/index"
	"github.com/agenthands/actigraph/internal/llm"
	"github.com/agenthands/actigraph/internal/loader"
	"github.com/agenthands/actigraph/internal/logger"
	"github.com/agenthands/actigraph/internal/model"
	"github.com/agenthands/actigraph/internal/retrieve"
	"github.com/agenthands/actigraph/internal/store"
)

type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	client    *changelog.Client
	driver    driver.GraphDriver
	loader    *loader.Loader
	indexer   *index.Indexer
	retriever *retrieve.Retriever
	generator llm.Generator
}

func New(cfg *config.Config, st *store.Store, client *changelog.Client, d driver.GraphDriver, ld *loader.Loader, ix *index.Indexer, rt *retrieve.Retriever, gen llm.Generator) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		client:    client,
		driver:    d,
		loader:    ld,
		indexer:   ix,
		retriever: rt,
		generator: gen,
	}
}

// Fetch pulls new changelog events since the stored cursor and appends the
// mapped records to the store. On a partial fetch (some pages failed) the
// successfully fetched events are still stored, the cursor is NOT advanced,
// and the page error is returned alongside the summary.
func (p *Pipeline) Fetch(ctx context.Context) (*model.FetchSummary, error) {
	log := logger.Get()

	since, err := p.store.LoadCursor()
	if err != nil {
		return nil, err
	}

	events, fetchErr := p.client.Fetch(ctx, since)
	if fetchErr != nil && !isPartial(fetchErr) {
		return nil, fetchErr
	}

	owner := ownerOf(events)
	records, skipped := changelog.RecordsFromEvents(events, owner)
	appended, err := p.store.Append(records)
	if err != nil {
		return nil, err
	}

	summary := &model.FetchSummary{
		EventsFetched:   len(events),
		RecordsAppended: appended,
		Duplicates:      len(records) - appended,
		SkippedEvents:   skipped,
	}

	if fetchErr == nil {
		if latest := changelog.MaxProcessedAt(events); latest > since {
			if err := p.store.SaveCursor(latest); err != nil {
				return summary, err
			}
		}
	} else {
		log.Warn("partial fetch, cursor not advanced", zap.Error(fetchErr))
	}

	log.Info("fetch stage complete",
		zap.Int("events", summary.EventsFetched),
		zap.Int("appended", summary.RecordsAppended),
		zap.Int("duplicates", summary.Duplicates))
	return summary, fetchErr
}

func isPartial(err error) bool {
	var pageErr *changelog.PageError
	return errors.As(err, &pageErr)
}

// ownerOf returns the owner URN the events belong to. Every event carries it
// redundantly, so the first non-empty one wins.
func ownerOf(events []changelog.Event) string {
	for _, e := range events {
		if e.Owner != "" {
			return e.Owner
		}
	}
	return ""
}

// BuildGraph extracts the whole record store and loads it into the graph.
func (p *Pipeline) BuildGraph(ctx context.Context, mode loader.Mode) (*model.LoadSummary, error) {
	records, skipped, err := p.store.LoadAll(store.Filter{})
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.Get().Warn("skipped malformed store rows", zap.Int("rows", skipped))
	}

	g := extract.Extract(records)
	logger.Get().Info("extraction complete",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("relationships", len(g.Relationships)),
		zap.Any("skipped", g.Skipped))

	return p.loader.Load(ctx, g, mode)
}

// IndexContent chunks and embeds entity text into the vector index.
func (p *Pipeline) IndexContent(ctx context.Context, limit int, reindex bool) (*model.IndexSummary, error) {
	return p.indexer.Run(ctx, limit, reindex)
}

// Retriever exposes the query side of the pipeline.
func (p *Pipeline) Retriever() *retrieve.Retriever { return p.retriever }

// Communities clusters the people in the graph by interaction affinity.
func (p *Pipeline) Communities(ctx context.Context) ([]analyze.Community, error) {
	return analyze.New(p.driver).Communities(ctx)
}

// Summarize digests recent posts and comments with the generator.
func (p *Pipeline) Summarize(ctx context.Context, since int64, limit int) (*analyze.ActivitySummary, error) {
	return analyze.NewSummarizer(p.driver, p.generator).Summarize(ctx, since, limit)
}

// RunSummary aggregates the per-stage outcomes of a full pipeline run.
type RunSummary struct {
	Fetch *model.FetchSummary `json:"fetch"`
	Load  *model.LoadSummary  `json:"load"`
	Index *model.IndexSummary `json:"index"`
}

// Run executes fetch, build and index in sequence. A partial fetch is logged
// and the run continues with what was stored; any other stage error stops
// the run.
func (p *Pipeline) Run(ctx context.Context, fullRebuild bool) (*RunSummary, error) {
	summary := &RunSummary{}

	fetchSummary, err := p.Fetch(ctx)
	if err != nil && !isPartial(err) {
		return summary, fmt.Errorf("fetch stage failed: %w", err)
	}
	summary.Fetch = fetchSummary

	mode := loader.Incremental
	if fullRebuild {
		mode = loader.FullRebuild
	}
	summary.Load, err = p.BuildGraph(ctx, mode)
	if err != nil {
		return summary, fmt.Errorf("load stage failed: %w", err)
	}

	summary.Index, err = p.IndexContent(ctx, 0, fullRebuild)
	if err != nil {
		return summary, fmt.Errorf("index stage failed: %w", err)
	}
	return summary, nil
}

// Status reports what the pipeline has accumulated so far.
type Status struct {
	StoreRecords  int   `json:"store_records"`
	Cursor        int64 `json:"cursor"`
	People        int   `json:"people"`
	Posts         int   `json:"posts"`
	Comments      int   `json:"comments"`
	Resources     int   `json:"resources"`
	Chunks        int   `json:"chunks"`
	Relationships int   `json:"relationships"`
}

func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	status := &Status{StoreRecords: p.store.Count()}

	cursor, err := p.store.LoadCursor()
	if err != nil {
		return nil, err
	}
	status.Cursor = cursor

	result, err := p.driver.ExecuteQuery(ctx, driver.StatusQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query graph status: %w", err)
	}
	if len(result.Records) > 0 {
		rec := result.Records[0]
		for key, dst := range map[string]*int{
			"people":        &status.People,
			"posts":         &status.Posts,
			"comments":      &status.Comments,
			"resources":     &status.Resources,
			"chunks":        &status.Chunks,
			"relationships": &status.Relationships,
		} {
			if v, ok := rec.Get(key); ok {
				if n, ok := v.(int64); ok {
					*dst = int(n)
				}
			}
		}
	}
	return status, nil
}
