package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenthands/actigraph/internal/analyze"
	"github.com/agenthands/actigraph/internal/changelog"
	"github.com/agenthands/actigraph/internal/config"
	"github.com/agenthands/actigraph/internal/driver"
	"github.com/agenthands/actigraph/internal/index"
	"github.com/agenthands/actigraph/internal/llm"
	"github.com/agenthands/actigraph/internal/loader"
	"github.com/agenthands/actigraph/internal/logger"
	"github.com/agenthands/actigraph/internal/pipeline"
	"github.com/agenthands/actigraph/internal/retrieve"
	"github.com/agenthands/actigraph/internal/server"
	"github.com/agenthands/actigraph/internal/store"
)

var (
	cfgPath string
	cfg     *config.Config
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger.Sync()
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "actigraph",
		Short: "Member activity graph pipeline: fetch, build, index, query",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgPath
			if !cmd.Flags().Changed("config") {
				// The default path is optional; an explicitly given one
				// must exist.
				if _, err := os.Stat(path); err != nil {
					path = ""
				}
			}
			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return err
			}
			return logger.Init(cfg.Env)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config/config.toml", "path to TOML config file")

	root.AddCommand(fetchCmd(), buildGraphCmd(), indexContentCmd(), queryCmd(), communitiesCmd(), summarizeCmd(), runCmd(), serveCmd())
	return root
}

// signalContext cancels on SIGINT/SIGTERM so long stages stop at a batch
// boundary instead of mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openGraph() (*driver.Neo4jDriver, error) {
	return driver.NewNeo4jDriver(cfg.Neo4j)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch new changelog events into the local record store",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			st, err := store.Open(cfg.Store.DataDir)
			if err != nil {
				return err
			}
			client := changelog.NewClient(cfg.Changelog)
			p := pipeline.New(cfg, st, client, nil, nil, nil, nil, nil)

			summary, err := p.Fetch(ctx)
			if summary != nil {
				if printErr := printJSON(summary); printErr != nil {
					return printErr
				}
			}
			var pageErr *changelog.PageError
			if errors.As(err, &pageErr) {
				logger.Get().Warn("fetch was partial", zap.Int("failed_page_start", pageErr.Start))
				return nil
			}
			return err
		},
	}
}

func buildGraphCmd() *cobra.Command {
	var fullRebuild bool
	cmd := &cobra.Command{
		Use:   "build-graph",
		Short: "Extract stored records and load them into the graph database",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			st, err := store.Open(cfg.Store.DataDir)
			if err != nil {
				return err
			}
			d, err := openGraph()
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			p := pipeline.New(cfg, st, nil, d, loader.New(d, loader.DefaultBatchSize), nil, nil, nil)
			mode := loader.Incremental
			if fullRebuild {
				mode = loader.FullRebuild
			}
			summary, err := p.BuildGraph(ctx, mode)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().BoolVar(&fullRebuild, "full-rebuild", false, "delete previously loaded data and rebuild from scratch")
	return cmd
}

func indexContentCmd() *cobra.Command {
	var limit int
	var reindex bool
	cmd := &cobra.Command{
		Use:   "index-content",
		Short: "Chunk and embed entity content into the vector index",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			d, err := openGraph()
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			_, embedder, err := llm.New(ctx, cfg.LLM)
			if err != nil {
				return err
			}
			ix := index.New(d, embedder, cfg.Index)

			p := pipeline.New(cfg, nil, nil, d, nil, ix, nil, nil)
			summary, err := p.IndexContent(ctx, limit, reindex)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "index at most this many entities (0 = all)")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "re-chunk and re-embed entities that already have chunks")
	return cmd
}

func queryCmd() *cobra.Command {
	var topK int
	var withGraph, rerank, answer bool
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Search the indexed activity graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			d, err := openGraph()
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			generator, embedder, err := llm.New(ctx, cfg.LLM)
			if err != nil {
				return err
			}
			rt := retrieve.New(d, embedder, generator, cfg.Index.VectorIndex)

			question := strings.Join(args, " ")

			results, err := rt.Search(ctx, question, retrieve.Options{TopK: topK, WithGraph: withGraph, Rerank: rerank})
			if err != nil {
				return err
			}
			if err := printJSON(results); err != nil {
				return err
			}
			if answer {
				text, err := rt.Answer(ctx, question, results)
				if err != nil {
					return err
				}
				fmt.Println()
				fmt.Println(text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", retrieve.DefaultTopK, "number of chunks to retrieve")
	cmd.Flags().BoolVar(&withGraph, "graph", false, "expand results with one hop of graph context")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "rerank results with the generation model")
	cmd.Flags().BoolVar(&answer, "answer", false, "generate an answer from the retrieved context")
	return cmd
}

func communitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "communities",
		Short: "Detect clusters of people who engage with each other's activity",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			d, err := openGraph()
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			communities, err := analyze.New(d).Communities(ctx)
			if err != nil {
				return err
			}
			return printJSON(communities)
		},
	}
}

func summarizeCmd() *cobra.Command {
	var last string
	var limit int
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate a digest of recent posts and comments",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			window, err := analyze.ParseWindow(last)
			if err != nil {
				return err
			}
			d, err := openGraph()
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			generator, _, err := llm.New(ctx, cfg.LLM)
			if err != nil {
				return err
			}

			since := time.Now().Add(-window).UnixMilli()
			summary, err := analyze.NewSummarizer(d, generator).Summarize(ctx, since, limit)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().StringVar(&last, "last", "7d", "period to summarize, like 7d, 2w or 1m")
	cmd.Flags().IntVar(&limit, "limit", 0, "summarize at most this many items (0 = default)")
	return cmd
}

func runCmd() *cobra.Command {
	var fullRebuild bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: fetch, build graph, index content",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			p, d, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			summary, err := p.Run(ctx, fullRebuild)
			if summary != nil {
				if printErr := printJSON(summary); printErr != nil {
					return printErr
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&fullRebuild, "full-rebuild", false, "delete previously loaded data and rebuild from scratch")
	return cmd
}

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query and ingest API over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			p, d, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer d.Close(ctx)

			r := server.NewServer(p).SetupRouter()
			logger.Get().Info("starting server", zap.String("port", port))
			return r.Run(":" + port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "8080", "port to listen on")
	return cmd
}

// buildPipeline wires every stage; used by commands that may touch all of
// them.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, *driver.Neo4jDriver, error) {
	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, nil, err
	}
	d, err := openGraph()
	if err != nil {
		return nil, nil, err
	}
	generator, embedder, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		d.Close(ctx)
		return nil, nil, err
	}

	client := changelog.NewClient(cfg.Changelog)
	ld := loader.New(d, loader.DefaultBatchSize)
	ix := index.New(d, embedder, cfg.Index)
	rt := retrieve.New(d, embedder, generator, cfg.Index.VectorIndex)

	return pipeline.New(cfg, st, client, d, ld, ix, rt, generator), d, nil
}
