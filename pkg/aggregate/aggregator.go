// Package aggregate plans searches for a prompt, runs them and merges the
// findings into a single deduplicated context block.
package aggregate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/oswaldbot/relay-go/pkg/search"
)

// Separator joins result blocks from different queries.
const Separator = "\n\n---\n\n"

// State is the outcome of an aggregation.
type State int

const (
	// Absent means the planner decided no search was needed.
	Absent State = iota
	// Empty means searches ran but none produced results.
	Empty
	// Present means at least one search produced results.
	Present
)

// String returns "absent", "empty" or "present".
func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Present:
		return "present"
	default:
		return "absent"
	}
}

// Context is the aggregated search context for one prompt.
// Text is non-empty only when State is Present.
type Context struct {
	State State
	Text  string
}

// Planner produces search queries for a prompt.
type Planner interface {
	Plan(ctx context.Context, prompt, model string) []string
}

// Config contains configuration for the aggregator.
type Config struct {
	// Sequential runs queries one after another instead of concurrently.
	Sequential bool

	// MaxConcurrency caps in-flight searches when running concurrently.
	// Zero means one goroutine per query.
	MaxConcurrency int

	Logger *slog.Logger
}

// Aggregator combines a planner and a search executor.
type Aggregator struct {
	planner  Planner
	executor search.Executor
	config   Config
	logger   *slog.Logger
}

// New creates a new Aggregator.
func New(planner Planner, executor search.Executor, cfg *Config) *Aggregator {
	var config Config
	if cfg != nil {
		config = *cfg
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		planner:  planner,
		executor: executor,
		config:   config,
		logger:   logger.With("component", "aggregate"),
	}
}

// Aggregate plans and runs the searches for prompt.
//
// It returns (Absent, empty) without searching when the planner returns no
// queries. Otherwise the returned queries are the planner's, and the context is
// Empty when no query produced results, Present with the deduplicated blocks
// joined by Separator otherwise. Blocks keep the order of the queries that
// first produced them.
func (a *Aggregator) Aggregate(ctx context.Context, prompt, model string) (Context, []string) {
	queries := a.planner.Plan(ctx, prompt, model)
	if len(queries) == 0 {
		return Context{State: Absent}, []string{}
	}

	texts := a.run(ctx, queries)

	blocks := lo.Uniq(lo.Filter(texts, func(text string, _ int) bool {
		return text != ""
	}))
	if len(blocks) == 0 {
		a.logger.Warn("all search queries returned no results", "queries", queries)
		return Context{State: Empty}, queries
	}

	a.logger.Info("combined search results", "blocks", len(blocks), "queries", len(queries))
	return Context{State: Present, Text: strings.Join(blocks, Separator)}, queries
}

// run executes every non-blank query and returns one result text per query
// slot, in query order. Each goroutine writes only its own slot.
func (a *Aggregator) run(ctx context.Context, queries []string) []string {
	texts := make([]string, len(queries))

	if a.config.Sequential {
		for i, query := range queries {
			if strings.TrimSpace(query) == "" {
				continue
			}
			texts[i] = a.executor.Search(ctx, query).Text()
		}
		return texts
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.config.MaxConcurrency > 0 {
		g.SetLimit(a.config.MaxConcurrency)
	}
	for i, query := range queries {
		if strings.TrimSpace(query) == "" {
			continue
		}
		i, query := i, query
		g.Go(func() error {
			texts[i] = a.executor.Search(gctx, query).Text()
			return nil
		})
	}
	_ = g.Wait()
	return texts
}
