package aggregate_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oswaldbot/relay-go/pkg/aggregate"
	"github.com/oswaldbot/relay-go/pkg/llm/llmtest"
	"github.com/oswaldbot/relay-go/pkg/planner"
	"github.com/oswaldbot/relay-go/pkg/search"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixedPlanner []string

func (p fixedPlanner) Plan(ctx context.Context, prompt, model string) []string {
	return p
}

type fakeExecutor struct {
	mu      sync.Mutex
	results map[string]string
	queries []string
}

func (e *fakeExecutor) Search(ctx context.Context, query string) search.Result {
	e.mu.Lock()
	e.queries = append(e.queries, query)
	e.mu.Unlock()

	text, ok := e.results[query]
	if !ok {
		return search.Result{Query: query}
	}
	return search.Result{Query: query, Snippets: []search.Snippet{{Title: "hit", Content: text}}}
}

func (e *fakeExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "absent", aggregate.Absent.String())
	assert.Equal(t, "empty", aggregate.Empty.String())
	assert.Equal(t, "present", aggregate.Present.String())
}

func TestAggregate_AbsentSkipsSearch(t *testing.T) {
	executor := &fakeExecutor{}
	agg := aggregate.New(fixedPlanner{}, executor, &aggregate.Config{Logger: quiet})

	ctx, queries := agg.Aggregate(context.Background(), "hello how are you", "m")
	assert.Equal(t, aggregate.Context{State: aggregate.Absent}, ctx)
	assert.Empty(t, queries)
	assert.Empty(t, executor.calls())
}

func TestAggregate_DeduplicatesInFirstSeenOrder(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		executor := &fakeExecutor{results: map[string]string{
			"a": "first",
			"b": "second",
			"c": "first",
		}}
		agg := aggregate.New(fixedPlanner{"a", "b", "c"}, executor, &aggregate.Config{Sequential: sequential, Logger: quiet})

		ctx, queries := agg.Aggregate(context.Background(), "prompt", "m")
		assert.Equal(t, []string{"a", "b", "c"}, queries)
		require.Equal(t, aggregate.Present, ctx.State)
		assert.Equal(t, "Title: hit\nContent: first"+aggregate.Separator+"Title: hit\nContent: second", ctx.Text)
	}
}

func TestAggregate_SkipsBlankQueries(t *testing.T) {
	executor := &fakeExecutor{results: map[string]string{"real": "found"}}
	agg := aggregate.New(fixedPlanner{"  ", "real", ""}, executor, &aggregate.Config{Logger: quiet})

	ctx, queries := agg.Aggregate(context.Background(), "prompt", "m")
	assert.Equal(t, []string{"  ", "real", ""}, queries)
	assert.Equal(t, []string{"real"}, executor.calls())
	assert.Equal(t, aggregate.Present, ctx.State)
}

func TestAggregate_EmptyWhenNothingFound(t *testing.T) {
	agg := aggregate.New(fixedPlanner{"a", "b"}, &fakeExecutor{}, &aggregate.Config{Logger: quiet})

	ctx, queries := agg.Aggregate(context.Background(), "prompt", "m")
	assert.Equal(t, aggregate.Context{State: aggregate.Empty}, ctx)
	assert.Equal(t, []string{"a", "b"}, queries)
}

func TestAggregate_ConcurrencyLimit(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	slow := executorFunc(func(ctx context.Context, query string) search.Result {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return search.Result{Query: query}
	})

	agg := aggregate.New(fixedPlanner{"a", "b", "c", "d"}, slow, &aggregate.Config{MaxConcurrency: 2, Logger: quiet})
	ctx, _ := agg.Aggregate(context.Background(), "prompt", "m")
	assert.Equal(t, aggregate.Empty, ctx.State)
	assert.LessOrEqual(t, peak, 2)
}

type executorFunc func(ctx context.Context, query string) search.Result

func (f executorFunc) Search(ctx context.Context, query string) search.Result { return f(ctx, query) }

// The scenarios below run the real planner and SearXNG client against fakes.

func TestAggregate_CapitalOfCanada(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[{"title":"Canada","content":"Ottawa is the capital"}]}`)
	}))
	defer backend.Close()

	provider := &llmtest.Provider{Response: `{"search_queries": ["capital of Canada", "Canada capital city"]}`}
	agg := aggregate.New(
		planner.New(provider, &planner.Config{Logger: quiet}),
		search.NewClient(&search.Config{BaseURL: backend.URL, Logger: quiet}),
		&aggregate.Config{Logger: quiet},
	)

	ctx, queries := agg.Aggregate(context.Background(), "What is the capital of Canada?", "m")
	assert.Len(t, queries, 2)
	assert.Equal(t, aggregate.Context{State: aggregate.Present, Text: "Title: Canada\nContent: Ottawa is the capital"}, ctx)
}

func TestAggregate_AllSearchesFail(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer backend.Close()

	provider := &llmtest.Provider{Response: `{"search_queries": ["one", "two", "three"]}`}
	agg := aggregate.New(
		planner.New(provider, &planner.Config{Logger: quiet}),
		search.NewClient(&search.Config{BaseURL: backend.URL, Logger: quiet}),
		&aggregate.Config{Logger: quiet},
	)

	ctx, queries := agg.Aggregate(context.Background(), "who is playing tonight", "m")
	assert.Equal(t, aggregate.Empty, ctx.State)
	assert.Equal(t, []string{"one", "two", "three"}, queries)
}

func TestAggregate_PlannerFailureSearchesPrompt(t *testing.T) {
	var got []string
	var mu sync.Mutex
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.URL.Query().Get("q"))
		mu.Unlock()
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer backend.Close()

	agg := aggregate.New(
		planner.New(&llmtest.Provider{Response: "not json"}, &planner.Config{Logger: quiet}),
		search.NewClient(&search.Config{BaseURL: backend.URL, Logger: quiet}),
		&aggregate.Config{Logger: quiet},
	)

	ctx, queries := agg.Aggregate(context.Background(), "latest rust release", "m")
	assert.Equal(t, aggregate.Empty, ctx.State)
	assert.Equal(t, []string{"latest rust release"}, queries)
	assert.Equal(t, []string{"latest rust release"}, got)
}

func TestAggregate_BlankPlanIsAbsent(t *testing.T) {
	executor := &fakeExecutor{}
	agg := aggregate.New(
		planner.New(&llmtest.Provider{Response: `{"search_queries": ["  ", ""]}`}, &planner.Config{Logger: quiet}),
		executor,
		&aggregate.Config{Logger: quiet},
	)

	ctx, queries := agg.Aggregate(context.Background(), "hello how are you", "m")
	assert.Equal(t, aggregate.Absent, ctx.State)
	assert.Empty(t, queries)
	assert.Empty(t, executor.calls())
}
