// Package planner decides whether a prompt needs live web context and, if so,
// which search queries to run.
//
// Planning never fails: when the model cannot be reached or its output cannot
// be validated, the planner falls back to searching for the prompt itself.
// An empty plan is returned only when the model explicitly asked for no search.
package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/oswaldbot/relay-go/pkg/llm"
)

// DefaultTimeout bounds a single planning call.
const DefaultTimeout = 25 * time.Second

// Config contains configuration for the query planner.
type Config struct {
	// Timeout bounds the planning call. Defaults to 25 seconds.
	Timeout time.Duration

	// Now returns the current time for the date in the instruction.
	// Defaults to time.Now.
	Now func() time.Time

	// Logger receives planning diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Planner turns a user prompt into a list of search queries.
type Planner struct {
	llm     llm.Provider
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a new Planner backed by provider.
func New(provider llm.Provider, cfg *Config) *Planner {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		llm:     provider,
		timeout: timeout,
		now:     now,
		logger:  logger.With("component", "planner"),
	}
}

// Plan asks the model for search queries for prompt.
//
// The result is:
//   - an empty, non-nil slice when the model decided no search is needed
//   - the model's queries when its output validates
//   - []string{prompt} on any transport, server or parse failure
func (p *Planner) Plan(ctx context.Context, prompt, model string) []string {
	fallback := []string{prompt}
	if p.llm == nil {
		p.logger.Error("no generation provider configured, falling back to direct search")
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Info("generating search queries", "prompt", prompt)
	raw, err := p.llm.Generate(ctx,
		buildPlanPrompt(p.now().Format(DateLayout), prompt),
		llm.WithModel(model),
		llm.WithJSONFormat(),
		llm.WithTemperature(0),
		llm.WithKeepAlive("0"),
	)
	if err != nil {
		p.logger.Error("contacting model for search queries", "error", err)
		return fallback
	}

	queries, ok := ParseQueries(raw)
	if !ok {
		p.logger.Warn("model returned an unusable plan, falling back to direct search", "response", raw)
		return fallback
	}

	if len(queries) == 0 {
		p.logger.Info("model decided no search is necessary")
	} else {
		p.logger.Info("generated search queries", "count", len(queries), "queries", queries)
	}
	return queries
}

// ParseQueries validates model output against {"search_queries": [string, ...]}.
//
// The model may wrap the object in extra text, so only the span between the
// first '{' and the last '}' is parsed. ok is false when no such span exists,
// the span is not valid JSON, the key is missing, or its value is not a list
// of strings. Queries are trimmed and blank ones dropped, so a list holding
// only blanks counts as the explicit empty list: a non-nil empty slice and
// ok true.
func ParseQueries(raw string) (queries []string, ok bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &envelope); err != nil {
		return nil, false
	}

	value, found := envelope["search_queries"]
	if !found {
		return nil, false
	}
	trimmed := strings.TrimSpace(string(value))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var listed []string
	if err := json.Unmarshal(value, &listed); err != nil {
		return nil, false
	}

	queries = []string{}
	for _, q := range listed {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries, true
}
