// Package research implements the agentic research loop: an LLM-directed
// sequence of web searches, bounded by iteration and wall-clock budgets,
// that produces a deduplicated evidence base for probability synthesis.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/seldon-labs/psychohistory/pkg/llm"
	"github.com/seldon-labs/psychohistory/pkg/models"
)

// Per-invocation budgets. The model is an untrusted planner; these caps and
// the dedup filters below are the safety rails around it.
const (
	// MaxIterations bounds the number of completion rounds.
	MaxIterations = 5
	// SearchTimeout is the wall-clock cap for a whole invocation.
	SearchTimeout = 60 * time.Second
	// MinSources is the evidence threshold for normal termination.
	MinSources = 3
)

// defaultSummary is returned when the loop ends without the model calling
// finish_research.
const defaultSummary = "Research completed through iterative search"

// Searcher executes one query. Satisfied by *search.Client.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Source, error)
}

// Request carries the node under research and its tree context.
type Request struct {
	Event     string
	Path      []string // events from the root down to this node's parent
	Context   string
	Timeframe string
	Depth     int
	MaxDepth  int
}

// Researcher drives the iterative tool-calling loop.
type Researcher struct {
	llm      llm.Client
	searcher Searcher
	logger   *slog.Logger
	now      func() time.Time // injectable for wall-clock tests
}

// NewResearcher creates a Researcher. A nil logger falls back to the default.
func NewResearcher(client llm.Client, searcher Searcher, logger *slog.Logger) *Researcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Researcher{
		llm:      client,
		searcher: searcher,
		logger:   logger,
		now:      time.Now,
	}
}

// loopState is the mutable accumulator threaded through one invocation.
type loopState struct {
	sources     []models.Source
	seenDomains map[string]struct{}
	queries     []string
	querySet    map[string]struct{}
	iterations  int
}

// Research runs the loop and returns the accumulated evidence. It never
// returns an error for model or provider failures; those degrade to a
// partial result with low confidence. Only context cancellation propagates.
func (r *Researcher) Research(ctx context.Context, req Request) (*models.ResearchResult, error) {
	start := r.now()
	st := &loopState{
		seenDomains: make(map[string]struct{}),
		querySet:    make(map[string]struct{}),
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: researchSystemPrompt},
		{Role: llm.RoleUser, Content: buildResearchPrompt(req)},
	}
	tools := researchTools()

	for i := 1; i <= MaxIterations; i++ {
		st.iterations = i

		if r.now().Sub(start) > SearchTimeout {
			r.logger.Warn("Research wall-clock budget exceeded",
				"event", req.Event, "iteration", i, "sources", len(st.sources))
			return r.finish(st, defaultSummary, models.ConfidenceLow), nil
		}

		resp, err := r.llm.CompleteWithTools(ctx, messages, tools, llm.ToolChoiceAuto)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("Research completion failed, returning partial result",
				"event", req.Event, "iteration", i, "error", err)
			return r.finish(st, defaultSummary, models.ConfidenceLow), nil
		}

		if len(resp.ToolCalls) == 0 {
			break
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		searchedThisIteration := false
		for _, call := range resp.ToolCalls {
			switch call.Name {
			case toolFinishResearch:
				var args finishArgs
				if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
					messages = append(messages, toolResult(call, toolError{Error: fmt.Sprintf("invalid arguments: %v", err)}))
					continue
				}
				confidence := models.Confidence(args.Confidence)
				if !confidence.Valid() {
					confidence = models.ConfidenceLow
				}
				summary := args.Summary
				if summary == "" {
					summary = defaultSummary
				}
				return r.finish(st, summary, confidence), nil

			case toolSearch:
				result, ok := r.runSearch(ctx, call, st)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				searchedThisIteration = searchedThisIteration || ok
				messages = append(messages, result)

			default:
				messages = append(messages, toolResult(call, toolError{Error: fmt.Sprintf("unknown tool %q", call.Name)}))
			}
		}

		if len(st.sources) >= MinSources && i >= 2 && !searchedThisIteration {
			r.logger.Debug("Research terminating on no progress",
				"event", req.Event, "iteration", i, "sources", len(st.sources))
			break
		}
	}

	confidence := models.ConfidenceLow
	if len(st.sources) >= MinSources {
		confidence = models.ConfidenceMedium
	}
	return r.finish(st, defaultSummary, confidence), nil
}

// runSearch executes one search tool call and returns the tool result
// message plus whether a provider query was actually issued and succeeded.
func (r *Researcher) runSearch(ctx context.Context, call llm.ToolCall, st *loopState) (llm.Message, bool) {
	var args searchArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return toolResult(call, toolError{Error: fmt.Sprintf("invalid arguments: %v", err)}), false
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return toolResult(call, toolError{Error: "empty query"}), false
	}
	if _, dup := st.querySet[query]; dup {
		return toolResult(call, toolError{Error: "Duplicate query"}), false
	}
	st.querySet[query] = struct{}{}
	st.queries = append(st.queries, query)

	sources, err := r.searcher.Search(ctx, query)
	if err != nil {
		r.logger.Warn("Search failed inside research loop", "query", query, "error", err)
		return toolResult(call, toolError{Error: err.Error()}), false
	}

	fresh := make([]toolSource, 0, len(sources))
	for _, src := range sources {
		domain := hostname(src.URL)
		if domain != "" {
			if _, seen := st.seenDomains[domain]; seen {
				continue
			}
			st.seenDomains[domain] = struct{}{}
		}
		st.sources = append(st.sources, src)
		fresh = append(fresh, toolSource{Title: src.Title, URL: src.URL, Snippet: src.Snippet})
	}

	return toolResult(call, searchToolResult{
		Sources:              fresh,
		TotalSourcesGathered: len(st.sources),
	}), true
}

// finish assembles the result from the loop state.
func (r *Researcher) finish(st *loopState, summary string, confidence models.Confidence) *models.ResearchResult {
	return &models.ResearchResult{
		Sources:    st.sources,
		Summary:    summary,
		Confidence: confidence,
		Iterations: st.iterations,
		Queries:    st.queries,
	}
}

// toolResult encodes payload as the JSON response to a tool call.
func toolResult(call llm.ToolCall, payload any) llm.Message {
	content, err := json.Marshal(payload)
	if err != nil {
		content = []byte(`{"error":"internal encoding failure"}`)
	}
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    string(content),
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}

// hostname extracts the lowercased host from a source URL; empty when the
// URL does not parse.
func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
