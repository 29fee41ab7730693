package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seldon-labs/psychohistory/pkg/llm"
	"github.com/seldon-labs/psychohistory/pkg/models"
)

// fakeSearcher maps queries to fixed results.
type fakeSearcher struct {
	results map[string][]models.Source
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]models.Source, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

func searchCall(id, query string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: toolSearch, Arguments: fmt.Sprintf(`{"query": %q}`, query)}
}

func finishCall(id, summary, confidence string) llm.ToolCall {
	return llm.ToolCall{
		ID:        id,
		Name:      toolFinishResearch,
		Arguments: fmt.Sprintf(`{"summary": %q, "confidence": %q}`, summary, confidence),
	}
}

func threeSources(host string) []models.Source {
	out := make([]models.Source, 3)
	for i := range out {
		out[i] = models.Source{
			URL:   fmt.Sprintf("https://%s%d.example.com/a", host, i),
			Title: fmt.Sprintf("%s %d", host, i),
		}
	}
	return out
}

func newTestResearcher(script []llm.ScriptEntry, searcher *fakeSearcher) (*Researcher, *llm.ScriptedClient) {
	client := &llm.ScriptedClient{Script: script}
	return NewResearcher(client, searcher, nil), client
}

func TestResearchFinishToolTerminates(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.Source{
		"q1": threeSources("alpha"),
	}}
	r, client := newTestResearcher([]llm.ScriptEntry{
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c1", "q1")}}},
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{finishCall("c2", "found enough", "high")}}},
	}, searcher)

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)
	assert.Equal(t, "found enough", res.Summary)
	assert.Equal(t, models.ConfidenceHigh, res.Confidence)
	assert.Len(t, res.Sources, 3)
	assert.Equal(t, []string{"q1"}, res.Queries)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, client.Calls())
}

func TestResearchDuplicateQuerySuppressed(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.Source{
		"q1": threeSources("alpha"),
	}}
	r, client := newTestResearcher([]llm.ScriptEntry{
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{
			searchCall("c1", "q1"),
			searchCall("c2", "q1"),
		}}},
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c3", "q1")}}},
	}, searcher)

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)

	// The provider saw the query exactly once.
	assert.Equal(t, []string{"q1"}, searcher.queries)
	assert.Equal(t, []string{"q1"}, res.Queries)

	// The duplicate call got the canned error response.
	require.GreaterOrEqual(t, len(client.History), 2)
	secondConversation := client.History[1]
	var dupResponse string
	for _, msg := range secondConversation {
		if msg.ToolCallID == "c2" {
			dupResponse = msg.Content
		}
	}
	assert.JSONEq(t, `{"error": "Duplicate query"}`, dupResponse)

	// Iteration 2 issued no successful search with >= 3 sources gathered,
	// so the loop stopped without a third completion.
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, models.ConfidenceMedium, res.Confidence)
	assert.Equal(t, defaultSummary, res.Summary)
}

func TestResearchDomainDeduplication(t *testing.T) {
	shared := models.Source{URL: "https://shared.example.com/a", Title: "shared"}
	searcher := &fakeSearcher{results: map[string][]models.Source{
		"q1": {shared, {URL: "https://one.example.com/a"}},
		"q2": {{URL: "https://SHARED.example.com/b"}, {URL: "https://two.example.com/a"}},
	}}
	r, _ := newTestResearcher([]llm.ScriptEntry{
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c1", "q1")}}},
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c2", "q2")}}},
		{Message: &llm.AssistantMessage{}}, // natural termination
	}, searcher)

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)

	// The second query's shared-host source was filtered out.
	require.Len(t, res.Sources, 3)
	urls := []string{res.Sources[0].URL, res.Sources[1].URL, res.Sources[2].URL}
	assert.Equal(t, []string{
		"https://shared.example.com/a",
		"https://one.example.com/a",
		"https://two.example.com/a",
	}, urls)
	assert.Equal(t, models.ConfidenceMedium, res.Confidence)
}

func TestResearchNaturalTerminationWithoutSources(t *testing.T) {
	r, _ := newTestResearcher([]llm.ScriptEntry{
		{Message: &llm.AssistantMessage{Content: "I cannot research this."}},
	}, &fakeSearcher{})

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
	assert.Equal(t, defaultSummary, res.Summary)
	assert.Equal(t, 1, res.Iterations)
}

func TestResearchIterationCap(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.Source{}}
	script := make([]llm.ScriptEntry, 0, MaxIterations+1)
	for i := 0; i <= MaxIterations; i++ {
		script = append(script, llm.ScriptEntry{Message: &llm.AssistantMessage{
			ToolCalls: []llm.ToolCall{searchCall(fmt.Sprintf("c%d", i), fmt.Sprintf("q%d", i))},
		}})
	}
	r, client := newTestResearcher(script, searcher)

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)
	assert.Equal(t, MaxIterations, res.Iterations)
	assert.Equal(t, MaxIterations, client.Calls())
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
}

func TestResearchWallClockBudget(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.Source{
		"q1": threeSources("alpha"),
	}}
	r, client := newTestResearcher([]llm.ScriptEntry{
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c1", "q1")}}},
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c2", "q2")}}},
	}, searcher)

	// Each clock read advances well past the budget after the first iteration.
	base := time.Now()
	reads := 0
	r.now = func() time.Time {
		reads++
		if reads <= 2 {
			return base
		}
		return base.Add(SearchTimeout + time.Second)
	}

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.Calls())
	assert.Len(t, res.Sources, 3)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
}

func TestResearchCompletionFailureReturnsPartial(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.Source{
		"q1": threeSources("alpha"),
	}}
	r, _ := newTestResearcher([]llm.ScriptEntry{
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c1", "q1")}}},
		{Err: errors.New("upstream 503")},
	}, searcher)

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)
	assert.Len(t, res.Sources, 3)
	assert.Equal(t, models.ConfidenceLow, res.Confidence)
}

func TestResearchSearchFailureReportedToModel(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("provider down")}
	r, client := newTestResearcher([]llm.ScriptEntry{
		{Message: &llm.AssistantMessage{ToolCalls: []llm.ToolCall{searchCall("c1", "q1")}}},
		{Message: &llm.AssistantMessage{}},
	}, searcher)

	res, err := r.Research(context.Background(), Request{Event: "seed event"})
	require.NoError(t, err)
	assert.Empty(t, res.Sources)

	secondConversation := client.History[1]
	last := secondConversation[len(secondConversation)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(last.Content), &payload))
	assert.Contains(t, payload["error"], "provider down")
}

func TestResearchCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestResearcher([]llm.ScriptEntry{
		{Err: context.Canceled},
	}, &fakeSearcher{})

	_, err := r.Research(ctx, Request{Event: "seed event"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResearchPromptContainsContext(t *testing.T) {
	prompt := buildResearchPrompt(Request{
		Event:     "regional conflict escalates",
		Path:      []string{"initial incident", "sanctions imposed"},
		Context:   "focus on energy markets",
		Timeframe: "12 months",
		Depth:     2,
		MaxDepth:  3,
	})

	assert.Contains(t, prompt, "regional conflict escalates")
	assert.Contains(t, prompt, "1. initial incident")
	assert.Contains(t, prompt, "2. sanctions imposed")
	assert.Contains(t, prompt, "focus on energy markets")
	assert.Contains(t, prompt, "12 months")
	assert.Contains(t, prompt, "finish_research")
}
