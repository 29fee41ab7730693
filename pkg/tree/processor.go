package tree

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/seldon-labs/psychohistory/pkg/llm"
	"github.com/seldon-labs/psychohistory/pkg/models"
	"github.com/seldon-labs/psychohistory/pkg/research"
)

// Synthesis retry policy: schema failures retry with exponential backoff
// before the node degrades to fallback children.
const (
	synthesisMaxRetries  = 3
	synthesisBackoffBase = time.Second
)

// childJustification is attached to every synthesized child. The synthesis
// schema does not return per-child rationale.
const childJustification = "Based on historical research and analysis"

// fallbackSentiment is the sentiment of the pessimistic fallback branch.
const fallbackSentiment = -10

// Lookup resolves a node id against the scheduler's by-id map. It is
// read-only; pipelines use it to reconstruct ancestor paths.
type Lookup func(id string) (*models.EventNode, bool)

// Processor turns one node into its children. Implementations must not
// mutate the node; the scheduler owns all tree state.
type Processor interface {
	Process(ctx context.Context, node *models.EventNode, lookup Lookup) ([]*models.EventNode, error)
}

// Researcher is the Phase-1 contract, satisfied by *research.Researcher.
type Researcher interface {
	Research(ctx context.Context, req research.Request) (*models.ResearchResult, error)
}

// NodeProcessor is the two-phase per-node pipeline: agentic research, then
// probability synthesis. Either phase failing degrades the node to fallback
// children rather than failing the build.
type NodeProcessor struct {
	researcher Researcher
	llm        llm.Client
	seed       models.SeedInput
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error // injectable for backoff tests
}

// NewNodeProcessor creates a processor bound to one build's seed input.
func NewNodeProcessor(researcher Researcher, client llm.Client, seed models.SeedInput, logger *slog.Logger) *NodeProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeProcessor{
		researcher: researcher,
		llm:        client,
		seed:       seed,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Process implements Processor.
func (p *NodeProcessor) Process(ctx context.Context, node *models.EventNode, lookup Lookup) ([]*models.EventNode, error) {
	path := ancestorPath(node, lookup)

	res, err := p.researcher.Research(ctx, research.Request{
		Event:     node.Event,
		Path:      path,
		Context:   p.seed.Context,
		Timeframe: p.seed.Timeframe,
		Depth:     node.Depth,
		MaxDepth:  p.seed.MaxDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("research phase: %w", err)
	}
	if len(res.Sources) == 0 {
		p.logger.Warn("Research produced no sources, using fallback children",
			"node_id", node.ID, "event", node.Event)
		return FallbackChildren(node), nil
	}

	outcomes, err := p.synthesize(ctx, node, path, res)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("Synthesis failed, using fallback children",
			"node_id", node.ID, "event", node.Event, "error", err)
		return FallbackChildren(node), nil
	}

	sources := res.Sources
	if len(sources) > models.MaxSourcesPerNode {
		sources = sources[:models.MaxSourcesPerNode]
	}

	children := make([]*models.EventNode, 0, len(outcomes))
	for _, out := range outcomes {
		children = append(children, &models.EventNode{
			ID:            uuid.NewString(),
			Event:         out.Event,
			Probability:   out.Probability,
			Justification: childJustification,
			Sentiment:     0,
			Depth:         node.Depth + 1,
			Sources:       sources,
			Children:      []*models.EventNode{},
			ParentID:      node.ID,
			CreatedAt:     time.Now(),
			Status:        models.StatusPending,
		})
	}
	return children, nil
}

// synthesize runs Phase 2: prompt a reasoning completion for a strict JSON
// outcome array, retrying schema failures with exponential backoff.
func (p *NodeProcessor) synthesize(ctx context.Context, node *models.EventNode, path []string, res *models.ResearchResult) ([]models.ProbabilityOutput, error) {
	prompt := buildSynthesisPrompt(p.seed, path, node, formatResearch(res))

	var lastErr error
	for attempt := 0; attempt <= synthesisMaxRetries; attempt++ {
		if attempt > 0 {
			delay := synthesisBackoffBase << (attempt - 1)
			p.logger.Debug("Retrying probability synthesis",
				"node_id", node.ID, "attempt", attempt, "delay", delay, "error", lastErr)
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		var outcomes []models.ProbabilityOutput
		if err := p.llm.CompleteJSON(ctx, prompt, &outcomes); err != nil {
			lastErr = err
			continue
		}
		if err := models.ValidateOutcomes(outcomes); err != nil {
			lastErr = err
			continue
		}
		if err := models.NormalizeOutcomes(outcomes); err != nil {
			lastErr = err
			continue
		}
		return outcomes, nil
	}
	return nil, fmt.Errorf("synthesis failed after %d retries: %w", synthesisMaxRetries, lastErr)
}

// FallbackChildren produces the degenerate two-way split used when research
// finds nothing or synthesis cannot produce a valid distribution. Fallback
// nodes carry no justification and no sources, and remain pending so the
// next depth still expands them.
func FallbackChildren(parent *models.EventNode) []*models.EventNode {
	build := func(prefix string, sentiment int) *models.EventNode {
		return &models.EventNode{
			ID:          uuid.NewString(),
			Event:       fmt.Sprintf("%s: %s", prefix, parent.Event),
			Probability: 0.5,
			Sentiment:   sentiment,
			Depth:       parent.Depth + 1,
			Sources:     []models.Source{},
			Children:    []*models.EventNode{},
			ParentID:    parent.ID,
			CreatedAt:   time.Now(),
			Status:      models.StatusPending,
		}
	}
	return []*models.EventNode{
		build("status quo continues from", 0),
		build("unexpected development from", fallbackSentiment),
	}
}

// ancestorPath walks parent pointers from the node to the root and returns
// the ancestor events in root-first order. The node's own event is excluded.
func ancestorPath(node *models.EventNode, lookup Lookup) []string {
	var reversed []string
	id := node.ParentID
	for id != "" {
		parent, ok := lookup(id)
		if !ok {
			break
		}
		reversed = append(reversed, parent.Event)
		id = parent.ParentID
	}

	path := make([]string, len(reversed))
	for i, ev := range reversed {
		path[len(reversed)-1-i] = ev
	}
	return path
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
