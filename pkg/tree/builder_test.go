package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seldon-labs/psychohistory/pkg/events"
	"github.com/seldon-labs/psychohistory/pkg/models"
)

// processorFunc adapts a function to the Processor interface.
type processorFunc func(ctx context.Context, node *models.EventNode, lookup Lookup) ([]*models.EventNode, error)

func (f processorFunc) Process(ctx context.Context, node *models.EventNode, lookup Lookup) ([]*models.EventNode, error) {
	return f(ctx, node, lookup)
}

// fanout returns a processor producing n children per node with equal probability.
func fanout(n int) processorFunc {
	return func(_ context.Context, node *models.EventNode, _ Lookup) ([]*models.EventNode, error) {
		children := make([]*models.EventNode, n)
		for i := range children {
			children[i] = &models.EventNode{
				ID:            uuid.NewString(),
				Event:         fmt.Sprintf("%s / outcome %d", node.Event, i),
				Probability:   1.0 / float64(n),
				Justification: "test",
				Depth:         node.Depth + 1,
				Sources:       []models.Source{},
				Children:      []*models.EventNode{},
				ParentID:      node.ID,
				CreatedAt:     time.Now(),
				Status:        models.StatusPending,
			}
		}
		return children, nil
	}
}

func buildTree(t *testing.T, processor Processor, cfg Config, seed models.SeedInput) (*models.EventNode, []events.Envelope) {
	t.Helper()
	sink := events.NewCollectorSink()
	b := NewBuilder(processor, cfg, nil, nil)
	root, err := b.Build(context.Background(), seed, sink)
	require.NoError(t, err)
	return root, sink.Events()
}

func eventTypes(evs []events.Envelope) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

func TestBuildDepthOne(t *testing.T) {
	root, evs := buildTree(t, fanout(2), Config{MaxDepth: 1},
		models.SeedInput{Event: "seed", MaxDepth: 1})

	assert.Equal(t, models.StatusCompleted, root.Status)
	require.Len(t, root.Children, 2)
	for _, c := range root.Children {
		assert.Equal(t, models.StatusPending, c.Status)
		assert.Equal(t, 1, c.Depth)
		assert.Equal(t, root.ID, c.ParentID)
	}

	assert.Equal(t, []string{
		"tree_started", "node_processing", "node_completed", "depth_completed", "tree_completed",
	}, eventTypes(evs))

	completed := evs[len(evs)-1].Data.(events.TreeCompletedPayload)
	assert.Equal(t, 3, completed.TotalNodes)
}

func TestBuildDepthTwoShape(t *testing.T) {
	root, evs := buildTree(t, fanout(3), Config{MaxDepth: 2, MaxConcurrent: 2},
		models.SeedInput{Event: "seed", MaxDepth: 2})

	require.Len(t, root.Children, 3)
	total := 1 + 3
	for _, c := range root.Children {
		assert.Equal(t, models.StatusCompleted, c.Status)
		require.Len(t, c.Children, 3)
		total += 3
		for _, gc := range c.Children {
			assert.Equal(t, models.StatusPending, gc.Status)
			assert.Equal(t, 2, gc.Depth)
		}
	}
	assert.Equal(t, total, root.CountNodes())

	// Sibling probabilities stay within tolerance at every populated node.
	var checkSums func(n *models.EventNode)
	checkSums = func(n *models.EventNode) {
		if len(n.Children) == 0 {
			return
		}
		sum := 0.0
		for _, c := range n.Children {
			sum += c.Probability
			checkSums(c)
		}
		assert.InDelta(t, 1.0, sum, models.SiblingSumTolerance)
	}
	checkSums(root)

	last := evs[len(evs)-1].Data.(events.TreeCompletedPayload)
	assert.Equal(t, root.CountNodes(), last.TotalNodes)
}

func TestBuildEventOrdering(t *testing.T) {
	_, evs := buildTree(t, fanout(2), Config{MaxDepth: 2},
		models.SeedInput{Event: "seed", MaxDepth: 2})

	require.Equal(t, "tree_started", evs[0].Type)
	require.Equal(t, "tree_completed", evs[len(evs)-1].Type)

	// Per node: node_processing precedes its node_completed, and a node's
	// node_completed precedes any of its children's node_processing.
	processingAt := map[string]int{}
	completedAt := map[string]int{}
	parentOf := map[string]string{}
	for i, ev := range evs {
		switch ev.Type {
		case events.TypeNodeProcessing:
			processingAt[ev.Data.(events.NodeProcessingPayload).NodeID] = i
		case events.TypeNodeCompleted:
			payload := ev.Data.(events.NodeCompletedPayload)
			completedAt[payload.Node.ID] = i
			for _, c := range payload.Children {
				parentOf[c.ID] = payload.Node.ID
			}
		}
	}
	for id, pi := range processingAt {
		if ci, ok := completedAt[id]; ok {
			assert.Less(t, pi, ci, "node %s completed before processing", id)
		}
		if parent, ok := parentOf[id]; ok {
			assert.Less(t, completedAt[parent], pi,
				"child %s started before parent %s completed", id, parent)
		}
	}

	// depth_completed(d) follows every completion at depth d and precedes
	// any processing at depth d+1.
	depthCompletedAt := map[int]int{}
	for i, ev := range evs {
		if ev.Type == events.TypeDepthCompleted {
			depthCompletedAt[ev.Data.(events.DepthCompletedPayload).Depth] = i
		}
	}
	for i, ev := range evs {
		if ev.Type == events.TypeNodeProcessing {
			depth := ev.Data.(events.NodeProcessingPayload).Depth
			if barrier, ok := depthCompletedAt[depth-1]; ok {
				assert.Greater(t, i, barrier)
			}
		}
	}
}

func TestBuildFailedNodeIsIsolated(t *testing.T) {
	var mu sync.Mutex
	var failedID string
	processor := processorFunc(func(ctx context.Context, node *models.EventNode, lookup Lookup) ([]*models.EventNode, error) {
		mu.Lock()
		fail := node.Depth == 1 && failedID == ""
		if fail {
			failedID = node.ID
		}
		mu.Unlock()
		if fail {
			return nil, errors.New("research blew up")
		}
		return fanout(2)(ctx, node, lookup)
	})

	root, evs := buildTree(t, processor, Config{MaxDepth: 3},
		models.SeedInput{Event: "seed", MaxDepth: 3})

	var failed *models.EventNode
	for _, c := range root.Children {
		if c.ID == failedID {
			failed = c
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Empty(t, failed.Children)

	// The sibling still completed and the build ran to the end.
	completed := 0
	for _, c := range root.Children {
		if c.Status == models.StatusCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, "tree_completed", evs[len(evs)-1].Type)

	errEvents := 0
	for _, ev := range evs {
		if ev.Type == events.TypeError {
			errEvents++
			assert.Equal(t, failedID, ev.Data.(events.ErrorPayload).NodeID)
		}
	}
	assert.Equal(t, 1, errEvents)
}

func TestBuildRespectsBatchLimit(t *testing.T) {
	var mu sync.Mutex
	inflight, peak := 0, 0
	processor := processorFunc(func(ctx context.Context, node *models.EventNode, lookup Lookup) ([]*models.EventNode, error) {
		mu.Lock()
		inflight++
		if inflight > peak {
			peak = inflight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		return fanout(5)(ctx, node, lookup)
	})

	buildTree(t, processor, Config{MaxDepth: 2, MaxConcurrent: 2},
		models.SeedInput{Event: "seed", MaxDepth: 2})
	assert.LessOrEqual(t, peak, 2)
	assert.Greater(t, peak, 0)
}

func TestBuildClosedSinkAborts(t *testing.T) {
	sink := events.NewCollectorSink()
	sink.Close()

	b := NewBuilder(fanout(2), Config{MaxDepth: 1}, nil, nil)
	_, err := b.Build(context.Background(), models.SeedInput{Event: "seed", MaxDepth: 1}, sink)
	assert.ErrorIs(t, err, ErrSinkClosed)
}

func TestBuildEmptyEventRejected(t *testing.T) {
	b := NewBuilder(fanout(2), Config{MaxDepth: 1}, nil, nil)
	_, err := b.Build(context.Background(), models.SeedInput{}, events.NewCollectorSink())
	assert.ErrorIs(t, err, models.ErrEmptyEvent)
}

func TestBuildCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	processor := processorFunc(func(ctx context.Context, node *models.EventNode, lookup Lookup) ([]*models.EventNode, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	b := NewBuilder(processor, Config{MaxDepth: 2}, nil, nil)
	_, err := b.Build(ctx, models.SeedInput{Event: "seed", MaxDepth: 2}, events.NewCollectorSink())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildSeedDepthCapsConfig(t *testing.T) {
	root, _ := buildTree(t, fanout(2), Config{MaxDepth: 5},
		models.SeedInput{Event: "seed", MaxDepth: 1})

	// Children exist at depth 1 but were never processed.
	require.Len(t, root.Children, 2)
	for _, c := range root.Children {
		assert.Empty(t, c.Children)
		assert.Equal(t, models.StatusPending, c.Status)
	}
}

// chainDepth follows single-child chains to the deepest populated level.
func chainDepth(root *models.EventNode) int {
	depth := 0
	for n := root; len(n.Children) > 0; n = n.Children[0] {
		depth++
	}
	return depth
}

func TestBuildSeedDepthExceedsConfig(t *testing.T) {
	// A request for depth 5 must not be truncated to the configured
	// default; the seed's depth wins.
	root, _ := buildTree(t, fanout(1), Config{MaxDepth: models.DefaultDepth},
		models.SeedInput{Event: "seed", MaxDepth: 5})
	assert.Equal(t, 5, chainDepth(root))
}

func TestBuildOmittedSeedDepthUsesConfig(t *testing.T) {
	root, _ := buildTree(t, fanout(1), Config{MaxDepth: 2},
		models.SeedInput{Event: "seed"})
	assert.Equal(t, 2, chainDepth(root))
}
