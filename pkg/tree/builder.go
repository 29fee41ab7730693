// Package tree contains the scheduler that grows a probability tree from a
// seed event and the per-node pipeline that produces each node's children.
package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seldon-labs/psychohistory/pkg/events"
	"github.com/seldon-labs/psychohistory/pkg/models"
)

// DefaultMaxConcurrent bounds how many node pipelines run in parallel
// within one batch.
const DefaultMaxConcurrent = 20

// ErrSinkClosed aborts a build whose event sink stopped accepting events.
// In-flight pipelines are allowed to finish; their results are discarded.
var ErrSinkClosed = errors.New("event sink closed")

// Metrics is the subset of pipeline metrics the scheduler reports into.
// A nil Metrics records nothing.
type Metrics interface {
	PipelineStarted()
	PipelineFinished()
	NodeCompleted(d time.Duration)
	NodeFailed(d time.Duration)
}

// Config bounds one build.
type Config struct {
	MaxDepth      int // default for seeds that omit maxDepth; clamped to [models.MinDepth, models.MaxDepth]
	MaxConcurrent int // defaults to DefaultMaxConcurrent
}

// Builder grows a tree one depth level at a time. It solely owns the tree
// for the lifetime of a build: pipelines receive node snapshots and return
// children, and the builder installs every mutation between batches.
type Builder struct {
	processor Processor
	cfg       Config
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time

	nodes map[string]*models.EventNode
}

// NewBuilder creates a Builder. A nil logger falls back to the default.
func NewBuilder(processor Processor, cfg Config, metrics Metrics, logger *slog.Logger) *Builder {
	if cfg.MaxDepth < models.MinDepth {
		cfg.MaxDepth = models.DefaultDepth
	}
	if cfg.MaxDepth > models.MaxDepth {
		cfg.MaxDepth = models.MaxDepth
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		processor: processor,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		nodes:     make(map[string]*models.EventNode),
	}
}

// pipelineResult carries one node's outcome back across the batch barrier.
type pipelineResult struct {
	children []*models.EventNode
	err      error
	took     time.Duration
}

// Build runs depth-synchronous wave scheduling: process every pending node
// at the current depth in batches of at most MaxConcurrent, wait for the
// whole frontier, then advance. Returns the fully populated root.
func (b *Builder) Build(ctx context.Context, seed models.SeedInput, sink events.Sink) (*models.EventNode, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	// The seed's requested depth wins; the configured depth only fills in
	// for seeds that omit it.
	if seed.MaxDepth == 0 {
		seed.MaxDepth = b.cfg.MaxDepth
	}
	seed.Normalize()
	b.cfg.MaxDepth = seed.MaxDepth

	start := b.now()
	root := models.NewRootNode(seed.Event)
	b.nodes[root.ID] = root

	b.logger.Info("Starting tree build",
		"root_id", root.ID, "event", seed.Event,
		"max_depth", b.cfg.MaxDepth, "max_concurrent", b.cfg.MaxConcurrent)

	if !sink.Send(events.TreeStarted(root.Snapshot())) {
		return nil, ErrSinkClosed
	}

	for depth := 0; depth < b.cfg.MaxDepth; depth++ {
		frontier := b.frontier(depth)
		if len(frontier) == 0 {
			continue
		}
		if err := b.processFrontier(ctx, frontier, sink); err != nil {
			return nil, err
		}
		if !sink.Send(events.DepthCompleted(depth, len(frontier))) {
			return nil, ErrSinkClosed
		}
		b.logger.Info("Depth completed", "depth", depth, "nodes_processed", len(frontier))
	}

	duration := b.now().Sub(start)
	total := root.CountNodes()
	if !sink.Send(events.TreeCompleted(total, duration.Milliseconds())) {
		return nil, ErrSinkClosed
	}
	b.logger.Info("Tree build completed", "total_nodes", total, "duration", duration)
	return root, nil
}

// frontier collects the pending nodes at a depth, in registration order of
// their parents (map iteration order is not relied on across siblings).
func (b *Builder) frontier(depth int) []*models.EventNode {
	if depth == 0 {
		for _, n := range b.nodes {
			if n.Depth == 0 && n.Status == models.StatusPending {
				return []*models.EventNode{n}
			}
		}
		return nil
	}

	var out []*models.EventNode
	b.walk(func(n *models.EventNode) {
		if n.Depth == depth && n.Status == models.StatusPending {
			out = append(out, n)
		}
	})
	return out
}

// walk visits every node depth-first from the root.
func (b *Builder) walk(visit func(*models.EventNode)) {
	var root *models.EventNode
	for _, n := range b.nodes {
		if n.ParentID == "" {
			root = n
			break
		}
	}
	var rec func(*models.EventNode)
	rec = func(n *models.EventNode) {
		visit(n)
		for _, c := range n.Children {
			rec(c)
		}
	}
	if root != nil {
		rec(root)
	}
}

// processFrontier drains one depth level in batches. A pipeline failure is
// isolated to its node; only cancellation or a closed sink aborts the build.
func (b *Builder) processFrontier(ctx context.Context, frontier []*models.EventNode, sink events.Sink) error {
	for batchStart := 0; batchStart < len(frontier); batchStart += b.cfg.MaxConcurrent {
		batchEnd := min(batchStart+b.cfg.MaxConcurrent, len(frontier))
		batch := frontier[batchStart:batchEnd]

		for _, node := range batch {
			node.Status = models.StatusProcessing
			if !sink.Send(events.NodeProcessing(node)) {
				return ErrSinkClosed
			}
		}

		results := make([]pipelineResult, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, node := range batch {
			snapshot := node.Snapshot()
			g.Go(func() error {
				if b.metrics != nil {
					b.metrics.PipelineStarted()
					defer b.metrics.PipelineFinished()
				}
				began := b.now()
				children, err := b.processor.Process(gctx, snapshot, b.lookup)
				results[i] = pipelineResult{children: children, err: err, took: b.now().Sub(began)}
				if err != nil && gctx.Err() != nil {
					// Cancellation aborts the whole batch; ordinary
					// pipeline failures stay isolated to their node.
					return gctx.Err()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("tree build aborted: %w", err)
		}

		for i, node := range batch {
			res := results[i]
			if res.err != nil {
				node.Status = models.StatusFailed
				if b.metrics != nil {
					b.metrics.NodeFailed(res.took)
				}
				b.logger.Error("Node pipeline failed",
					"node_id", node.ID, "depth", node.Depth, "error", res.err)
				if !sink.Send(events.Error(res.err.Error(), node.ID)) {
					return ErrSinkClosed
				}
				continue
			}

			node.Children = res.children
			node.Status = models.StatusCompleted
			snapshots := make([]*models.EventNode, len(res.children))
			for j, c := range res.children {
				b.nodes[c.ID] = c
				snapshots[j] = c.Snapshot()
			}
			if b.metrics != nil {
				b.metrics.NodeCompleted(res.took)
			}
			if !sink.Send(events.NodeCompleted(node.Snapshot(), snapshots)) {
				return ErrSinkClosed
			}
		}
	}
	return nil
}

// lookup implements Lookup against the by-id map. Pipelines only call it
// between the barriers that guard map mutation, so no locking is needed.
func (b *Builder) lookup(id string) (*models.EventNode, bool) {
	n, ok := b.nodes[id]
	return n, ok
}
