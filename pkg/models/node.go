// Package models defines the core data types shared across the tree
// generation pipeline: event nodes, sources, seed input, research results,
// and the probability math that keeps sibling cohorts normalized.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus is the lifecycle state of an EventNode.
// A node is created pending, claimed as processing by the scheduler, and
// ends in completed or failed. There are no transitions after a terminal state.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Source is a single web source backing a node's probability estimate.
// Equality is by normalized URL; the researcher deduplicates by hostname.
type Source struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevanceScore,omitempty"`
}

// MaxSourcesPerNode caps the sources attached to any single node.
const MaxSourcesPerNode = 5

// EventNode is a vertex in the probability tree.
type EventNode struct {
	ID            string           `json:"id"`
	Event         string           `json:"event"`
	Probability   float64          `json:"probability"`
	Justification string           `json:"justification"`
	Sentiment     int              `json:"sentiment"` // [-100, +100]
	Depth         int              `json:"depth"`
	Sources       []Source         `json:"sources"`
	Children      []*EventNode     `json:"children"`
	ParentID      string           `json:"parentId,omitempty"` // empty only for the root
	CreatedAt     time.Time        `json:"createdAt"`
	Status        ProcessingStatus `json:"processingStatus"`
}

// NewRootNode builds the root of a tree from a seed event.
// The root carries probability 1, sentiment 0, depth 0, status pending.
func NewRootNode(event string) *EventNode {
	return &EventNode{
		ID:            uuid.NewString(),
		Event:         event,
		Probability:   1.0,
		Justification: "Seed event provided by user",
		Sentiment:     0,
		Depth:         0,
		Sources:       []Source{},
		Children:      []*EventNode{},
		CreatedAt:     time.Now(),
		Status:        StatusPending,
	}
}

// Snapshot returns a deep copy of the node and its subtree.
// Events carry snapshots so consumers never observe later scheduler mutations.
func (n *EventNode) Snapshot() *EventNode {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Sources = make([]Source, len(n.Sources))
	copy(cp.Sources, n.Sources)
	cp.Children = make([]*EventNode, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = c.Snapshot()
	}
	return &cp
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func (n *EventNode) CountNodes() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.CountNodes()
	}
	return total
}
