package events

import "github.com/seldon-labs/psychohistory/pkg/models"

// TreeStartedPayload is the payload for tree_started events.
// Published once, before any other event, with a snapshot of the root.
type TreeStartedPayload struct {
	Seed *models.EventNode `json:"seed"`
}

// NodeProcessingPayload is the payload for node_processing events.
// Published when the scheduler claims a node, before its pipeline dispatches.
type NodeProcessingPayload struct {
	NodeID string `json:"nodeId"`
	Depth  int    `json:"depth"`
	Event  string `json:"event"`
}

// NodeCompletedPayload is the payload for node_completed events.
// Node and children are immutable snapshots taken at completion time.
type NodeCompletedPayload struct {
	Node     *models.EventNode   `json:"node"`
	Children []*models.EventNode `json:"children"`
}

// DepthCompletedPayload is the payload for depth_completed events.
// Published after a whole frontier drains, before the next depth starts.
type DepthCompletedPayload struct {
	Depth          int `json:"depth"`
	NodesProcessed int `json:"nodesProcessed"`
}

// TreeCompletedPayload is the payload for the terminal tree_completed event.
type TreeCompletedPayload struct {
	TotalNodes int   `json:"totalNodes"`
	Duration   int64 `json:"duration"` // milliseconds
}

// ErrorPayload is the payload for error events. NodeID is set for per-node
// pipeline failures and empty for scheduler-level fatals.
type ErrorPayload struct {
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// Constructors keep the type tag and payload shape in one place.

func TreeStarted(seed *models.EventNode) Envelope {
	return Envelope{Type: TypeTreeStarted, Data: TreeStartedPayload{Seed: seed}}
}

func NodeProcessing(n *models.EventNode) Envelope {
	return Envelope{Type: TypeNodeProcessing, Data: NodeProcessingPayload{
		NodeID: n.ID,
		Depth:  n.Depth,
		Event:  n.Event,
	}}
}

func NodeCompleted(node *models.EventNode, children []*models.EventNode) Envelope {
	return Envelope{Type: TypeNodeCompleted, Data: NodeCompletedPayload{
		Node:     node,
		Children: children,
	}}
}

func DepthCompleted(depth, nodesProcessed int) Envelope {
	return Envelope{Type: TypeDepthCompleted, Data: DepthCompletedPayload{
		Depth:          depth,
		NodesProcessed: nodesProcessed,
	}}
}

func TreeCompleted(totalNodes int, durationMillis int64) Envelope {
	return Envelope{Type: TypeTreeCompleted, Data: TreeCompletedPayload{
		TotalNodes: totalNodes,
		Duration:   durationMillis,
	}}
}

func Error(message, nodeID string) Envelope {
	return Envelope{Type: TypeError, Data: ErrorPayload{Message: message, NodeID: nodeID}}
}
