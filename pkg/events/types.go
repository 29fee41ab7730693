// Package events defines the tree stream event union and the sink the
// scheduler emits into.
//
// Every event on the wire is an Envelope{type, data} record. The scheduler
// is the only producer; the stream endpoint drains the sink into the HTTP
// response. Ordering guarantees (tree_started first, per-node
// processing-before-completed, depth barriers, terminal tree_completed or
// error) are established by the scheduler, not by the sink.
package events

// Event type discriminators for the Envelope.Type field.
const (
	TypeTreeStarted    = "tree_started"
	TypeNodeProcessing = "node_processing"
	TypeNodeCompleted  = "node_completed"
	TypeDepthCompleted = "depth_completed"
	TypeTreeCompleted  = "tree_completed"
	TypeError          = "error"
)

// Envelope is the wire shape of every stream record: a tag plus a
// type-specific payload (see payloads.go).
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
