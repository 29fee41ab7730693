package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seldon-labs/psychohistory/pkg/events"
	"github.com/seldon-labs/psychohistory/pkg/models"
	"github.com/seldon-labs/psychohistory/pkg/tree"
)

// generateTreeStream handles POST /generate-tree/stream.
// It validates the seed, runs the tree builder in the background, and
// streams every scheduler event to the client as a `data: <json>` record.
// A client disconnect closes the sink; the builder's later emissions are
// dropped and its upstream calls are cancelled through the request context.
func (s *Server) generateTreeStream(c *gin.Context) {
	var seed models.SeedInput
	if err := c.ShouldBindJSON(&seed); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if err := seed.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := events.NewChannelSink(0)
	builder := s.newBuilder(seed)

	go func() {
		defer sink.Close()
		if _, err := builder.Build(ctx, seed, sink); err != nil && !errors.Is(err, tree.ErrSinkClosed) {
			s.logger.Error("Tree build failed", "event", seed.Event, "error", err)
			sink.Send(events.Error(err.Error(), ""))
		}
	}()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case ev := <-sink.C:
			s.writeEvent(c, flusher, ev)
		case <-clientGone:
			// Stops the builder from blocking on a dead stream.
			sink.Close()
			return
		case <-sink.Done():
			s.drainRemaining(c, flusher, sink)
			return
		}
	}
}

// drainRemaining flushes events that were buffered before the sink closed.
func (s *Server) drainRemaining(c *gin.Context, flusher http.Flusher, sink *events.ChannelSink) {
	for {
		select {
		case ev := <-sink.C:
			s.writeEvent(c, flusher, ev)
		default:
			return
		}
	}
}

// writeEvent serializes one envelope as a stream record and flushes it.
func (s *Server) writeEvent(c *gin.Context, flusher http.Flusher, ev events.Envelope) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("Failed to serialize stream event", "type", ev.Type, "error", err)
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	flusher.Flush()
}
