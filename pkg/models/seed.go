package models

import "errors"

// Depth bounds for a single tree build. The configured value is authoritative;
// out-of-range requests are clamped rather than rejected.
const (
	MinDepth     = 1
	MaxDepth     = 5
	DefaultDepth = 3
)

// ErrEmptyEvent is returned when a seed has no event text.
var ErrEmptyEvent = errors.New("seed event must not be empty")

// SeedInput is the user-provided request that roots a tree.
type SeedInput struct {
	Event     string `json:"event" binding:"required"`
	Context   string `json:"context,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	MaxDepth  int    `json:"maxDepth,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

// Validate checks the seed's required fields.
func (s *SeedInput) Validate() error {
	if s.Event == "" {
		return ErrEmptyEvent
	}
	return nil
}

// Normalize applies defaults and clamps MaxDepth into [MinDepth, MaxDepth].
// A zero MaxDepth means "not provided" and takes the default.
func (s *SeedInput) Normalize() {
	if s.MaxDepth == 0 {
		s.MaxDepth = DefaultDepth
	}
	if s.MaxDepth < MinDepth {
		s.MaxDepth = MinDepth
	}
	if s.MaxDepth > MaxDepth {
		s.MaxDepth = MaxDepth
	}
}
