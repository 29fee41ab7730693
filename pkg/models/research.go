package models

// Confidence is the researcher's self-reported confidence in its findings.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is one of the three recognized levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// ResearchResult is the outcome of one agentic research invocation.
type ResearchResult struct {
	Sources    []Source   `json:"sources"`
	Summary    string     `json:"summary"`
	Confidence Confidence `json:"confidence"`
	Iterations int        `json:"iterations"`
	Queries    []string   `json:"queries"`
}
