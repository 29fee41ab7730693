package research

import (
	"fmt"
	"strings"
)

const researchSystemPrompt = `You are a research analyst gathering evidence about how a real-world event might unfold. You work iteratively: issue focused web searches, study what comes back, and refine your queries until you have a diverse, credible evidence base.`

// buildResearchPrompt renders the task prompt that opens the research
// conversation. It states the event under analysis, the causal path that led
// to it, and the evidence categories the model should cover.
func buildResearchPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research the following event to support probability forecasting:\n\n")
	fmt.Fprintf(&b, "EVENT: %s\n", req.Event)

	if len(req.Path) > 0 {
		b.WriteString("\nThis event sits at the end of a causal chain:\n")
		for i, step := range req.Path {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "\nADDITIONAL CONTEXT: %s\n", req.Context)
	}
	if req.Timeframe != "" {
		fmt.Fprintf(&b, "TIMEFRAME: %s\n", req.Timeframe)
	}
	fmt.Fprintf(&b, "ANALYSIS DEPTH: level %d of %d\n", req.Depth, req.MaxDepth)

	b.WriteString(`
Gather 3 to 5 diverse, credible sources covering:
- Historical precedent: how similar situations have played out before
- Causal mechanisms: the forces that would drive or block this event
- Predictions: what experts and forecasters currently expect
- Counter-evidence: arguments that the expected outcome will not happen

Use the search tool with focused queries, one angle at a time. Do not repeat
a query you have already run. When your evidence base is sufficient, call
finish_research with a summary of findings and your confidence level.`)

	return b.String()
}
