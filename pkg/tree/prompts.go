package tree

import (
	"fmt"
	"strings"

	"github.com/seldon-labs/psychohistory/pkg/models"
)

// sourceSeparator visually splits sources in the research block handed to
// the synthesis model.
const sourceSeparator = "---"

// formatResearch renders a research result as the human-readable evidence
// block embedded in the synthesis prompt.
func formatResearch(res *models.ResearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research Summary (%s): %s\n", res.Confidence, res.Summary)

	if len(res.Queries) > 0 {
		b.WriteString("\nQueries executed:\n")
		for i, q := range res.Queries {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
		}
	}

	if len(res.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, src := range res.Sources {
			if i > 0 {
				b.WriteString(sourceSeparator + "\n")
			}
			fmt.Fprintf(&b, "%s\n%s\n%s\n", src.Title, src.URL, src.Snippet)
		}
	}

	return b.String()
}

// buildSynthesisPrompt renders the probability-synthesis prompt for one node.
// path holds the ancestor events from the root down to the node's parent.
func buildSynthesisPrompt(seed models.SeedInput, path []string, node *models.EventNode, researchText string) string {
	var b strings.Builder

	b.WriteString("You are a probabilistic forecaster. Given an event and supporting research, enumerate the most likely follow-on events and their probabilities.\n\n")

	if seed.Event != node.Event {
		fmt.Fprintf(&b, "SEED EVENT: %s\n", seed.Event)
	}
	if len(path) > 0 {
		b.WriteString("PATH SO FAR:\n")
		for i, step := range path {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
		}
	}
	fmt.Fprintf(&b, "CURRENT EVENT: %s\n", node.Event)
	fmt.Fprintf(&b, "DEPTH: %d of %d\n", node.Depth, seed.MaxDepth)
	if seed.Timeframe != "" {
		fmt.Fprintf(&b, "TIMEFRAME: %s\n", seed.Timeframe)
	}
	if seed.Context != "" {
		fmt.Fprintf(&b, "CONTEXT: %s\n", seed.Context)
	}

	b.WriteString("\nRESEARCH:\n")
	b.WriteString(researchText)

	fmt.Fprintf(&b, `
Based on the research above, enumerate between %d and %d plausible follow-on
events. Each event must be a specific, measurable outcome, not a vague trend.
Probabilities must sum to 1.

Respond with a strict JSON array and nothing else:
[{"event": "...", "probability": 0.0}, ...]`,
		models.MinOutcomes, models.MaxOutcomes)

	return b.String()
}
