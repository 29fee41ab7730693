package research

import "github.com/seldon-labs/psychohistory/pkg/llm"

// Tool names exposed to the model.
const (
	toolSearch         = "search"
	toolFinishResearch = "finish_research"
)

// searchArgs is the decoded argument payload of a search tool call.
type searchArgs struct {
	Query string `json:"query"`
}

// finishArgs is the decoded argument payload of a finish_research tool call.
type finishArgs struct {
	Summary    string `json:"summary"`
	Confidence string `json:"confidence"`
}

// searchToolResult is the JSON response returned to a successful search call.
type searchToolResult struct {
	Sources              []toolSource `json:"sources"`
	TotalSourcesGathered int          `json:"total_sources_gathered"`
}

// toolSource is the trimmed source shape shown to the model.
type toolSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// toolError is the JSON error response to a rejected or failed tool call.
type toolError struct {
	Error string `json:"error"`
}

// researchTools returns the machine-consumable tool schema advertised to the
// model on every iteration.
func researchTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        toolSearch,
			Description: "Execute a web search and return relevant sources. Use focused queries; avoid repeating a query you already ran.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query to execute",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolFinishResearch,
			Description: "Signal that research is complete. Provide a summary of findings and your confidence in them.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{
						"type":        "string",
						"description": "Summary of the research findings",
					},
					"confidence": map[string]any{
						"type":        "string",
						"enum":        []string{"low", "medium", "high"},
						"description": "Confidence in the gathered evidence",
					},
				},
				"required": []string{"summary", "confidence"},
			},
		},
	}
}
