package config

// LLMProvider selects the completion backend.
type LLMProvider string

const (
	// LLMProviderOpenAI uses the OpenAI chat completions API.
	LLMProviderOpenAI LLMProvider = "openai"
	// LLMProviderAnthropic uses the Anthropic messages API.
	LLMProviderAnthropic LLMProvider = "anthropic"
)

// IsValid checks if the LLM provider is valid
func (p LLMProvider) IsValid() bool {
	return p == LLMProviderOpenAI || p == LLMProviderAnthropic
}

// SearchProvider selects the web search backend.
type SearchProvider string

const (
	// SearchProviderMock returns deterministic synthetic sources; the only
	// provider guaranteed to work without network access.
	SearchProviderMock SearchProvider = "mock"
	// SearchProviderBrave uses the Brave Search API.
	SearchProviderBrave SearchProvider = "brave"
	// SearchProviderSerper uses the Serper Google-results API.
	SearchProviderSerper SearchProvider = "serper"
)

// IsValid checks if the search provider is valid
func (p SearchProvider) IsValid() bool {
	switch p {
	case SearchProviderMock, SearchProviderBrave, SearchProviderSerper:
		return true
	default:
		return false
	}
}
