package search

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/seldon-labs/psychohistory/pkg/models"
)

// MockProvider returns three deterministic synthetic sources per query for
// offline development and testing. Hostnames are derived from the query so
// distinct queries contribute distinct domains and the researcher's domain
// diversity filter behaves as it would against a real provider.
type MockProvider struct{}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider { return &MockProvider{} }

// Name implements Provider.
func (p *MockProvider) Name() string { return "mock" }

// Search implements Provider.
func (p *MockProvider) Search(_ context.Context, query string) ([]models.Source, error) {
	h := fnv.New32a()
	h.Write([]byte(query))
	tag := fmt.Sprintf("%08x", h.Sum32())

	kinds := []struct {
		role    string
		snippet string
	}{
		{"analysis", "Historical analysis and base rates relevant to the query."},
		{"report", "Recent reporting on current developments and causal drivers."},
		{"forecast", "Expert predictions and counter-arguments for the scenario."},
	}

	sources := make([]models.Source, 0, len(kinds))
	for i, k := range kinds {
		sources = append(sources, models.Source{
			URL:            fmt.Sprintf("https://%s-%s.example.com/articles/%d", k.role, tag, i+1),
			Title:          fmt.Sprintf("Mock %s for %q", k.role, query),
			Snippet:        k.snippet,
			RelevanceScore: 0.9 - 0.1*float64(i),
		})
	}
	return sources, nil
}
