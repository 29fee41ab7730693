package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/seldon-labs/psychohistory/pkg/models"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// maxResultsPerQuery bounds the sources returned for a single query.
const maxResultsPerQuery = 5

// BraveProvider calls the Brave Search web API.
type BraveProvider struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
}

// NewBraveProvider creates a Brave-backed provider.
func NewBraveProvider(apiKey string) *BraveProvider {
	return &BraveProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		endpoint:   braveEndpoint,
	}
}

// Name implements Provider.
func (p *BraveProvider) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements Provider.
func (p *BraveProvider) Search(ctx context.Context, query string) ([]models.Source, error) {
	u := fmt.Sprintf("%s?q=%s&count=%d", p.endpoint, url.QueryEscape(query), maxResultsPerQuery)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: p.Name(), Code: resp.StatusCode}
	}

	var body braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}

	sources := make([]models.Source, 0, len(body.Web.Results))
	for _, r := range body.Web.Results {
		sources = append(sources, models.Source{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Description,
		})
	}
	return sources, nil
}
