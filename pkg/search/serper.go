package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/seldon-labs/psychohistory/pkg/models"
)

const serperEndpoint = "https://google.serper.dev/search"

// SerperProvider calls the Serper Google-results API.
type SerperProvider struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
}

// NewSerperProvider creates a Serper-backed provider.
func NewSerperProvider(apiKey string) *SerperProvider {
	return &SerperProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		endpoint:   serperEndpoint,
	}
}

// Name implements Provider.
func (p *SerperProvider) Name() string { return "serper" }

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search implements Provider.
func (p *SerperProvider) Search(ctx context.Context, query string) ([]models.Source, error) {
	payload, err := json.Marshal(map[string]any{"q": query, "num": maxResultsPerQuery})
	if err != nil {
		return nil, fmt.Errorf("marshal serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: p.Name(), Code: resp.StatusCode}
	}

	var body serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode serper response: %w", err)
	}

	sources := make([]models.Source, 0, len(body.Organic))
	for _, r := range body.Organic {
		sources = append(sources, models.Source{
			URL:     r.Link,
			Title:   r.Title,
			Snippet: r.Snippet,
		})
	}
	return sources, nil
}
