package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SearchConfig configures the SerpAPI-backed web search provider.
type SearchConfig struct {
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	MaxResults int           `json:"max_results" yaml:"max_results"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultSearchConfig returns SerpAPI defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		BaseURL:    "https://serpapi.com",
		MaxResults: 3,
		Timeout:    10 * time.Second,
	}
}

// SearchProvider queries a web search API and flattens the organic result
// snippets into one text block.
type SearchProvider struct {
	cfg    SearchConfig
	client *http.Client
}

// NewSearchProvider creates a provider from cfg, filling defaults for
// unset fields.
func NewSearchProvider(cfg SearchConfig) *SearchProvider {
	def := DefaultSearchConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &SearchProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type searchResponse struct {
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answer_box"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search runs the query and returns the answer box plus the top organic
// snippets, newline-joined. No results yields an empty string, not an
// error.
func (p *SearchProvider) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", p.cfg.APIKey)
	params.Set("num", fmt.Sprint(p.cfg.MaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("search error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	var parts []string
	if out.AnswerBox.Answer != "" {
		parts = append(parts, out.AnswerBox.Answer)
	} else if out.AnswerBox.Snippet != "" {
		parts = append(parts, out.AnswerBox.Snippet)
	}
	for i, res := range out.OrganicResults {
		if i >= p.cfg.MaxResults {
			break
		}
		if res.Snippet != "" {
			parts = append(parts, res.Snippet)
		}
	}
	return strings.Join(parts, "\n"), nil
}
