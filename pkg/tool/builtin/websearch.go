// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jllopis/agentcore/pkg/tool"
)

// WebSearchName is the registered name of the web search tool.
const WebSearchName = "web_search"

const (
	defaultMaxResults = 5
	maxMaxResults     = 10
)

// DefaultSearchEndpoint is the DuckDuckGo Instant Answer API.
const DefaultSearchEndpoint = "https://api.duckduckgo.com/"

// SearchResult is one hit returned by a Searcher.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs web queries.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// WebSearchArgs are the web search parameters.
type WebSearchArgs struct {
	Query      string `json:"query" jsonschema:"description=Search query terms"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results (1-10, default 5)"`
}

// NewWebSearch returns the web search tool backed by s.
func NewWebSearch(s Searcher) tool.Tool {
	return tool.MustFunc(WebSearchName,
		"Search the web for information on a given topic.",
		func(ctx context.Context, in WebSearchArgs) (any, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return nil, fmt.Errorf("no search query provided")
			}
			limit := in.MaxResults
			if limit <= 0 {
				limit = defaultMaxResults
			}
			if limit > maxMaxResults {
				limit = maxMaxResults
			}
			results, err := s.Search(ctx, query, limit)
			if err != nil {
				return nil, fmt.Errorf("search failed: %w", err)
			}
			return FormatResults(query, results), nil
		})
}

// FormatResults renders results as a numbered plain-text list.
func FormatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s'.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s':\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		fmt.Fprintf(&b, "   %s\n\n", r.Snippet)
	}
	return strings.TrimSpace(b.String())
}

// DuckDuckGoSearcher queries the DuckDuckGo Instant Answer API.
type DuckDuckGoSearcher struct {
	Endpoint string
	Client   *http.Client
}

// NewDuckDuckGoSearcher creates a searcher against endpoint, or the public
// API when endpoint is empty.
func NewDuckDuckGoSearcher(endpoint string) *DuckDuckGoSearcher {
	if endpoint == "" {
		endpoint = DefaultSearchEndpoint
	}
	return &DuckDuckGoSearcher{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	Results       []ddgTopic `json:"Results"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

// Search implements Searcher.
func (d *DuckDuckGoSearcher) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "agentcore-web-search/1.0")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	var body ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var out []SearchResult
	add := func(r SearchResult) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, r)
		return true
	}
	if body.AbstractText != "" {
		title := body.Heading
		if title == "" {
			title = query
		}
		add(SearchResult{Title: title, URL: body.AbstractURL, Snippet: body.AbstractText})
	}
	if body.Answer != "" {
		add(SearchResult{Title: "Instant answer", Snippet: body.Answer})
	}
	var walk func(topics []ddgTopic) bool
	walk = func(topics []ddgTopic) bool {
		for _, t := range topics {
			if len(t.Topics) > 0 {
				if !walk(t.Topics) {
					return false
				}
				continue
			}
			if t.Text == "" {
				continue
			}
			if !add(SearchResult{Title: topicTitle(t.Text), URL: t.FirstURL, Snippet: t.Text}) {
				return false
			}
		}
		return true
	}
	if walk(body.Results) {
		walk(body.RelatedTopics)
	}
	return out, nil
}

func topicTitle(text string) string {
	if i := strings.Index(text, " - "); i > 0 {
		return text[:i]
	}
	return text
}
