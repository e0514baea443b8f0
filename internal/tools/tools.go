// Package tools implements the web capabilities the agent can dispatch:
// search (query a Jina-style search endpoint) and scrape (fetch a page
// through a reader endpoint, then compress it against the task). Both are
// stateless HTTP clients; failure containment lives in the agent loop.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deepsearch-cli/api/schemas"
	"github.com/xkilldash9x/deepsearch-cli/internal/config"
)

// ErrToolRequest marks a non-success response from a tool endpoint.
var ErrToolRequest = errors.New("tool request failed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SearchTool queries the search capability and renders the results as a
// plain-text digest the model can read.
type SearchTool struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
	logger   *zap.Logger
}

// NewSearchTool builds a search tool from the capabilities configuration.
func NewSearchTool(cfg config.CapabilitiesConfig, logger *zap.Logger) *SearchTool {
	return &SearchTool{
		endpoint: strings.TrimRight(cfg.SearchEndpoint, "/"),
		apiKey:   cfg.APIKey,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		logger:   logger.Named("search"),
	}
}

type searchResponse struct {
	Data []schemas.SearchResult `json:"data"`
}

// Call runs a web search for input. The task context is unused; search
// results are already short enough to hand to the model whole.
func (t *SearchTool) Call(ctx context.Context, input, _ string) (string, error) {
	target := t.endpoint + "/" + url.PathEscape(input)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Retain-Images", "none")
	req.Header.Set("X-No-Cache", "true")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		t.logger.Warn("Search capability returned non-success status",
			zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: http %d: %s", ErrToolRequest, resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding search response: %v", ErrToolRequest, err)
	}

	t.logger.Debug("Search completed",
		zap.String("query", input),
		zap.Int("results", len(parsed.Data)))
	return FormatSearchResults(parsed.Data), nil
}

// FormatSearchResults renders search results as blank-line separated
// blocks of title, source URL, and description.
func FormatSearchResults(results []schemas.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nURL Source: %s\nDescription: %s",
			result.Title, result.URL, result.Description))
	}
	return strings.TrimRight(strings.Join(blocks, "\n\n"), " \t\n")
}

// ScrapeTool fetches a page through the reader capability and compresses
// the returned text against the agent's task so only the relevant parts
// reach the model.
type ScrapeTool struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
	reranker schemas.Reranker
	logger   *zap.Logger
}

// NewScrapeTool builds a scrape tool. The reranker may be nil, in which
// case pages are returned uncompressed.
func NewScrapeTool(cfg config.CapabilitiesConfig, reranker schemas.Reranker, logger *zap.Logger) *ScrapeTool {
	return &ScrapeTool{
		endpoint: strings.TrimRight(cfg.ReaderEndpoint, "/"),
		apiKey:   cfg.APIKey,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		reranker: reranker,
		logger:   logger.Named("scrape"),
	}
}

// Call fetches the page at input as reader-rendered text. When a task
// context is supplied and a reranker is wired, the page is chunked and
// reduced to the chunks most relevant to the task.
func (t *ScrapeTool) Call(ctx context.Context, input, taskContext string) (string, error) {
	target := t.endpoint + "/" + input
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build scrape request: %w", err)
	}
	req.Header.Set("X-Retain-Images", "none")
	req.Header.Set("X-With-Links-Summary", "true")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading scrape response: %v", ErrToolRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		t.logger.Warn("Reader capability returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("url", input))
		return "", fmt.Errorf("%w: http %d: %s", ErrToolRequest, resp.StatusCode,
			string(body[:min(len(body), 4096)]))
	}

	page := string(body)
	if t.reranker == nil || strings.TrimSpace(taskContext) == "" {
		return page, nil
	}

	compressed, err := t.reranker.Rerank(ctx, page, taskContext)
	if err != nil {
		return "", fmt.Errorf("compressing scraped page: %w", err)
	}
	t.logger.Debug("Scraped and compressed page",
		zap.String("url", input),
		zap.Int("raw_bytes", len(page)),
		zap.Int("compressed_bytes", len(compressed)))
	return compressed, nil
}
