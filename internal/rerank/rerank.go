// Package rerank compresses long text against a query by chunking it,
// submitting the chunks to an external ranking capability, and merging
// the most relevant chunks back into a single block.
package rerank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deepsearch-cli/internal/config"
	"github.com/xkilldash9x/deepsearch-cli/internal/segment"
)

// ErrRerankFailed marks a non-success response from the ranking
// capability. There is no retry at this layer; the caller owns failure
// containment.
var ErrRerankFailed = errors.New("rerank request failed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SplitFunc turns raw text into chunks for ranking.
type SplitFunc func(text string) []string

// MergeFunc recombines ranked chunks into one block.
type MergeFunc func(chunks []string) string

// Client calls a Jina-style rerank endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	topDocs  int
	httpc    *http.Client
	logger   *zap.Logger
	split    SplitFunc
	merge    MergeFunc
}

// Option configures a Client.
type Option func(*Client)

// WithSplitFunc overrides the default segmenter-based chunking.
func WithSplitFunc(fn SplitFunc) Option {
	return func(c *Client) { c.split = fn }
}

// WithMergeFunc overrides the default newline join.
func WithMergeFunc(fn MergeFunc) Option {
	return func(c *Client) { c.merge = fn }
}

// WithHTTPClient overrides the default HTTP client, mainly for tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New builds a rerank client from configuration. The default split
// function is the segmenter with the configured chunk geometry; the
// default merge joins ranked chunks with newlines, preserving rank order.
func New(cfg config.CapabilitiesConfig, seg config.SegmenterConfig, logger *zap.Logger, opts ...Option) *Client {
	splitter := segment.New(seg.ChunkSize, seg.ChunkOverlap)
	c := &Client{
		endpoint: cfg.RerankEndpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.RerankModel,
		topDocs:  cfg.TopDocs,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		logger:   logger.Named("rerank"),
		split:    splitter.Split,
		merge: func(chunks []string) string {
			return strings.Join(chunks, "\n")
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	TopN      int      `json:"top_n"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Document struct {
			Text string `json:"text"`
		} `json:"document"`
	} `json:"results"`
}

// Rerank splits text, ranks the chunks against query, and returns the top
// chunks merged in descending relevance order. Any non-success response
// is a hard failure wrapped around ErrRerankFailed.
func (c *Client) Rerank(ctx context.Context, text, query string) (string, error) {
	chunks := c.split(text)
	if len(chunks) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		TopN:      c.topDocs,
		Documents: chunks,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Rerank capability returned non-success status",
			zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: http %d: %s", ErrRerankFailed, resp.StatusCode, string(body))
	}

	var ranked rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrRerankFailed, err)
	}

	top := make([]string, 0, len(ranked.Results))
	for _, result := range ranked.Results {
		top = append(top, result.Document.Text)
	}
	c.logger.Debug("Reranked text",
		zap.Int("chunks_submitted", len(chunks)),
		zap.Int("chunks_returned", len(top)))
	return c.merge(top), nil
}
