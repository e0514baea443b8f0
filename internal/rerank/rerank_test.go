package rerank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deepsearch-cli/internal/config"
)

func testConfigs(endpoint string) (config.CapabilitiesConfig, config.SegmenterConfig) {
	return config.CapabilitiesConfig{
			RerankEndpoint: endpoint,
			RerankModel:    "test-reranker",
			TopDocs:        3,
			Timeout:        5 * time.Second,
		}, config.SegmenterConfig{
			ChunkSize:    1000,
			ChunkOverlap: 500,
		}
}

func TestRerankMergesRankedOrder(t *testing.T) {
	var gotReq rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		// Respond in a deliberately different order than submitted.
		resp := map[string]any{
			"results": []map[string]any{
				{"document": map[string]string{"text": "most relevant"}},
				{"document": map[string]string{"text": "second"}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	capsCfg, segCfg := testConfigs(server.URL)
	client := New(capsCfg, segCfg, zaptest.NewLogger(t))

	merged, err := client.Rerank(context.Background(), "second\n\nmost relevant", "which chunk matters")
	require.NoError(t, err)
	assert.Equal(t, "most relevant\nsecond", merged)

	assert.Equal(t, "test-reranker", gotReq.Model)
	assert.Equal(t, "which chunk matters", gotReq.Query)
	assert.Equal(t, 3, gotReq.TopN)
	assert.NotEmpty(t, gotReq.Documents)
}

func TestRerankSendsAuthorizationWhenConfigured(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	capsCfg, segCfg := testConfigs(server.URL)
	capsCfg.APIKey = "secret-key"
	client := New(capsCfg, segCfg, zaptest.NewLogger(t))

	_, err := client.Rerank(context.Background(), "some text", "query")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
}

func TestRerankNonSuccessIsHardFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer server.Close()

	capsCfg, segCfg := testConfigs(server.URL)
	client := New(capsCfg, segCfg, zaptest.NewLogger(t))

	_, err := client.Rerank(context.Background(), "some text", "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRerankFailed)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestRerankEmptyTextSkipsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	capsCfg, segCfg := testConfigs(server.URL)
	client := New(capsCfg, segCfg, zaptest.NewLogger(t))

	merged, err := client.Rerank(context.Background(), "   ", "query")
	require.NoError(t, err)
	assert.Empty(t, merged)
	assert.False(t, called)
}

func TestRerankCustomSplitAndMerge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		results := make([]map[string]any, 0, len(req.Documents))
		for _, doc := range req.Documents {
			results = append(results, map[string]any{"document": map[string]string{"text": doc}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"results": results}))
	}))
	defer server.Close()

	capsCfg, segCfg := testConfigs(server.URL)
	client := New(capsCfg, segCfg, zaptest.NewLogger(t),
		WithSplitFunc(func(text string) []string { return []string{"a", "b"} }),
		WithMergeFunc(func(chunks []string) string { return chunks[0] + "|" + chunks[1] }),
	)

	merged, err := client.Rerank(context.Background(), "ignored", "query")
	require.NoError(t, err)
	assert.Equal(t, "a|b", merged)
}
