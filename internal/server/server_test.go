package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/actigraph/internal/config"
	"github.com/agenthands/actigraph/internal/driver"
	"github.com/agenthands/actigraph/internal/pipeline"
	"github.com/agenthands/actigraph/internal/retrieve"
	"github.com/agenthands/actigraph/internal/store"
)

type mockGraph struct {
	indexExists bool
}

func (m *mockGraph) ExecuteQuery(_ context.Context, query string, _ map[string]any) (neo4j.EagerResult, error) {
	switch {
	case strings.Contains(query, "SHOW VECTOR INDEXES"):
		if !m.indexExists {
			return neo4j.EagerResult{}, nil
		}
		return neo4j.EagerResult{Records: []*neo4j.Record{{
			Keys:   []string{"name", "options"},
			Values: []any{"activity_content_index", map[string]any{}},
		}}}, nil
	case strings.Contains(query, "db.index.vector.queryNodes"):
		return neo4j.EagerResult{Records: []*neo4j.Record{{
			Keys:   []string{"text", "chunk_index", "score", "source_key", "labels", "timestamp"},
			Values: []any{"go generics deep dive", int64(0), 0.91, "urn:li:share:1", []any{"Post"}, int64(1700000000000)},
		}}}, nil
	case strings.Contains(query, "AS text"):
		return neo4j.EagerResult{Records: []*neo4j.Record{{
			Keys:   []string{"labels", "text", "timestamp"},
			Values: []any{[]any{"Post"}, "shipping a Go graph library", int64(1700000000000)},
		}}}, nil
	case strings.Contains(query, "AS relationships"):
		return neo4j.EagerResult{Records: []*neo4j.Record{{
			Keys:   []string{"people", "posts", "comments", "resources", "chunks", "relationships"},
			Values: []any{int64(2), int64(4), int64(1), int64(0), int64(6), int64(9)},
		}}}, nil
	}
	return neo4j.EagerResult{}, nil
}

func (m *mockGraph) BuildIndices(context.Context) error { return nil }
func (m *mockGraph) Close(context.Context) error        { return nil }

var _ driver.GraphDriver = (*mockGraph)(nil)

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type stubGenerator struct{ reply string }

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.reply, nil }

func newTestRouter(t *testing.T, d driver.GraphDriver) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	cfg := config.Default()
	gen := stubGenerator{reply: "they discussed generics [1]"}
	rt := retrieve.New(d, stubEmbedder{}, gen, cfg.Index.VectorIndex)
	p := pipeline.New(cfg, st, nil, d, nil, nil, rt, gen)
	return NewServer(p).SetupRouter()
}

func TestQueryReturnsResults(t *testing.T) {
	router := newTestRouter(t, &mockGraph{indexExists: true})

	body, _ := json.Marshal(map[string]any{"query": "generics", "top_k": 3})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Results []map[string]any `json:"results"`
		Answer  string           `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "urn:li:share:1", resp.Results[0]["source_urn"])
	assert.Empty(t, resp.Answer)
}

func TestQueryWithAnswer(t *testing.T) {
	router := newTestRouter(t, &mockGraph{indexExists: true})

	body, _ := json.Marshal(map[string]any{"query": "generics", "answer": true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "they discussed generics [1]", resp["answer"])
}

func TestQueryRequiresQueryField(t *testing.T) {
	router := newTestRouter(t, &mockGraph{indexExists: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"top_k": 3}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryIndexNotReady(t *testing.T) {
	router := newTestRouter(t, &mockGraph{indexExists: false})

	body, _ := json.Marshal(map[string]any{"query": "generics"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockGraph{indexExists: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary?last=7d", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["items"])
	assert.Equal(t, "they discussed generics [1]", resp["text"])
}

func TestSummaryRejectsBadPeriod(t *testing.T) {
	router := newTestRouter(t, &mockGraph{indexExists: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary?last=soon", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockGraph{indexExists: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status pipeline.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 2, status.People)
	assert.Equal(t, 9, status.Relationships)
	assert.Equal(t, 0, status.StoreRecords)
}
