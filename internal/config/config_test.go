package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 500, cfg.Index.ChunkSize)
	assert.Equal(t, 100, cfg.Index.ChunkOverlap)
	assert.Equal(t, "activity_content_index", cfg.Index.VectorIndex)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Contains(t, cfg.Changelog.Resources, "socialActions/likes")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
env = "production"

[store]
data_dir = "/var/lib/actigraph"

[neo4j]
uri = "neo4j://db.internal:7687"
username = "graph"

[llm]
provider = "openai"
model = "gpt-4o-mini"

[index]
chunk_size = 800
chunk_overlap = 200
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "/var/lib/actigraph", cfg.Store.DataDir)
	assert.Equal(t, "neo4j://db.internal:7687", cfg.Neo4j.URI)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 800, cfg.Index.ChunkSize)
	// Unset fields keep their defaults.
	assert.Equal(t, "neo4j", cfg.Neo4j.Database)
	assert.Equal(t, 50, cfg.Changelog.PageSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "neo4j://override:7687")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("CHUNK_SIZE", "1000")
	t.Setenv("FETCH_CONTENT", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "neo4j://override:7687", cfg.Neo4j.URI)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, 1000, cfg.Index.ChunkSize)
	assert.True(t, cfg.Index.FetchContent)
}

func TestValidateRejectsBadOverlap(t *testing.T) {
	cfg := Default()
	cfg.Index.ChunkOverlap = cfg.Index.ChunkSize
	assert.Error(t, cfg.Validate())

	cfg.Index.ChunkOverlap = -1
	assert.Error(t, cfg.Validate())
}
