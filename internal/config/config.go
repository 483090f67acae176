package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type StoreConfig struct {
	DataDir string `toml:"data_dir"`
}

type ChangelogConfig struct {
	BaseURL   string   `toml:"base_url"`
	Token     string   `toml:"token"`
	PageSize  int      `toml:"page_size"`
	Resources []string `toml:"resources"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type IndexConfig struct {
	ChunkSize    int    `toml:"chunk_size"`
	ChunkOverlap int    `toml:"chunk_overlap"`
	VectorIndex  string `toml:"vector_index"`
	BatchSize    int    `toml:"batch_size"`
	Concurrency  int    `toml:"concurrency"`
	FetchContent bool   `toml:"fetch_content"`
}

type Config struct {
	Env       string          `toml:"env"`
	Store     StoreConfig     `toml:"store"`
	Changelog ChangelogConfig `toml:"changelog"`
	Neo4j     Neo4jConfig     `toml:"neo4j"`
	LLM       LLMConfig       `toml:"llm"`
	Index     IndexConfig     `toml:"index"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Env: "development",
		Store: StoreConfig{
			DataDir: filepath.Join(home, ".actigraph", "data"),
		},
		Changelog: ChangelogConfig{
			BaseURL:  "https://api.linkedin.com/rest",
			PageSize: 50,
			Resources: []string{
				"socialActions/likes",
				"socialActions/comments",
				"ugcPosts",
				"ugcPost",
				"instantReposts",
			},
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Password: "password",
			Database: "neo4j",
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			Model:          "llama3.2:3b",
			EmbeddingModel: "nomic-embed-text",
			BaseURL:        "http://localhost:11434",
		},
		Index: IndexConfig{
			ChunkSize:    500,
			ChunkOverlap: 100,
			VectorIndex:  "activity_content_index",
			BatchSize:    50,
			Concurrency:  4,
			FetchContent: false,
		},
	}
}

// Load reads the TOML config at path on top of the defaults, then applies
// environment overrides. This is the only place ambient environment state is
// consulted; the resulting struct is passed into every component.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Env, "ACTIGRAPH_ENV")
	setString(&c.Store.DataDir, "ACTIGRAPH_DATA_DIR")
	setString(&c.Changelog.Token, "LINKEDIN_ACCESS_TOKEN")
	setString(&c.Changelog.BaseURL, "CHANGELOG_BASE_URL")
	setString(&c.Neo4j.URI, "NEO4J_URI")
	setString(&c.Neo4j.Username, "NEO4J_USERNAME")
	setString(&c.Neo4j.Password, "NEO4J_PASSWORD")
	setString(&c.Neo4j.Database, "NEO4J_DATABASE")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.Index.VectorIndex, "VECTOR_INDEX_NAME")
	setInt(&c.Index.ChunkSize, "CHUNK_SIZE")
	setInt(&c.Index.ChunkOverlap, "CHUNK_OVERLAP")
	setBool(&c.Index.FetchContent, "FETCH_CONTENT")
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required")
	}
	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri is required")
	}
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive")
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
