package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/actigraph/internal/config"
)

func TestBuiltinProvidersRegistered(t *testing.T) {
	names := Providers()
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "ollama")
	assert.Contains(t, names, "claude")
	assert.Contains(t, names, "gemini")
}

func TestNewUnknownProvider(t *testing.T) {
	_, _, err := New(context.Background(), config.LLMConfig{Provider: "mystery"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestNewProviderCaseInsensitive(t *testing.T) {
	gen, emb, err := New(context.Background(), config.LLMConfig{
		Provider: "OpenAI",
		APIKey:   "test",
		Model:    "gpt-4o-mini",
	})
	require.NoError(t, err)
	assert.NotNil(t, gen)
	assert.NotNil(t, emb)
}

func TestClaudeHasNoEmbedder(t *testing.T) {
	gen, emb, err := New(context.Background(), config.LLMConfig{
		Provider: "claude",
		APIKey:   "test",
		Model:    "claude-sonnet-4-20250514",
	})
	require.NoError(t, err)
	assert.NotNil(t, gen)
	assert.Nil(t, emb)
}

func TestOllamaRequiresBaseURL(t *testing.T) {
	_, _, err := New(context.Background(), config.LLMConfig{Provider: "ollama"})
	assert.Error(t, err)
}

type scriptedGenerator struct {
	reply string
	err   error
}

func (s scriptedGenerator) Generate(context.Context, string) (string, error) {
	return s.reply, s.err
}

func TestRerankerOrdersByModelOutput(t *testing.T) {
	r := NewReranker(scriptedGenerator{reply: "2, 0, 1"})
	order, err := r.Rank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, order)
}

func TestRerankerFallsBackOnError(t *testing.T) {
	r := NewReranker(scriptedGenerator{err: errors.New("model down")})
	order, err := r.Rank(context.Background(), "q", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, order)
}

func TestRerankerRepairsPartialRanking(t *testing.T) {
	r := NewReranker(scriptedGenerator{reply: "1, 9, 1"})
	order, err := r.Rank(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 2}, order, "invalid and duplicate indices dropped, missing appended")
}

type promptCapturingGenerator struct {
	reply  string
	prompt string
}

func (g *promptCapturingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, nil
}

func TestRerankerTruncatesOnRuneBoundary(t *testing.T) {
	gen := &promptCapturingGenerator{reply: "0, 1"}
	r := NewReranker(gen)

	long := strings.Repeat("日本語のテキスト", 40)
	_, err := r.Rank(context.Background(), "q", []string{long, "short"})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(gen.prompt), "truncation must not split a rune")
	assert.Contains(t, gen.prompt, string([]rune(long)[:200])+"...")
}
