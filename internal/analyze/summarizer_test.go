package analyze

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type activityRow struct {
	label     string
	text      string
	timestamp int64
}

type activityGraph struct {
	rows   []activityRow
	params map[string]any
}

func (m *activityGraph) ExecuteQuery(_ context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	if !strings.Contains(query, "AS text") {
		return neo4j.EagerResult{}, nil
	}
	m.params = params
	records := make([]*neo4j.Record, 0, len(m.rows))
	for _, r := range m.rows {
		records = append(records, &neo4j.Record{
			Keys:   []string{"labels", "text", "timestamp"},
			Values: []any{[]any{r.label}, r.text, r.timestamp},
		})
	}
	return neo4j.EagerResult{Records: records}, nil
}

func (m *activityGraph) BuildIndices(context.Context) error { return nil }
func (m *activityGraph) Close(context.Context) error        { return nil }

type replyGenerator struct {
	reply  string
	prompt string
}

func (g *replyGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, nil
}

func TestSummarizeDigestsRecentActivity(t *testing.T) {
	g := &activityGraph{rows: []activityRow{
		{label: "Post", text: "shipping a Go graph library", timestamp: 200},
		{label: "Comment", text: "congrats on the release", timestamp: 100},
	}}
	gen := &replyGenerator{reply: "Mostly Go and graph tooling."}

	summary, err := NewSummarizer(g, gen).Summarize(context.Background(), 50, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Items)
	assert.Equal(t, "Mostly Go and graph tooling.", summary.Text)
	assert.Equal(t, int64(50), g.params["since"])
	assert.Equal(t, 10, g.params["limit"])
	assert.Contains(t, gen.prompt, "[Post] shipping a Go graph library")
	assert.Contains(t, gen.prompt, "[Comment] congrats on the release")
}

func TestSummarizeEmptyPeriodSkipsGenerator(t *testing.T) {
	gen := &replyGenerator{reply: "should not be called"}

	summary, err := NewSummarizer(&activityGraph{}, gen).Summarize(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Zero(t, summary.Items)
	assert.Equal(t, "No activity in the requested period.", summary.Text)
	assert.Empty(t, gen.prompt)
}

func TestSummarizeTruncatesLongItems(t *testing.T) {
	long := strings.Repeat("グラフ要約", 500)
	g := &activityGraph{rows: []activityRow{{label: "Post", text: long, timestamp: 1}}}
	gen := &replyGenerator{reply: "digest"}

	_, err := NewSummarizer(g, gen).Summarize(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, string([]rune(long)[:summaryItemRunes])+"...")
	assert.NotContains(t, gen.prompt, long)
}

func TestSummarizeWithoutGenerator(t *testing.T) {
	_, err := NewSummarizer(&activityGraph{}, nil).Summarize(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	d, err := ParseWindow("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParseWindow("2w")
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, d)

	d, err = ParseWindow("1m")
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, d)

	for _, bad := range []string{"", "d", "7", "0d", "-1d", "7y"} {
		_, err := ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}
