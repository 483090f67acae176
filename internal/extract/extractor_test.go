package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/actigraph/internal/model"
)

func postRecord(urn, author, content string) model.ActivityRecord {
	return model.ActivityRecord{
		Owner:        "urn:li:person:owner1",
		ActivityType: model.ActivityPost,
		Time:         1700000000000,
		AuthorURN:    author,
		ActivityURN:  urn,
		PostURL:      "https://www.linkedin.com/feed/update/" + urn,
		Content:      content,
		CreatedAt:    model.FormatTimestamp(1700000000000),
	}
}

func relTypes(g *model.GraphData) []string {
	var types []string
	for _, r := range g.Relationships {
		types = append(types, r.Type)
	}
	return types
}

func findNode(g *model.GraphData, key string) (model.Node, bool) {
	for _, n := range g.Nodes {
		if n.Key == key {
			return n, true
		}
	}
	return model.Node{}, false
}

func TestExtractPost(t *testing.T) {
	g := Extract([]model.ActivityRecord{
		postRecord("urn:li:share:p1", "urn:li:person:a1", "Test content"),
	})

	assert.Equal(t, 1, g.NodeCount(model.LabelPerson))
	assert.Equal(t, 1, g.NodeCount(model.LabelPost))
	assert.Contains(t, relTypes(g), model.RelIsAuthorOf)

	post, ok := findNode(g, "urn:li:share:p1")
	require.True(t, ok)
	assert.Equal(t, "original", post.Props["type"])
	assert.Equal(t, "Test content", post.Props["content"])
	assert.Equal(t, true, post.Props["has_content"])
}

func TestExtractReaction(t *testing.T) {
	g := Extract([]model.ActivityRecord{{
		ActivityType: model.ActivityReactionToPost,
		Time:         1700000000000,
		ReactionType: "LIKE",
		AuthorURN:    "urn:li:person:a1",
		ActivityURN:  "urn:li:share:p1",
		CreatedAt:    model.FormatTimestamp(1700000000000),
	}})

	require.Len(t, g.Relationships, 1)
	rel := g.Relationships[0]
	assert.Equal(t, model.RelReactedTo, rel.Type)
	assert.Equal(t, "LIKE", rel.Props["reaction_type"])
	// The reaction target materializes as a placeholder post.
	_, ok := findNode(g, "urn:li:share:p1")
	assert.True(t, ok)
}

func TestExtractDistinctReactionsKept(t *testing.T) {
	first := model.ActivityRecord{
		ActivityType: model.ActivityReactionToPost,
		Time:         1000,
		ReactionType: "LIKE",
		AuthorURN:    "urn:li:person:a1",
		ActivityURN:  "urn:li:share:p1",
	}
	second := first
	second.Time = 2000

	g := Extract([]model.ActivityRecord{first, second})
	assert.Len(t, g.Relationships, 2, "same actor and target at different times are distinct edges")

	g = Extract([]model.ActivityRecord{first, first})
	assert.Len(t, g.Relationships, 1, "identical reactions collapse")
}

func TestExtractRepost(t *testing.T) {
	rec := postRecord("urn:li:share:repost1", "urn:li:person:a1", "")
	rec.ActivityType = model.ActivityRepost
	rec.OriginalPostURN = "urn:li:ugcPost:orig1"

	g := Extract([]model.ActivityRecord{rec})

	types := relTypes(g)
	assert.Equal(t, 2, g.NodeCount(model.LabelPost))
	count := 0
	for _, tp := range types {
		if tp == model.RelReposts {
			count++
		}
	}
	assert.Equal(t, 2, count, "person REPOSTS repost, repost REPOSTS original")
}

func TestExtractComment(t *testing.T) {
	rec := model.ActivityRecord{
		ActivityType: model.ActivityComment,
		Time:         1700000000000,
		AuthorURN:    "urn:li:person:a1",
		ActivityURN:  "urn:li:comment:(ugcPost:p1,c1)",
		Content:      "Nice!",
		ParentURN:    "urn:li:ugcPost:p1",
		CreatedAt:    model.FormatTimestamp(1700000000000),
	}
	g := Extract([]model.ActivityRecord{rec})

	types := relTypes(g)
	assert.Contains(t, types, model.RelIsAuthorOf)
	assert.Contains(t, types, model.RelCommentsOn)
	assert.Equal(t, 1, g.NodeCount(model.LabelComment))
	assert.Equal(t, 1, g.NodeCount(model.LabelPost), "enclosing post materializes")

	comment, ok := findNode(g, "urn:li:comment:(ugcPost:p1,c1)")
	require.True(t, ok)
	assert.Equal(t, "Nice!", comment.Props["text"])
	assert.Equal(t, "c1", comment.Props["comment_id"])
}

func TestExtractOrphanReplyGetsPlaceholderParent(t *testing.T) {
	rec := model.ActivityRecord{
		ActivityType: model.ActivityComment,
		Time:         1700000000000,
		AuthorURN:    "urn:li:person:a1",
		ActivityURN:  "urn:li:comment:(ugcPost:p1,c2)",
		Content:      "reply",
		ParentURN:    "urn:li:comment:(ugcPost:p1,c1)",
	}
	g := Extract([]model.ActivityRecord{rec})

	parent, ok := findNode(g, "urn:li:comment:(ugcPost:p1,c1)")
	require.True(t, ok, "unseen parent comment gets a placeholder node")
	assert.Equal(t, true, parent.Props["placeholder"])
	assert.Nil(t, parent.Props["parent_unresolved"])

	child, ok := findNode(g, "urn:li:comment:(ugcPost:p1,c2)")
	require.True(t, ok)
	assert.Equal(t, true, child.Props["parent_unresolved"],
		"the reply carries the unresolved-parent flag, not the placeholder")

	assert.Contains(t, relTypes(g), model.RelCommentsOn)
}

func TestExtractUnknownTypeSkipped(t *testing.T) {
	g := Extract([]model.ActivityRecord{
		{ActivityType: "mystery", AuthorURN: "urn:li:person:a1", ActivityURN: "urn:li:share:p1"},
		postRecord("urn:li:share:p2", "urn:li:person:a1", ""),
	})

	assert.Equal(t, 1, g.Skipped["unknown_activity_type"])
	assert.Equal(t, 1, g.NodeCount(model.LabelPost))
}

func TestExtractMissingIdentitySkipped(t *testing.T) {
	g := Extract([]model.ActivityRecord{
		{ActivityType: model.ActivityPost, AuthorURN: "", ActivityURN: "urn:li:share:p1"},
	})
	assert.Equal(t, 1, g.Skipped["missing_identity"])
	assert.Empty(t, g.Nodes)
}

func TestExtractResources(t *testing.T) {
	g := Extract([]model.ActivityRecord{
		postRecord("urn:li:share:p1", "urn:li:person:a1",
			"Check out https://github.com/neo4j/neo4j-go-driver and https://youtube.com/watch?v=abc."),
	})

	assert.Equal(t, 2, g.NodeCount(model.LabelResource))
	repo, ok := findNode(g, "https://github.com/neo4j/neo4j-go-driver")
	require.True(t, ok)
	assert.Equal(t, ResourceRepository, repo.Props["type"])
	assert.Equal(t, "github.com", repo.Props["domain"])

	linkCount := 0
	for _, tp := range relTypes(g) {
		if tp == model.RelLinksTo {
			linkCount++
		}
	}
	assert.Equal(t, 2, linkCount)
}

func TestExtractIgnoresProfileLinks(t *testing.T) {
	g := Extract([]model.ActivityRecord{
		postRecord("urn:li:share:p1", "urn:li:person:a1",
			"Follow https://www.linkedin.com/in/somebody for more"),
	})
	assert.Zero(t, g.NodeCount(model.LabelResource))
}

func TestExtractDeterministic(t *testing.T) {
	records := []model.ActivityRecord{
		postRecord("urn:li:share:p1", "urn:li:person:a1", "one https://example.com/a"),
		postRecord("urn:li:share:p2", "urn:li:person:a2", "two"),
		{
			ActivityType: model.ActivityReactionToPost,
			Time:         5,
			ReactionType: "LIKE",
			AuthorURN:    "urn:li:person:a3",
			ActivityURN:  "urn:li:share:p1",
		},
	}

	first := Extract(records)
	second := Extract(records)
	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Relationships, second.Relationships)
}

func TestExtractURLsTrimsPunctuation(t *testing.T) {
	urls := ExtractURLs("see https://example.com/page, and (https://other.org/x).")
	assert.Equal(t, []string{"https://example.com/page", "https://other.org/x"}, urls)
}

func TestCategorizeURL(t *testing.T) {
	for _, tc := range []struct {
		url, wantType string
	}{
		{"https://www.youtube.com/watch?v=1", ResourceVideo},
		{"https://vimeo.com/123", ResourceVideo},
		{"https://github.com/owner/repo", ResourceRepository},
		{"https://pkg.readthedocs.io/en/latest/", ResourceDocumentation},
		{"https://medium.com/@a/post", ResourceArticle},
		{"https://example.com/whatever", ResourceArticle},
	} {
		_, got := CategorizeURL(tc.url)
		assert.Equal(t, tc.wantType, got, tc.url)
	}
}
