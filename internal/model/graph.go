package model

import "fmt"

// Node labels owned by the pipeline.
const (
	LabelPerson   = "Person"
	LabelPost     = "Post"
	LabelComment  = "Comment"
	LabelResource = "Resource"
	LabelChunk    = "Chunk"
)

// Relationship types owned by the pipeline (phase A structural graph).
const (
	RelIsAuthorOf = "IS_AUTHOR_OF"
	RelReactedTo  = "REACTED_TO"
	RelCommentsOn = "COMMENTS_ON"
	RelReposts    = "REPOSTS"
	RelLinksTo    = "LINKS_TO"
	RelFromChunk  = "FROM_CHUNK"
)

// KnownRelationshipTypes guards against a mapping bug introducing an
// unexpected relationship type into the graph.
var KnownRelationshipTypes = map[string]bool{
	RelIsAuthorOf: true,
	RelReactedTo:  true,
	RelCommentsOn: true,
	RelReposts:    true,
	RelLinksTo:    true,
	RelFromChunk:  true,
}

// Node is an entity destined for the graph. Key is the natural unique
// identifier the loader merges on: the URN for Person/Post/Comment, the URL
// for Resource.
type Node struct {
	Key   string
	Label string
	Props map[string]any
}

// Relationship is a typed edge between two nodes identified by their keys.
// Key is the relationship's own merge identity; for most relationships it is
// derived from (from, type, to), for reactions it additionally carries the
// timestamp so that distinct reactions stay distinct.
type Relationship struct {
	Key   string
	Type  string
	From  string
	To    string
	Props map[string]any
}

// RelationshipKey derives the default merge identity for an edge.
func RelationshipKey(from, relType, to string) string {
	return fmt.Sprintf("%s|%s|%s", from, relType, to)
}

// SyntheticReactionKey builds the identity for a reaction lacking its own
// URN, from actor, target and the reaction's epoch millisecond timestamp.
// The same inputs always yield the same key.
func SyntheticReactionKey(actor, target string, ms int64) string {
	return fmt.Sprintf("%s|%s|%d", actor, target, ms)
}

// GraphData is the extractor's output: nodes and relationships in
// deterministic order, plus counts of records dropped before extraction.
type GraphData struct {
	Nodes         []Node
	Relationships []Relationship
	Skipped       map[string]int
}

// NodeCount returns the number of nodes carrying the given label.
func (g *GraphData) NodeCount(label string) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Label == label {
			n++
		}
	}
	return n
}
