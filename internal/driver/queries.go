package driver

import (
	"fmt"

	"github.com/agenthands/actigraph/internal/model"
)

// mergeKeyProps maps each label to the natural key its nodes merge on.
var mergeKeyProps = map[string]string{
	model.LabelPerson:   "urn",
	model.LabelPost:     "urn",
	model.LabelComment:  "urn",
	model.LabelResource: "url",
	model.LabelChunk:    "id",
}

// Labels and relationship types are interpolated into Cypher (they cannot be
// parameters), so both constructors refuse anything outside the known sets.

// NodeMergeQuery returns the batched upsert for nodes of the given label.
// Rows carry {key, props}; existing nodes keep properties absent from props.
// The query reports how many nodes were created vs updated.
func NodeMergeQuery(label string) (string, error) {
	keyProp, ok := mergeKeyProps[label]
	if !ok {
		return "", fmt.Errorf("unknown node label %q", label)
	}
	return fmt.Sprintf(`
		UNWIND $batch AS row
		MERGE (n:%s {%s: row.key})
		ON CREATE SET n._new = true
		SET n += row.props, n.key = row.key, n.ingest_run = $ingest_run
		WITH n, coalesce(n._new, false) AS created
		REMOVE n._new
		RETURN sum(CASE WHEN created THEN 1 ELSE 0 END) AS created,
		       sum(CASE WHEN created THEN 0 ELSE 1 END) AS updated
	`, label, keyProp), nil
}

// RelationshipMergeQuery returns the batched upsert for relationships of one
// type. Rows carry {key, from, to, props}; endpoints are matched on the
// uniform key property every loaded node carries. Rows whose endpoints are
// missing merge nothing and are silently dropped by the MATCH.
func RelationshipMergeQuery(relType string) (string, error) {
	if !model.KnownRelationshipTypes[relType] {
		return "", fmt.Errorf("unknown relationship type %q", relType)
	}
	return fmt.Sprintf(`
		UNWIND $batch AS row
		MATCH (a {key: row.from})
		MATCH (b {key: row.to})
		MERGE (a)-[r:%s {key: row.key}]->(b)
		ON CREATE SET r._new = true
		SET r += row.props
		WITH r, coalesce(r._new, false) AS created
		REMOVE r._new
		RETURN sum(CASE WHEN created THEN 1 ELSE 0 END) AS created,
		       sum(CASE WHEN created THEN 0 ELSE 1 END) AS updated
	`, relType), nil
}

const (
	// ScopedDeleteQuery removes everything a previous pipeline run wrote,
	// leaving foreign data untouched.
	ScopedDeleteQuery = `
		MATCH (n)
		WHERE n.ingest_run IS NOT NULL
		DETACH DELETE n
	`

	// ChunkMergeQuery writes one batch of chunks with their embeddings and
	// anchors each to its source entity. Chunk and edge land in the same
	// statement so a chunk never exists without its FROM_CHUNK edge.
	ChunkMergeQuery = `
		UNWIND $batch AS row
		MATCH (source {key: row.source_key})
		MERGE (c:Chunk {id: row.id})
		SET c.text = row.text,
		    c.chunk_index = row.chunk_index,
		    c.total_chunks = row.total_chunks,
		    c.source_urn = row.source_key,
		    c.embedding = row.embedding,
		    c.key = row.id,
		    c.ingest_run = $ingest_run
		MERGE (c)-[:FROM_CHUNK {key: row.id}]->(source)
		RETURN count(c) AS written
	`

	// DeleteChunksForSourceQuery drops existing chunks before a reindex.
	DeleteChunksForSourceQuery = `
		MATCH (c:Chunk)-[:FROM_CHUNK]->(source {key: $source_key})
		DETACH DELETE c
	`

	// IndexCandidatesQuery selects posts and comments to index. With
	// $reindex false, entities that already have chunks are skipped. With
	// $include_empty true, entities without stored text are returned too,
	// for callers that can fetch content from the entity's URL.
	IndexCandidatesQuery = `
		MATCH (n)
		WHERE (n:Post OR n:Comment)
		  AND ($include_empty OR coalesce(n.content, n.text, '') <> '')
		  AND ($reindex OR NOT EXISTS { (n)<-[:FROM_CHUNK]-(:Chunk) })
		RETURN n.key AS key,
		       labels(n) AS labels,
		       coalesce(n.content, n.text) AS text,
		       n.url AS url,
		       n.timestamp AS timestamp
		ORDER BY n.timestamp DESC
		LIMIT $limit
	`

	// ShowVectorIndexQuery inspects the vector index configuration,
	// including its dimension count.
	ShowVectorIndexQuery = `
		SHOW VECTOR INDEXES YIELD name, options
		WHERE name = $index_name
		RETURN name, options
	`

	// VectorSearchQuery runs similarity search and resolves each match back
	// to its source entity through FROM_CHUNK.
	VectorSearchQuery = `
		CALL db.index.vector.queryNodes($index_name, $top_k, $embedding)
		YIELD node, score
		MATCH (node)-[:FROM_CHUNK]->(source)
		RETURN node.text AS text,
		       node.chunk_index AS chunk_index,
		       score,
		       source.key AS source_key,
		       labels(source) AS labels,
		       source.timestamp AS timestamp
		ORDER BY score DESC
	`

	// GraphContextQuery expands one hop from a matched source: the people
	// attached to it and, for reposts, the original post.
	GraphContextQuery = `
		MATCH (source {key: $source_key})
		OPTIONAL MATCH (person:Person)-[]-(source)
		WITH source, collect(DISTINCT person.urn) AS people
		OPTIONAL MATCH (source)-[:REPOSTS]->(original:Post)
		RETURN people, original.urn AS original_post
	`

	// StatusQuery summarizes what the pipeline has loaded so far.
	StatusQuery = `
		OPTIONAL MATCH (p:Person) WITH count(p) AS people
		OPTIONAL MATCH (po:Post) WITH people, count(po) AS posts
		OPTIONAL MATCH (c:Comment) WITH people, posts, count(c) AS comments
		OPTIONAL MATCH (r:Resource) WITH people, posts, comments, count(r) AS resources
		OPTIONAL MATCH (ch:Chunk) WITH people, posts, comments, resources, count(ch) AS chunks
		OPTIONAL MATCH ()-[rel]->()
		RETURN people, posts, comments, resources, chunks, count(rel) AS relationships
	`

	// PersonListQuery returns every person URN in the graph.
	PersonListQuery = `
		MATCH (p:Person)
		RETURN p.urn AS urn
		ORDER BY urn
	`

	// PersonAffinityQuery counts direct engagements between pairs of people:
	// reactions and reposts on the other's content, and comments on the
	// other's posts. Directed pairs; the caller folds them undirected.
	PersonAffinityQuery = `
		MATCH (a:Person)-[:REACTED_TO|REPOSTS]->()<-[:IS_AUTHOR_OF]-(b:Person)
		WHERE a.urn <> b.urn
		RETURN a.urn AS a, b.urn AS b, count(*) AS weight
		UNION ALL
		MATCH (a:Person)-[:IS_AUTHOR_OF]->(:Comment)-[:COMMENTS_ON]->()<-[:IS_AUTHOR_OF]-(b:Person)
		WHERE a.urn <> b.urn
		RETURN a.urn AS a, b.urn AS b, count(*) AS weight
	`

	// RecentActivityQuery selects posts and comments that carry content for
	// period summarization, newest first.
	RecentActivityQuery = `
		MATCH (n)
		WHERE (n:Post OR n:Comment)
		  AND coalesce(n.content, n.text, '') <> ''
		  AND coalesce(n.timestamp, 0) >= $since
		RETURN labels(n) AS labels,
		       coalesce(n.content, n.text) AS text,
		       n.timestamp AS timestamp
		ORDER BY n.timestamp DESC
		LIMIT $limit
	`
)

// VectorIndexCreateQuery builds the index DDL. Dimensions cannot be a query
// parameter, so they are interpolated.
func VectorIndexCreateQuery(indexName string, dimensions int) string {
	return fmt.Sprintf(`
		CREATE VECTOR INDEX %s IF NOT EXISTS
		FOR (c:Chunk) ON (c.embedding)
		OPTIONS {indexConfig: {
			`+"`vector.dimensions`"+`: %d,
			`+"`vector.similarity_function`"+`: 'cosine'
		}}
	`, indexName, dimensions)
}
