package model

// LoadSummary reports the outcome of a graph load.
type LoadSummary struct {
	NodesCreated         int `json:"nodes_created"`
	NodesUpdated         int `json:"nodes_updated"`
	RelationshipsCreated int `json:"relationships_created"`
	RelationshipsUpdated int `json:"relationships_updated"`
	BatchesRetried       int `json:"batches_retried"`
}

// IndexSummary reports the outcome of a content indexing run.
type IndexSummary struct {
	ItemsProcessed     int      `json:"items_processed"`
	ChunksCreated      int      `json:"chunks_created"`
	EmbeddingsComputed int      `json:"embeddings_computed"`
	Skipped            int      `json:"skipped"`
	Failed             []string `json:"failed,omitempty"`
}

// FetchSummary reports the outcome of a changelog fetch + store append.
type FetchSummary struct {
	EventsFetched   int            `json:"events_fetched"`
	RecordsAppended int            `json:"records_appended"`
	Duplicates      int            `json:"duplicates"`
	SkippedEvents   map[string]int `json:"skipped_events,omitempty"`
}

// ChunkMatch is one retrieved chunk with its similarity score.
type ChunkMatch struct {
	Text  string  `json:"text"`
	Index int     `json:"chunk_index"`
	Score float64 `json:"score"`
}

// RetrievalResult pairs a matched chunk with its source entity and, when
// graph traversal is enabled, one hop of relational context.
type RetrievalResult struct {
	SourceURN       string     `json:"source_urn"`
	SourceLabel     string     `json:"source_label"`
	SourceTimestamp int64      `json:"source_timestamp"`
	Chunk           ChunkMatch `json:"chunk"`
	Score           float64    `json:"score"`
	People          []string   `json:"people,omitempty"`
	OriginalPost    string     `json:"original_post,omitempty"`
}
