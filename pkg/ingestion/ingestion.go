// Package ingestion declares C10, the Ingestion Adapter: a read-only
// contract the core depends on for chunk retrieval. The ingestion
// pipeline itself (crawling, extraction, chunking, embedding,
// upserting) is out of scope for this repository; only the interface
// a capability server would call against is defined here.
package ingestion

import "context"

// Chunk is one retrieved unit of ingested content.
type Chunk struct {
	ID       string
	Text     string
	Source   string
	Metadata map[string]string
}

// Filters narrows search_chunks results, e.g. to a tenant or document
// type; fields are adapter-specific and opaque to the core.
type Filters map[string]string

// Adapter is the read-only surface C10 exposes to the rest of the
// system. Implementations live outside this module (a vector database
// client, a search index, or similar) and are never called directly
// by the orchestration core — only by capability servers.
type Adapter interface {
	GetChunk(ctx context.Context, chunkID string) (Chunk, error)
	SearchChunks(ctx context.Context, queryVector []float64, filters Filters) ([]Chunk, error)
}
