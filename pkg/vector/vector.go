// Package vector defines the Adapter interface for ACE's nearest-neighbor
// index over narrative text and entity description embeddings.
package vector

import "context"

// Collection names shared by every component that writes to or searches the
// vector store, so ingestion and the inference workflow never drift apart.
const (
	// CollectionLore holds embeddings of raw ingested source text.
	CollectionLore = "lore"

	// CollectionEntity holds embeddings of canonical entity descriptions.
	CollectionEntity = "entity"
)

// Hit is one nearest-neighbor result: an id, its similarity score (higher is
// better, already converted from cosine distance), and its metadata payload.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Adapter is the vector store abstraction. Implementations must be safe for
// concurrent use.
type Adapter interface {
	// Embed delegates to the LM Adapter to turn texts into vectors. The
	// adapter does not cache embeddings by default.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Upsert writes a single vector with its metadata into collection,
	// keyed on id. A second Upsert with the same (collection, id) replaces
	// the prior entry.
	Upsert(ctx context.Context, collection, id string, vec []float32, metadata map[string]any) error

	// Search returns at most k hits from collection whose cosine similarity
	// to queryVec is at least minScore, sorted by descending score.
	Search(ctx context.Context, collection string, queryVec []float32, k int, minScore float64) ([]Hit, error)

	// Close releases underlying resources (connection pool).
	Close()
}
