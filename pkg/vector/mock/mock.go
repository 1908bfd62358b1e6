// Package mock provides an in-memory [vector.Adapter] for tests that need a
// vector store without a live Postgres/pgvector instance.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/worldgraph/ace/pkg/vector"
)

type entry struct {
	vec      []float32
	metadata map[string]any
}

// Store is an in-memory [vector.Adapter]. EmbedFunc, if set, backs Embed;
// otherwise Embed returns a deterministic one-hot-ish vector per text so
// tests can exercise Search without a real embedding model.
type Store struct {
	mu         sync.Mutex
	chunks     map[string]map[string]entry // collection -> id -> entry
	EmbedFunc  func(ctx context.Context, texts []string) ([][]float32, error)
	EmbedErr   error
}

// New returns an empty mock store.
func New() *Store {
	return &Store{chunks: make(map[string]map[string]entry)}
}

func (s *Store) Close() {}

func (s *Store) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.EmbedErr != nil {
		return nil, s.EmbedErr
	}
	if s.EmbedFunc != nil {
		return s.EmbedFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, vec []float32, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks[collection] == nil {
		s.chunks[collection] = make(map[string]entry)
	}
	s.chunks[collection][id] = entry{vec: vec, metadata: metadata}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, queryVec []float32, k int, minScore float64) ([]vector.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []vector.Hit
	for id, e := range s.chunks[collection] {
		score := cosineSimilarity(queryVec, e.vec)
		if score < minScore {
			continue
		}
		hits = append(hits, vector.Hit{ID: id, Score: score, Metadata: e.metadata})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	if hits == nil {
		hits = []vector.Hit{}
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// hashVector derives a small deterministic vector from s's bytes so that
// identical strings always embed identically without calling a real model.
func hashVector(s string) []float32 {
	const dim = 8
	v := make([]float32, dim)
	for i, c := range []byte(s) {
		v[i%dim] += float32(c)
	}
	return v
}
