package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/vector"
)

const (
	vectorSearchK        = 5
	vectorMinScore       = 0.7
	keywordSearchLimit   = 5
)

// historian runs the Historian node: keyword extraction, a parallel
// graph-keyword-search and vector-search fan out, then a relation fetch over
// the combined entity set.
func (w *Workflow) historian(ctx context.Context, query string) (RetrievedContext, error) {
	keywords := extractKeywords(query)

	var (
		vectorHits []vector.Hit
		byKeyword  [][]graph.Entity
	)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		vecs, err := w.vectorStore.Embed(egCtx, []string{query})
		if err != nil {
			return fmt.Errorf("workflow: historian: embed query: %w", err)
		}
		if len(vecs) == 0 {
			return nil
		}
		hits, err := w.vectorStore.Search(egCtx, vector.CollectionLore, vecs[0], vectorSearchK, vectorMinScore)
		if err != nil {
			return fmt.Errorf("workflow: historian: vector search: %w", err)
		}
		vectorHits = hits
		return nil
	})

	byKeyword = make([][]graph.Entity, len(keywords))
	for i, kw := range keywords {
		i, kw := i, kw
		eg.Go(func() error {
			hits, err := w.graphStore.FindEntitiesByKeyword(egCtx, kw, keywordSearchLimit)
			if err != nil {
				return fmt.Errorf("workflow: historian: keyword search %q: %w", kw, err)
			}
			byKeyword[i] = hits
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return RetrievedContext{}, err
	}

	entities := dedupeByCanonicalID(byKeyword...)

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.CanonicalID)
	}
	var relations []graph.Relation
	if len(ids) > 0 {
		rels, err := w.graphStore.FindRelationsForEntities(ctx, ids)
		if err != nil {
			return RetrievedContext{}, fmt.Errorf("workflow: historian: fetch relations: %w", err)
		}
		relations = rels
	}

	return RetrievedContext{
		Entities:       entities,
		Relations:      relations,
		VectorHits:     vectorHits,
		RelevanceScore: relevanceScore(vectorHits),
	}, nil
}

func dedupeByCanonicalID(groups ...[]graph.Entity) []graph.Entity {
	seen := make(map[string]struct{})
	var out []graph.Entity
	for _, group := range groups {
		for _, e := range group {
			if _, ok := seen[e.CanonicalID]; ok {
				continue
			}
			seen[e.CanonicalID] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// relevanceScore is proportional to both how many vector hits came back and
// their average similarity, capped at 1.
func relevanceScore(hits []vector.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hits {
		sum += h.Score
	}
	avg := sum / float64(len(hits))
	coverage := float64(len(hits)) / float64(vectorSearchK)
	if coverage > 1 {
		coverage = 1
	}
	return avg * coverage
}
