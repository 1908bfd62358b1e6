package ingestion

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/worldgraph/ace/pkg/graph"
	"github.com/worldgraph/ace/pkg/vector"
)

// write persists a canonicalized batch to the graph, then best-effort embeds
// the source text and each entity's description into the vector store.
// Embedding failures are recorded as warnings; they never fail the graph
// write, since the graph is the system of record and the vector index is a
// derived retrieval aid.
func (p *Pipeline) write(ctx context.Context, sourceID, text string, canon canonicalizeResult, metadata map[string]any) (Result, StageTiming) {
	start := time.Now()

	result := Result{
		Warnings: append([]string{}, canon.Warnings...),
	}

	entities := make([]graph.Entity, 0, len(canon.Groups))
	for _, g := range canon.Groups {
		entities = append(entities, graph.Entity{
			CanonicalID: g.CanonicalID,
			Type:        g.Type,
			Properties:  g.Attributes,
			MergedFrom:  g.MergedFrom,
		})
	}

	relations := make([]graph.Relation, 0, len(canon.Relations))
	for _, r := range canon.Relations {
		ids := canon.Resolved[r]
		relations = append(relations, graph.Relation{
			From: ids[0],
			Type: r.Type,
			To:   ids[1],
		})
	}

	if err := p.graphStore.UpsertEntityGroup(ctx, entities, relations); err != nil {
		result.Errors = append(result.Errors, stageError("write", err))
		return result, StageTiming{Stage: "write", Duration: time.Since(start)}
	}

	result.Entities = entities
	result.Relations = relations
	result.EntitiesCreated = len(entities)
	result.RelationshipsCreated = len(relations)

	if p.vectorStore != nil {
		if err := p.embedBatch(ctx, sourceID, text, canon.Groups); err != nil {
			result.Warnings = append(result.Warnings, stageError("write: embed", err))
		}
	}

	return result, StageTiming{Stage: "write", Duration: time.Since(start)}
}

// embedBatch fans out one embed+upsert per chunk (the source text plus one
// description per canonical entity) concurrently via errgroup, grounded on
// the same pattern used for hot-context assembly.
func (p *Pipeline) embedBatch(ctx context.Context, sourceID, text string, groups []CanonicalGroup) error {
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return p.embedAndUpsert(egCtx, vector.CollectionLore, sourceID, text, map[string]any{"source_id": sourceID})
	})

	for _, g := range groups {
		g := g
		eg.Go(func() error {
			desc := entityDescription(g)
			meta := map[string]any{"canonical_id": g.CanonicalID, "type": string(g.Type)}
			return p.embedAndUpsert(egCtx, vector.CollectionEntity, g.CanonicalID, desc, meta)
		})
	}

	return eg.Wait()
}

func (p *Pipeline) embedAndUpsert(ctx context.Context, collection, id, text string, metadata map[string]any) error {
	vecs, err := p.vectorStore.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed %s/%s: %w", collection, id, err)
	}
	if len(vecs) == 0 {
		return fmt.Errorf("embed %s/%s: no vector returned", collection, id)
	}
	if err := p.vectorStore.Upsert(ctx, collection, id, vecs[0], metadata); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func entityDescription(g CanonicalGroup) string {
	name, _ := g.Attributes["name"].(string)
	if name == "" && len(g.Names) > 0 {
		name = g.Names[0]
	}
	desc := fmt.Sprintf("%s: %s", g.Type, name)
	if d, ok := g.Attributes["description"].(string); ok && d != "" {
		desc = fmt.Sprintf("%s. %s", desc, d)
	}
	return desc
}
