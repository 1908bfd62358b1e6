package ingestion

import (
	"context"
	"testing"

	graphmock "github.com/worldgraph/ace/pkg/graph/mock"
	"github.com/worldgraph/ace/pkg/ontology"
	"github.com/worldgraph/ace/pkg/vector"
	vectormock "github.com/worldgraph/ace/pkg/vector/mock"
)

func testCanon() canonicalizeResult {
	rel := DefinedRelation{FromMention: "Ashen Concord", ToMention: "Glass Mines", Type: ontology.ControlsResource}
	return canonicalizeResult{
		Groups: []CanonicalGroup{
			{CanonicalID: ontology.CanonicalID(ontology.Faction, "Ashen Concord"), Type: ontology.Faction, Attributes: map[string]any{"name": "Ashen Concord", "alignment": "neutral"}, Names: []string{"Ashen Concord"}},
			{CanonicalID: ontology.CanonicalID(ontology.Resource, "Glass Mines"), Type: ontology.Resource, Attributes: map[string]any{"name": "Glass Mines", "type": "mineral"}, Names: []string{"Glass Mines"}},
		},
		Relations: []DefinedRelation{rel},
		Resolved: map[DefinedRelation][2]string{
			rel: {ontology.CanonicalID(ontology.Faction, "Ashen Concord"), ontology.CanonicalID(ontology.Resource, "Glass Mines")},
		},
	}
}

func TestWritePersistsEntitiesAndRelationsAndEmbeds(t *testing.T) {
	g := graphmock.New()
	vs := vectormock.New()
	p := NewPipeline(nil, nil, g, vs)

	result, timing := p.write(context.Background(), "src-1", "source text", testCanon(), nil)
	if timing.Stage != "write" {
		t.Fatalf("unexpected stage %q", timing.Stage)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if result.EntitiesCreated != 2 || result.RelationshipsCreated != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	hits, err := vs.Search(context.Background(), vector.CollectionEntity, hashVectorForTest("Faction: Ashen Concord"), 5, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected the entity description to have been embedded")
	}
}

func TestWriteFailsWhenGraphUpsertErrors(t *testing.T) {
	g := graphmock.New()
	// Force a dangling relation endpoint by upserting a canon group whose
	// relation points at an entity never included in the group.
	canon := testCanon()
	canon.Relations[0] = DefinedRelation{FromMention: "Ashen Concord", ToMention: "Ghost", Type: ontology.ControlsResource}
	canon.Resolved = map[DefinedRelation][2]string{
		canon.Relations[0]: {ontology.CanonicalID(ontology.Faction, "Ashen Concord"), ontology.CanonicalID(ontology.Resource, "Ghost")},
	}

	p := NewPipeline(nil, nil, g, nil)
	result, _ := p.write(context.Background(), "src-1", "text", canon, nil)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for the unresolved relation endpoint")
	}
	if result.EntitiesCreated != 0 {
		t.Fatalf("expected rollback to leave EntitiesCreated at 0, got %d", result.EntitiesCreated)
	}
}

func hashVectorForTest(s string) []float32 {
	const dim = 8
	v := make([]float32, dim)
	for i, c := range []byte(s) {
		v[i%dim] += float32(c)
	}
	return v
}
