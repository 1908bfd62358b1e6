package ontology

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// FactionAttrs, CharacterAttrs, LocationAttrs, ResourceAttrs, and EventAttrs
// are the Go-native shapes used purely to derive JSON Schemas for structured
// LM output; ACE's actual property bags stay open maps (see DESIGN.md).

type FactionAttrs struct {
	Name      string `json:"name" jsonschema:"the faction's display name"`
	Alignment string `json:"alignment" jsonschema:"moral/political alignment, e.g. Lawful_Evil"`
}

type CharacterAttrs struct {
	Name string `json:"name" jsonschema:"the character's display name"`
	Role string `json:"role" jsonschema:"the character's narrative role"`
}

type LocationAttrs struct {
	Name string `json:"name" jsonschema:"the location's display name"`
	Type string `json:"type" jsonschema:"kind of location, e.g. mountain range, city"`
}

type ResourceAttrs struct {
	Name string `json:"name" jsonschema:"the resource's display name"`
	Type string `json:"type" jsonschema:"kind of resource, e.g. mineral, foodstuff"`
}

type EventAttrs struct {
	Name string `json:"name" jsonschema:"the event's display name"`
	Type string `json:"type" jsonschema:"kind of event, e.g. battle, treaty"`
	Date string `json:"date" jsonschema:"in-world date or era for the event"`
}

// schemaFor builds a JSON-Schema-as-map for T, suitable for llm.Schema.Schema.
func schemaFor[T any]() map[string]any {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("ontology: derive schema: %v", err))
	}
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("ontology: marshal schema: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic(fmt.Sprintf("ontology: unmarshal schema: %v", err))
	}
	return m
}

// SchemaFor returns the JSON Schema (as a map) describing the required
// attribute shape for typ, or nil if typ is not recognized.
func SchemaFor(typ EntityType) map[string]any {
	switch typ {
	case Faction:
		return schemaFor[FactionAttrs]()
	case Character:
		return schemaFor[CharacterAttrs]()
	case Location:
		return schemaFor[LocationAttrs]()
	case Resource:
		return schemaFor[ResourceAttrs]()
	case Event:
		return schemaFor[EventAttrs]()
	default:
		return nil
	}
}

// DraftEntity, DraftRelation and GeneratedDraft are the Narrator's
// structured output: a generated text passage plus the entities and
// relations it proposes, wrapped with the model's own confidence and
// reasoning. [NarratorDraftSchema] derives its schema from GeneratedDraft.
type DraftEntity struct {
	CanonicalID string         `json:"canonical_id"`
	Type        string         `json:"type"`
	Properties  map[string]any `json:"properties"`
}

type DraftRelation struct {
	From string `json:"from"`
	Type string `json:"type"`
	To   string `json:"to"`
}

type GeneratedDraft struct {
	Text          string          `json:"text"`
	Entities      []DraftEntity   `json:"entities"`
	Relationships []DraftRelation `json:"relationships"`
	Confidence    float64         `json:"confidence"`
	Reasoning     string          `json:"reasoning"`
}

// NarratorDraftSchema returns the JSON Schema for the Narrator's structured
// output.
func NarratorDraftSchema() map[string]any {
	return schemaFor[GeneratedDraft]()
}
