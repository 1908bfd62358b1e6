// Package ontology defines ACE's closed entity and relation type system, the
// validation rules against it, and the deterministic canonical-id and
// relation-label normalization functions every other component relies on.
//
// No other package may invent entity or relation types; everything flows
// through EntityType, RelationType, ValidateEntity, and ValidateRelation here.
package ontology

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

// EntityType is one of the closed set of node labels ACE understands.
type EntityType string

const (
	Faction   EntityType = "Faction"
	Character EntityType = "Character"
	Location  EntityType = "Location"
	Resource  EntityType = "Resource"
	Event     EntityType = "Event"
)

// EntityTypes lists every valid EntityType, in a stable order.
var EntityTypes = []EntityType{Faction, Character, Location, Resource, Event}

// Valid reports whether t is one of the enumerated entity types.
func (t EntityType) Valid() bool {
	for _, v := range EntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// RelationType is one of the closed set of edge labels ACE understands.
type RelationType string

const (
	ControlsResource RelationType = "CONTROLS_RESOURCE"
	IsAllyOf         RelationType = "IS_ALLY_OF"
	ParticipatedIn   RelationType = "PARTICIPATED_IN"
	LocatedIn        RelationType = "LOCATED_IN"
	Commands         RelationType = "COMMANDS"
	MemberOf         RelationType = "MEMBER_OF"
)

// RelationTypes lists every valid RelationType, in a stable order.
var RelationTypes = []RelationType{ControlsResource, IsAllyOf, ParticipatedIn, LocatedIn, Commands, MemberOf}

// Valid reports whether t is one of the enumerated relation types.
func (t RelationType) Valid() bool {
	for _, v := range RelationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// requiredProperties lists the property keys every entity of a given type
// must carry. Order matters only for deterministic error messages.
var requiredProperties = map[EntityType][]string{
	Faction:   {"name", "alignment"},
	Character: {"name", "role"},
	Location:  {"name", "type"},
	Resource:  {"name", "type"},
	Event:     {"name", "type", "date"},
}

// ValidateEntity checks attrs against the required-property table for
// typ. It returns ok=true only when typ is a recognized type and every
// required property is present with a non-empty value. Errors enumerate
// every missing field; ACE never guesses or fills defaults.
func ValidateEntity(typ EntityType, attrs map[string]any) (bool, []string) {
	var errs []string

	if !typ.Valid() {
		return false, []string{fmt.Sprintf("unknown entity type %q", typ)}
	}

	for _, field := range requiredProperties[typ] {
		v, ok := attrs[field]
		if !ok || isEmptyValue(v) {
			errs = append(errs, fmt.Sprintf("missing required field %q for type %s", field, typ))
		}
	}

	return len(errs) == 0, errs
}

// ValidateRelation checks that typ is a known relation type and that
// fromType/toType are known entity types. It does not enforce a
// type-compatibility matrix beyond that — the graph adapter is the
// authority on whether a given (fromType, typ, toType) triple makes
// narrative sense.
func ValidateRelation(typ RelationType, fromType, toType EntityType, _ map[string]any) (bool, []string) {
	var errs []string

	if !typ.Valid() {
		errs = append(errs, fmt.Sprintf("unknown relation type %q", typ))
	}
	if !fromType.Valid() {
		errs = append(errs, fmt.Sprintf("unknown source entity type %q", fromType))
	}
	if !toType.Valid() {
		errs = append(errs, fmt.Sprintf("unknown target entity type %q", toType))
	}

	return len(errs) == 0, errs
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Slug lowercases s, trims surrounding whitespace, replaces internal
// whitespace runs with a single hyphen, and drops every remaining character
// outside [a-z0-9-]. It is idempotent: Slug(Slug(x)) == Slug(x) for all x,
// and its output contains only [a-z0-9-].
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRun.ReplaceAllString(s, "-")
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)
}

// CanonicalID derives the stable, deterministic identifier for an entity
// from its type and display name: lower(type) + "-" + slug(name).
func CanonicalID(typ EntityType, name string) string {
	return strings.ToLower(string(typ)) + "-" + Slug(name)
}

// relationSynonyms maps common free-text relation phrasings to their
// canonical RelationType. Checked before substring matching.
var relationSynonyms = map[string]RelationType{
	"allied with":     IsAllyOf,
	"ally of":         IsAllyOf,
	"is allied with":  IsAllyOf,
	"controls":        ControlsResource,
	"controls the":    ControlsResource,
	"owns":            ControlsResource,
	"participated in": ParticipatedIn,
	"fought in":       ParticipatedIn,
	"located in":      LocatedIn,
	"based in":        LocatedIn,
	"commands":        Commands,
	"leads":           Commands,
	"member of":       MemberOf,
	"belongs to":      MemberOf,
}

// fuzzyThreshold is the minimum Jaro-Winkler similarity against a synonym key
// for NormalizeRelationLabel to accept a fuzzy match.
const fuzzyThreshold = 0.92

// NormalizeRelationLabel maps a raw, free-text relation phrase to a
// canonical RelationType. It tries, in order: an exact match against the
// synonym table, a substring match, a fuzzy (Jaro-Winkler) match against the
// synonym keys, and finally falls back to upper-snake-casing the input
// verbatim (which may not be a member of RelationTypes — callers that need a
// closed-set guarantee must check Valid()).
//
// NormalizeRelationLabel is idempotent: normalizing an already-canonical
// label returns it unchanged. Lowercased, a canonical label either resolves
// through the synonym table to its own type ("commands" exactly,
// "controls_resource" by its "controls" substring, underscored labels such
// as "member_of" by fuzzy match against their space-separated synonym) or
// falls through to the snake_case fallback, which is a no-op on an already
// upper-snake string.
func NormalizeRelationLabel(raw string) RelationType {
	lower := strings.ToLower(strings.TrimSpace(raw))

	if rt, ok := relationSynonyms[lower]; ok {
		return rt
	}

	for phrase, rt := range relationSynonyms {
		if strings.Contains(lower, phrase) {
			return rt
		}
	}

	best := RelationType(snakeCase(raw))
	bestScore := 0.0
	for phrase, rt := range relationSynonyms {
		score := matchr.JaroWinkler(lower, phrase, true)
		if score > bestScore && score >= fuzzyThreshold {
			bestScore = score
			best = rt
		}
	}

	return best
}

func snakeCase(s string) string {
	s = strings.TrimSpace(s)
	s = whitespaceRun.ReplaceAllString(s, "_")
	return strings.ToUpper(s)
}
