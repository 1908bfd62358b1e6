package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/worldgraph/ace/pkg/ontology"
)

// canonicalizeResult is the outcome of the Canonicalize stage: the grouped
// canonical entities plus relations whose endpoints resolved, and warnings
// for everything dropped along the way.
type canonicalizeResult struct {
	Groups    []CanonicalGroup
	Relations []DefinedRelation
	Resolved  map[DefinedRelation][2]string // relation -> (fromCanonicalID, toCanonicalID)
	Warnings  []string
}

// canonicalize computes a canonical id for each valid defined entity, groups
// by that id applying the merge rule, then resolves relation endpoints by
// case-insensitive trimmed name match against any merged mention. Relations
// with either side unresolved are dropped with a warning.
func (p *Pipeline) canonicalize(entities []DefinedEntity, relations []DefinedRelation) (canonicalizeResult, StageTiming) {
	start := time.Now()

	var warnings []string
	groupsByID := make(map[string]*CanonicalGroup)
	var order []string

	for _, e := range entities {
		if !e.Valid {
			warnings = append(warnings, fmt.Sprintf("dropped entity %q: %s", e.Mention, strings.Join(e.Violations, "; ")))
			continue
		}
		name := entityName(e)
		canonicalID := ontology.CanonicalID(e.Type, name)

		group, ok := groupsByID[canonicalID]
		if !ok {
			group = &CanonicalGroup{
				CanonicalID: canonicalID,
				Type:        e.Type,
				Attributes:  copyAttrs(e.Attributes),
			}
			groupsByID[canonicalID] = group
			order = append(order, canonicalID)
		}
		group.MergedFrom = append(group.MergedFrom, e.TransientID)
		group.Names = append(group.Names, e.Mention, name)

		if group.Attributes == nil {
			group.Attributes = copyAttrs(e.Attributes)
			continue
		}
		for k, v := range e.Attributes {
			existing, present := group.Attributes[k]
			if !present || isEmptyAttr(existing) || e.Confidence > 0.7 {
				group.Attributes[k] = v
			}
		}
	}

	groups := make([]CanonicalGroup, 0, len(order))
	for _, id := range order {
		groups = append(groups, *groupsByID[id])
	}

	nameIndex := buildNameIndex(groups)

	resolved := make(map[DefinedRelation][2]string)
	var keptRelations []DefinedRelation
	for _, r := range relations {
		fromID, fromOK := nameIndex[normalizeName(r.FromMention)]
		toID, toOK := nameIndex[normalizeName(r.ToMention)]
		if !fromOK || !toOK {
			warnings = append(warnings, fmt.Sprintf("dropped relation %s -[%s]-> %s: unresolved endpoint", r.FromMention, r.Type, r.ToMention))
			continue
		}
		resolved[r] = [2]string{fromID, toID}
		keptRelations = append(keptRelations, r)
	}

	return canonicalizeResult{
		Groups:    groups,
		Relations: keptRelations,
		Resolved:  resolved,
		Warnings:  warnings,
	}, StageTiming{Stage: "canonicalize", Duration: time.Since(start)}
}

func entityName(e DefinedEntity) string {
	if name, ok := e.Attributes["name"].(string); ok && strings.TrimSpace(name) != "" {
		return name
	}
	if strings.TrimSpace(e.Mention) != "" {
		return e.Mention
	}
	return "unknown"
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func buildNameIndex(groups []CanonicalGroup) map[string]string {
	index := make(map[string]string)
	for _, g := range groups {
		for _, n := range g.Names {
			index[normalizeName(n)] = g.CanonicalID
		}
	}
	return index
}

func isEmptyAttr(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

func copyAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
