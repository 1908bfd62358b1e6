package workflow

import "strings"

// stopWords mirrors the small closed list used to strip common function
// words before extracting query terms for keyword search.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "which": true, "who": true, "whom": true,
	"where": true, "when": true, "how": true, "why": true, "not": true,
	"no": true, "nor": true, "if": true, "then": true, "than": true,
	"so": true, "as": true, "about": true, "into": true, "between": true,
}

const maxKeywords = 6

// extractKeywords lowercases query, strips stop words, and returns every
// remaining token of at least 4 characters, deduplicated and capped at
// maxKeywords.
func extractKeywords(query string) []string {
	words := strings.Fields(query)
	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		lower := strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]{}"))
		if len(lower) < 4 || stopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		terms = append(terms, lower)
		if len(terms) >= maxKeywords {
			break
		}
	}
	return terms
}
