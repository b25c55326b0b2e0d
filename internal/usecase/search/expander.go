package search

import "strings"

// aliasTable maps common developer-term shorthands both ways. Expansion is an
// exact, case-insensitive match on the whole input; no stemming or fuzzy
// logic beyond this fixed table.
var aliasTable = map[string][]string{
	"js":         {"javascript"},
	"javascript": {"js"},
	"ts":         {"typescript"},
	"typescript": {"ts"},
	"node":       {"nodejs", "node.js"},
	"nodejs":     {"node", "node.js"},
	"react":      {"reactjs", "react.js"},
	"reactjs":    {"react", "react.js"},
	"py":         {"python"},
	"python":     {"py"},
	"mongo":      {"mongodb"},
	"mongodb":    {"mongo"},
}

// expandQuery returns the original query plus any registered aliases,
// original first, without duplicates.
func expandQuery(q string) []string {
	out := []string{q}
	seen := map[string]struct{}{q: {}}
	for _, alias := range aliasTable[strings.ToLower(q)] {
		if _, dup := seen[alias]; dup {
			continue
		}
		seen[alias] = struct{}{}
		out = append(out, alias)
	}
	return out
}
