package cachedb

import "strings"

// sanitizeFTS quotes each whitespace-separated term so FTS5's query syntax
// (AND/OR/NOT/NEAR, column filters, prefix `*`, grouping parens) can never
// reach the engine as an operator — every term becomes a literal phrase
// match. NEAR is additionally dropped outright rather than quoted, since
// quoting "near" would still change the term a caller plausibly meant to
// search for literally. Terms made only of `*` wildcards are dropped as
// well, so a wildcard-only query is degenerate.
func sanitizeFTS(query string) (ftsQuery string, degenerate bool) {
	words := strings.Fields(query)
	kept := words[:0]
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, "")
		if strings.Trim(w, "*") == "" {
			continue
		}
		if strings.EqualFold(w, "NEAR") {
			continue
		}
		kept = append(kept, `"`+w+`"`)
	}

	if len(kept) == 0 {
		return "", true
	}
	return strings.Join(kept, " "), false
}

// likePattern escapes SQLite LIKE metacharacters (% and _) in a raw
// search term before it's wrapped in wildcards for Phase 1 substring
// matching.
func likePattern(term string) string {
	var b strings.Builder
	for _, r := range term {
		switch r {
		case '%', '_', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
