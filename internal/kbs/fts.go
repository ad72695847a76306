package kbs

import "strings"

const tagQuotes = `"'`

// JoinTags encodes tags as the single space-separated column persisted for display and indexing.
func JoinTags(tags []string) string {
	tokens := make([]string, 0, len(tags))
	for _, tag := range tags {
		tokens = append(tokens, strings.Fields(tag)...)
	}
	return strings.Join(tokens, " ")
}

// SplitTags decodes the persisted tag column. Quote characters are stripped from every token and
// empty tokens are dropped.
func SplitTags(raw string) []string {
	parts := strings.Split(raw, " ")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		token := stripQuotes(part)
		if token == "" {
			continue
		}
		out = append(out, token)
	}
	return out
}

// BuildFTSQuery turns a keyword into an FTS5 query where every term must match literally.
func BuildFTSQuery(keyword string) string {
	terms := SearchTerms(keyword)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " ")
}

// BuildTSQuery turns a keyword into a PostgreSQL tsquery where every term must match.
func BuildTSQuery(keyword string) string {
	terms := SearchTerms(keyword)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, "'"+strings.ReplaceAll(term, `\`, "")+"'")
	}
	return strings.Join(quoted, " & ")
}

// EscapeLike escapes LIKE wildcards so the term matches as a literal substring with ESCAPE '\'.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}

// SearchTerms splits a keyword on any whitespace and strips quote characters, dropping empty terms.
func SearchTerms(keyword string) []string {
	fields := strings.Fields(keyword)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		term := stripQuotes(f)
		if term == "" {
			continue
		}
		out = append(out, term)
	}
	return out
}

func stripQuotes(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if strings.ContainsRune(tagQuotes, r) {
			return -1
		}
		return r
	}, s))
}
