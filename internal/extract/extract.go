// Package extract infers table references from SQL text.
//
// The extraction is a best-effort heuristic built on regular expressions, not
// a SQL parse. It misses dynamically built identifiers and can be fooled by
// table names that only appear inside string literals. Callers that need more
// fidelity can supply their own Extractor.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Extractor returns the known tables referenced by a SQL text.
type Extractor interface {
	// Extract returns the sorted set of tables in known that sql depends on.
	// current is never part of the result.
	Extract(sql, current string, known map[string]bool) []string
}

var (
	lineComment  = regexp.MustCompile(`--[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

	identifier = `([A-Za-z0-9_.]+)`
	alias      = `(?:\s+(?:AS\s+)?[A-Za-z0-9_]+)?`
	stmtEnd    = `|\s*;|\s*\)|\s*$)`

	// RE2 prefers the alias alternative first and falls back to treating the
	// next word as the boundary keyword, so "FROM a WHERE" still matches.
	fromPattern = regexp.MustCompile(`(?im)\bFROM\s+` + identifier + alias +
		`(?:\s+(?:WHERE|JOIN|GROUP|ORDER|HAVING|LIMIT|ON|USING|UNION|QUALIFY|LEFT|RIGHT|INNER|FULL|CROSS)\b` + stmtEnd)
	joinPattern = regexp.MustCompile(`(?im)(?:\b(?:INNER|LEFT|RIGHT|FULL|CROSS)(?:\s+OUTER)?\s+)?\bJOIN\s+` + identifier + alias +
		`(?:\s+(?:ON|USING|WHERE|GROUP|ORDER|HAVING|LIMIT|JOIN|LEFT|RIGHT|INNER|FULL|CROSS|UNION|QUALIFY)\b` + stmtEnd)
	dmlPattern = regexp.MustCompile(`(?im)\b(?:INSERT\s+INTO|UPDATE|MERGE\s+INTO)\s+` + identifier + alias +
		`(?:\s+(?:SELECT|SET|WHEN|USING|VALUES)\b|\s*\(` + stmtEnd)

	patterns = []*regexp.Regexp{fromPattern, joinPattern, dmlPattern}
)

// Normalize upper-cases a table identifier. A Caser is stateful, so each
// call gets its own.
func Normalize(name string) string {
	return cases.Upper(language.Und).String(name)
}

// StripComments removes -- line comments, then /* */ block comments. A /*
// or */ inside a line comment therefore never opens or closes a block.
func StripComments(sql string) string {
	sql = lineComment.ReplaceAllString(sql, "")
	return blockComment.ReplaceAllString(sql, " ")
}

// RegexExtractor matches FROM, JOIN and INSERT/UPDATE/MERGE references.
// A candidate is kept only when it also appears as a word after a
// SELECT, WHERE, JOIN, ON or USING keyword somewhere in the text.
type RegexExtractor struct{}

// NewRegexExtractor returns the default extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract implements Extractor.
func (RegexExtractor) Extract(sql, current string, known map[string]bool) []string {
	cleaned := StripComments(sql)
	current = Normalize(current)

	found := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(cleaned, -1) {
			name := lastSegment(m[1])
			if name == "" || name == current || !known[name] || found[name] {
				continue
			}
			if confirmed(cleaned, name) {
				found[name] = true
			}
		}
	}

	deps := make([]string, 0, len(found))
	for name := range found {
		deps = append(deps, name)
	}
	sort.Strings(deps)
	return deps
}

func lastSegment(ref string) string {
	ref = strings.Trim(ref, ".")
	if i := strings.LastIndex(ref, "."); i >= 0 {
		ref = ref[i+1:]
	}
	return Normalize(ref)
}

func confirmed(sql, name string) bool {
	re, err := regexp.Compile(`(?is)\b(?:SELECT|WHERE|JOIN|ON|USING)\b.*?\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(sql)
}
