package store

import (
	"regexp"
	"strings"
)

// Wildcard matches a mailbox name against a pattern where '%' means
// "zero or more arbitrary characters". The pattern covers the entire name:
// there is no substring matching.
//
// '%' is the only metacharacter. Everything else is literal, including '?',
// which in this grammar matches only a literal question mark, never "any
// one character". The hierarchy delimiter has no special meaning either;
// "INBOX.%" constrains the match purely through the literal dot.
type Wildcard string

// wildcardMeta is the only metacharacter of the pattern grammar.
const wildcardMeta = '%'

// Matches reports whether name satisfies the pattern.
func (w Wildcard) Matches(name string) bool {
	pattern := string(w)
	if !strings.ContainsRune(pattern, wildcardMeta) {
		return pattern == name
	}

	segments := strings.Split(pattern, string(wildcardMeta))

	// Anchored at the start: the first literal segment must be a prefix.
	first := segments[0]
	if !strings.HasPrefix(name, first) {
		return false
	}
	rest := name[len(first):]

	// Middle segments must appear in order; each '%' absorbs the gap.
	for _, seg := range segments[1 : len(segments)-1] {
		if seg == "" {
			continue
		}
		idx := strings.Index(rest, seg)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(seg):]
	}

	// Anchored at the end: the last literal segment must be a suffix of
	// whatever remains.
	return strings.HasSuffix(rest, segments[len(segments)-1])
}

func (w Wildcard) String() string { return "Wildcard(" + string(w) + ")" }

// SQLLikePattern translates the pattern for a SQL LIKE predicate using '\'
// as the escape character. LIKE metacharacters occurring literally in the
// pattern ('_', '%' never occurs literally, and the escape itself) are
// escaped so the backend matcher reproduces the two-symbol grammar exactly.
//
// Use as: name LIKE <pattern> ESCAPE '\'.
func (w Wildcard) SQLLikePattern() string {
	var sb strings.Builder
	sb.Grow(len(w))
	for _, r := range string(w) {
		switch r {
		case wildcardMeta:
			sb.WriteByte('%')
		case '_', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// RegexpPattern translates the pattern into an anchored regular expression
// source string. Literal runs are quoted so regex metacharacters ('?', '.',
// '*', ...) in mailbox names stay literal; each '%' becomes ".*". The (?s)
// flag makes '.' include newlines, since '%' absorbs any character.
//
// Suitable for regex-native backends (e.g. a MongoDB $regex predicate).
func (w Wildcard) RegexpPattern() string {
	parts := strings.Split(string(w), string(wildcardMeta))
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return "(?s)^" + strings.Join(quoted, ".*") + "$"
}

// Regexp compiles the translated pattern. The translation never produces
// an invalid expression, so Compile is safe here.
func (w Wildcard) Regexp() *regexp.Regexp {
	return regexp.MustCompile(w.RegexpPattern())
}

// EscapeSQLLike escapes a literal string for use inside a SQL LIKE pattern
// with '\' as the escape character. Backends use this to build native
// children lookups ("<parent><delimiter>%") from untrusted mailbox names.
func EscapeSQLLike(literal string) string {
	var sb strings.Builder
	sb.Grow(len(literal))
	for _, r := range literal {
		switch r {
		case '%', '_', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// HasChildName reports whether candidate names a descendant of parent under
// the given delimiter: parent + delimiter + non-empty suffix. This is the
// reference predicate for Mapper.HasChildren; the caller remains
// responsible for scoping to one tenant.
func HasChildName(parent, candidate string, delimiter rune) bool {
	prefix := parent + string(delimiter)
	return len(candidate) > len(prefix) && strings.HasPrefix(candidate, prefix)
}
