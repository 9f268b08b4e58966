// Package textnorm holds the deterministic text canonicalization every
// matching and classification step is built on. All functions are pure: they
// never fail on malformed input, the worst case is an empty token set.
package textnorm

import (
	"sort"
	"strings"
	"unicode"
)

// Stop words are filler tokens and unit/packaging noise that carry no signal
// for matching procurement descriptions.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "for": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "by": {}, "with": {}, "is": {}, "at": {},
	"from": {}, "as": {}, "per": {}, "ea": {}, "each": {}, "set": {},
	"pkg": {}, "package": {}, "box": {}, "case": {}, "unit": {}, "lot": {},
	"item": {}, "no": {}, "number": {},
}

// Normalize lower-cases, replaces every rune outside [a-z0-9] with a space
// and collapses whitespace. Identical descriptions from different sources
// collapse to the same key.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// TokenSet is an unordered set of tokens. Overlap between sets is computed as
// set intersection; duplicates and order are irrelevant.
type TokenSet map[string]struct{}

// Tokenize normalizes text and extracts its token set, dropping stop words,
// single-character tokens and bare numbers shorter than three digits (sizes,
// pack counts).
func Tokenize(text string) TokenSet {
	out := TokenSet{}
	for _, tok := range strings.Fields(Normalize(text)) {
		if len(tok) <= 1 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if len(tok) < 3 && isDigits(tok) {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func (s TokenSet) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// SharedCount returns the size of the intersection with other.
func (s TokenSet) SharedCount(other TokenSet) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			n++
		}
	}
	return n
}

// Jaccard returns |intersection| / |union| of two token sets, 0 when either
// is empty.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := a.SharedCount(b)
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// Sorted returns the tokens as a sorted slice, for stable storage and
// deterministic serialization.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for tok := range s {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// FromSlice rebuilds a token set from stored tokens.
func FromSlice(tokens []string) TokenSet {
	out := make(TokenSet, len(tokens))
	for _, tok := range tokens {
		out[tok] = struct{}{}
	}
	return out
}
