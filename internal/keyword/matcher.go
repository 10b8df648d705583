// Package keyword matches story titles against a configured keyword set.
package keyword

import (
	"fmt"
	"strings"
	"unicode"
)

// Matcher performs case-insensitive whole-word matching of text against a
// fixed keyword list. It is safe for concurrent use.
//
// A word is a run of Unicode letters, numbers and underscores, so "zork"
// does not match inside "Zorké" and "BCI" does not match inside "BCIfoo".
type Matcher struct {
	keywords []string
	patterns [][]rune
}

// New prepares one pattern per keyword. Blank keywords are ignored;
// duplicates (ignoring case) keep their first spelling.
func New(keywords []string) (*Matcher, error) {
	m := &Matcher{}
	seen := make(map[string]bool, len(keywords))

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true

		m.keywords = append(m.keywords, kw)
		m.patterns = append(m.patterns, []rune(kw))
	}

	if len(m.keywords) == 0 {
		return nil, fmt.Errorf("no usable keywords in %v", keywords)
	}
	return m, nil
}

// Match returns every keyword found in text, in configured order and casing.
// An empty result means text does not match.
func (m *Matcher) Match(text string) []string {
	runes := []rune(text)

	var matched []string
	for i, p := range m.patterns {
		if contains(runes, p) {
			matched = append(matched, m.keywords[i])
		}
	}
	return matched
}

// Keywords returns the active keyword list.
func (m *Matcher) Keywords() []string {
	return append([]string(nil), m.keywords...)
}

// contains reports whether kw occurs in text with a word boundary on both
// ends. A boundary sits between a word rune and a non-word rune, with the
// ends of text counting as non-word.
func contains(text, kw []rune) bool {
	for i := 0; i+len(kw) <= len(text); i++ {
		if foldAt(text, i, kw) && boundary(text, i) && boundary(text, i+len(kw)) {
			return true
		}
	}
	return false
}

func foldAt(text []rune, i int, kw []rune) bool {
	for j, r := range kw {
		if !foldEqual(text[i+j], r) {
			return false
		}
	}
	return true
}

// foldEqual compares two runes under simple Unicode case folding.
func foldEqual(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func boundary(text []rune, pos int) bool {
	before := pos > 0 && isWord(text[pos-1])
	after := pos < len(text) && isWord(text[pos])
	return before != after
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
