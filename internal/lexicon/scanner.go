// Package lexicon implements whole-token matching of text against the
// banned-term list.
package lexicon

import (
	"strings"
	"unicode"

	"petamigos/contentguard/internal/models"
)

const forbiddenWordReason = "Forbidden word detected: "

type Scanner struct {
	terms *TermSet
}

func NewScanner(terms *TermSet) *Scanner {
	return &Scanner{terms: terms}
}

// Scan reports the first token, left to right, that is a banned term.
// Matching is on whole tokens after normalization; a banned term inside a
// longer token does not match.
func (s *Scanner) Scan(text string) models.ScanResult {
	if text == "" {
		return models.Pass()
	}

	for _, token := range Tokenize(text) {
		if s.terms.Contains(token) {
			return models.Block(forbiddenWordReason + token)
		}
	}
	return models.Pass()
}

// Tokenize lowercases text, turns every rune that is neither a word rune
// nor whitespace into a single space, and splits on whitespace runs.
func Tokenize(text string) []string {
	normalized := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	return strings.Fields(normalized)
}

// isWordRune matches the ASCII word class [A-Za-z0-9_]. Accented and
// non-Latin letters split tokens, so they cannot be glued onto a banned
// term to hide it.
func isWordRune(r rune) bool {
	return r == '_' ||
		('a' <= r && r <= 'z') ||
		('A' <= r && r <= 'Z') ||
		('0' <= r && r <= '9')
}
