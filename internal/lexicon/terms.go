package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// TermSet is the banned-term lookup table. It is built once and never
// mutated afterwards, so concurrent scans share it without locking.
type TermSet struct {
	terms   map[string]struct{}
	dropped []string
}

// NewTermSet keeps every term that is a single token under Tokenize.
// Anything else ("bad-word", "café") could never equal a token and is
// reported by Dropped instead.
func NewTermSet(terms []string) *TermSet {
	set := &TermSet{terms: make(map[string]struct{}, len(terms))}
	for _, term := range terms {
		normalized := strings.ToLower(strings.TrimSpace(term))
		if normalized == "" {
			continue
		}
		if tokens := Tokenize(normalized); len(tokens) != 1 || tokens[0] != normalized {
			set.dropped = append(set.dropped, term)
			continue
		}
		set.terms[normalized] = struct{}{}
	}
	return set
}

// Dropped lists the configured terms that were not loaded.
func (s *TermSet) Dropped() []string {
	if s == nil {
		return nil
	}
	return s.dropped
}

// LoadTermFile reads one term per line. Blank lines and lines starting
// with '#' are ignored. Extra terms are merged into the result.
func LoadTermFile(path string, extra ...string) (*TermSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open term file: %w", err)
	}
	defer f.Close()

	terms := append([]string(nil), extra...)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read term file: %w", err)
	}

	return NewTermSet(terms), nil
}

func (s *TermSet) Contains(term string) bool {
	if s == nil {
		return false
	}
	_, ok := s.terms[term]
	return ok
}

func (s *TermSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.terms)
}
