package capture

import (
	"errors"

	ahocorasick "github.com/BobuSumisu/aho-corasick"
)

// Matcher finds the first of a fixed set of markers in a byte slice in one
// pass, independent of the number of markers. It is immutable once built and
// safe for concurrent use.
type Matcher struct {
	trie    *ahocorasick.Trie
	markers [][]byte
	maxLen  int
}

// NewMatcher builds a Matcher for markers. Markers must be non-empty.
func NewMatcher(markers ...[]byte) (*Matcher, error) {
	if len(markers) == 0 {
		return nil, errors.New("capture: no markers")
	}
	m := &Matcher{markers: make([][]byte, len(markers))}
	builder := ahocorasick.NewTrieBuilder()
	for i, marker := range markers {
		if len(marker) == 0 {
			return nil, errors.New("capture: empty marker")
		}
		m.markers[i] = append([]byte(nil), marker...)
		builder.AddPattern(m.markers[i])
		if len(marker) > m.maxLen {
			m.maxLen = len(marker)
		}
	}
	m.trie = builder.Build()
	return m, nil
}

// MustMatcher is like NewMatcher but panics on error. It is meant for
// package-level matchers built from constant markers.
func MustMatcher(markers ...[]byte) *Matcher {
	m, err := NewMatcher(markers...)
	if err != nil {
		panic(err)
	}
	return m
}

// MaxLen returns the length of the longest marker.
func (m *Matcher) MaxLen() int { return m.maxLen }

// Markers returns a copy of the marker set.
func (m *Matcher) Markers() [][]byte {
	out := make([][]byte, len(m.markers))
	for i, marker := range m.markers {
		out[i] = append([]byte(nil), marker...)
	}
	return out
}

// Find returns the end offset in b of the earliest-ending marker and the
// marker itself.
func (m *Matcher) Find(b []byte) (end int, marker []byte, ok bool) {
	match := m.trie.MatchFirst(b)
	if match == nil {
		return 0, nil, false
	}
	marker = match.Match()
	return int(match.Pos()) + len(marker), marker, true
}
