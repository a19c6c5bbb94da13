package cloze

import (
	"fmt"
	"html/template"
	"sort"
)

// Span classes assigned to rendered clozes.
const (
	ClassHidden   = "cloze-hidden"
	ClassRevealed = "cloze-revealed"
)

// IndexSet is a set of cloze indices.
type IndexSet map[int]struct{}

// NewIndexSet returns a set holding the given indices.
func NewIndexSet(indices ...int) IndexSet {
	s := make(IndexSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// Has reports whether i is in the set.
func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Sorted returns the members in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// ContainsAll reports whether every index is in the set.
func (s IndexSet) ContainsAll(indices []int) bool {
	for _, i := range indices {
		if !s.Has(i) {
			return false
		}
	}
	return true
}

// Interactive is text rendered with clickable cloze spans.
type Interactive struct {
	HTML        string
	Matches     []Match
	AllRevealed bool
}

// RenderInteractive wraps every cloze in a span carrying its index. Clozes whose
// index is in revealed show their content, the rest show the hint or placeholder.
func RenderInteractive(text string, revealed IndexSet) Interactive {
	matches := Extract(text)
	html := Replace(text, matches, func(m Match) string {
		if revealed.Has(m.Index) {
			return span(ClassRevealed, m.Index, m.Content)
		}
		return span(ClassHidden, m.Index, template.HTMLEscapeString(Blank(m)))
	})
	return Interactive{
		HTML:        html,
		Matches:     matches,
		AllRevealed: revealed.ContainsAll(DistinctIndices(matches)),
	}
}

func span(class string, index int, body string) string {
	return fmt.Sprintf(`<span class="%s" data-cloze-index="%d">%s</span>`, class, index, body)
}
