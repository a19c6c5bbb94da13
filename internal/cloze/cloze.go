// Package cloze finds and renders cloze deletions of the form {{cN::content[::hint]}}.
package cloze

import (
	"regexp"
	"sort"
	"strconv"
)

// Placeholder is shown in place of a hidden cloze that carries no hint.
const Placeholder = "[...]"

// clozeRE matches {{c<N>::<content>[::<hint>]}}. Content may not contain ':' or '}',
// the hint may contain anything except '}'.
var clozeRE = regexp.MustCompile(`\{\{c(\d+)::([^:}]+)(?:::([^}]+))?\}\}`)

// Match is one cloze deletion found in a string. Start and End are byte offsets into
// the string it was extracted from; Full is text[Start:End].
type Match struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Hint    string `json:"hint,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Full    string `json:"full"`
}

// HasHint reports whether the cloze carries a hint.
func (m Match) HasHint() bool {
	return m.Hint != ""
}

// Extract returns every cloze in text in order of appearance.
// Markers whose index does not fit in an int are left alone as literal text.
func Extract(text string) []Match {
	locs := clozeRE.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		index, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		m := Match{
			Index:   index,
			Content: text[loc[4]:loc[5]],
			Start:   loc[0],
			End:     loc[1],
			Full:    text[loc[0]:loc[1]],
		}
		if loc[6] >= 0 {
			m.Hint = text[loc[6]:loc[7]]
		}
		matches = append(matches, m)
	}
	return matches
}

// HasCloze reports whether text contains at least one cloze deletion.
func HasCloze(text string) bool {
	return len(Extract(text)) > 0
}

// Indices returns the distinct cloze indices in text in ascending order.
func Indices(text string) []int {
	return DistinctIndices(Extract(text))
}

// DistinctIndices returns the distinct indices of the given matches in ascending order.
func DistinctIndices(matches ...[]Match) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, group := range matches {
		for _, m := range group {
			if _, ok := seen[m.Index]; ok {
				continue
			}
			seen[m.Index] = struct{}{}
			out = append(out, m.Index)
		}
	}
	sort.Ints(out)
	return out
}

// Answer renders text with every cloze replaced by its content.
func Answer(text string) string {
	return Replace(text, Extract(text), func(m Match) string {
		return m.Content
	})
}

// Question renders text with the clozes of the active index hidden and every other
// cloze shown. A hidden cloze becomes "[hint]" when it has a hint, else "[...]".
func Question(text string, active int) string {
	return Replace(text, Extract(text), func(m Match) string {
		if m.Index != active {
			return m.Content
		}
		return Blank(m)
	})
}

// Strip removes all cloze markup, leaving only the content.
func Strip(text string) string {
	return Answer(text)
}

// Blank returns the text shown for a hidden cloze.
func Blank(m Match) string {
	if m.HasHint() {
		return "[" + m.Hint + "]"
	}
	return Placeholder
}

// Replace rebuilds text substituting each match with render(match). Matches must
// have been extracted from text; they are applied from the rightmost to the leftmost
// so earlier offsets stay valid.
func Replace(text string, matches []Match, render func(Match) string) string {
	if len(matches) == 0 {
		return text
	}
	ordered := make([]Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	out := text
	for _, m := range ordered {
		if m.Start < 0 || m.End > len(out) || m.Start > m.End {
			continue
		}
		out = out[:m.Start] + render(m) + out[m.End:]
	}
	return out
}
