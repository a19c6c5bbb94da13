package deck

import (
	"errors"
	"strings"
	"time"
)

// ErrSectionNotFound is returned when a section id does not exist in the tree
var ErrSectionNotFound = errors.New("section not found")

// Section is a node of the deck tree. A parent owns its subsections exclusively;
// the tree is built once per load and only read afterwards.
type Section struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Path        []string   `json:"path"`
	Cards       []Card     `json:"cards"`
	Subsections []*Section `json:"subsections"`
}

// Data is a parsed deck file.
type Data struct {
	Sections   []*Section `json:"sections"`
	TotalCards int        `json:"total_cards"`
	LoadedAt   time.Time  `json:"loaded_at"`
}

// SectionStats summarizes a section. DirectCards counts only the section's own
// cards; TotalCards adds every descendant's total.
type SectionStats struct {
	TotalCards      int `json:"total_cards"`
	DirectCards     int `json:"direct_cards"`
	SubsectionCount int `json:"subsection_count"`
	MaxDepth        int `json:"max_depth"`
}

// SectionID derives a section id from its path.
func SectionID(path []string) string {
	id := strings.ToLower(strings.Join(path, "::"))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ':' {
			return r
		}
		return '-'
	}, id)
}

// FindSectionByID searches the tree depth-first and returns the first section
// with the given id, or nil.
func FindSectionByID(sections []*Section, id string) *Section {
	for _, s := range sections {
		if s.ID == id {
			return s
		}
		if found := FindSectionByID(s.Subsections, id); found != nil {
			return found
		}
	}
	return nil
}

// AllCards returns the section's own cards followed by those of every
// subsection, recursively, in tree order.
func (s *Section) AllCards() []Card {
	cards := make([]Card, 0, len(s.Cards))
	cards = append(cards, s.Cards...)
	for _, sub := range s.Subsections {
		cards = append(cards, sub.AllCards()...)
	}
	return cards
}

// Stats computes the section statistics by walking the subtree.
func (s *Section) Stats() SectionStats {
	stats := SectionStats{
		DirectCards:     len(s.Cards),
		TotalCards:      len(s.Cards),
		SubsectionCount: len(s.Subsections),
		MaxDepth:        1,
	}
	for _, sub := range s.Subsections {
		subStats := sub.Stats()
		stats.TotalCards += subStats.TotalCards
		if subStats.MaxDepth+1 > stats.MaxDepth {
			stats.MaxDepth = subStats.MaxDepth + 1
		}
	}
	return stats
}

// Resolve returns the section to study when s is selected: s itself when it owns
// cards, otherwise its first descendant in pre-order that has any. It returns nil
// when the subtree holds no cards at all.
func (s *Section) Resolve() *Section {
	if len(s.Cards) > 0 {
		return s
	}
	for _, sub := range s.Subsections {
		if r := sub.Resolve(); r != nil {
			return r
		}
	}
	return nil
}

// FirstSectionWithCards returns the first section in pre-order that owns cards.
// It is the default selection when no valid id was chosen.
func FirstSectionWithCards(sections []*Section) *Section {
	for _, s := range sections {
		if r := s.Resolve(); r != nil {
			return r
		}
	}
	return nil
}

// Select looks up id and resolves it to a section with cards. An unknown id
// falls back to the first section with cards and reports ErrSectionNotFound
// alongside that fallback.
func Select(sections []*Section, id string) (*Section, error) {
	if s := FindSectionByID(sections, id); s != nil {
		if r := s.Resolve(); r != nil {
			return r, nil
		}
		return s, nil
	}
	return FirstSectionWithCards(sections), ErrSectionNotFound
}

// FlattenSections lists every section in pre-order.
func FlattenSections(sections []*Section) []*Section {
	var flat []*Section
	var walk func([]*Section)
	walk = func(list []*Section) {
		for _, s := range list {
			flat = append(flat, s)
			walk(s.Subsections)
		}
	}
	walk(sections)
	return flat
}

// FilterSections keeps the sections whose name, card text or tags contain query
// (case-insensitive), or that have a matching subsection. Matching sections are
// returned whole; their subsections are not filtered.
func FilterSections(sections []*Section, query string) []*Section {
	q := strings.ToLower(query)
	var out []*Section
	for _, s := range sections {
		if s.matches(q) {
			out = append(out, s)
		}
	}
	return out
}

func (s *Section) matches(q string) bool {
	if strings.Contains(strings.ToLower(s.Name), q) {
		return true
	}
	for _, c := range s.Cards {
		if strings.Contains(strings.ToLower(c.Question), q) || strings.Contains(strings.ToLower(c.Answer), q) {
			return true
		}
		for _, tag := range c.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
	}
	for _, sub := range s.Subsections {
		if sub.matches(q) {
			return true
		}
	}
	return false
}

// AllCards collects the cards of every section in the list.
func AllCards(sections []*Section) []Card {
	var cards []Card
	for _, s := range sections {
		cards = append(cards, s.AllCards()...)
	}
	return cards
}
