package deck

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

// TagPrefix starts the tags the deck grouping is derived from:
// #ANKOMA::<Deck>::<Category>[::<Subcategory>].
const TagPrefix = "#ANKOMA::"

// ErrCategoryNotFound is returned when a deck or category id is unknown
var ErrCategoryNotFound = errors.New("category not found")

var (
	camelRE = regexp.MustCompile(`([a-z])([A-Z])`)
	sepRE   = regexp.MustCompile(`[_-]`)
	spaceRE = regexp.MustCompile(`\s+`)
)

var deckNames = map[string]string{
	"AP": "Anatomic Pathology",
	"CP": "Clinical Pathology",
}

// TagPath is the parsed form of an ANKOMA tag.
type TagPath struct {
	Deck        string
	Category    string
	Subcategory string
}

// DeckGroup is a top-level group of the tag-derived view.
type DeckGroup struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Categories []*Category `json:"categories"`
	TotalCards int         `json:"total_cards"`
}

// Category holds the cards tagged with one (deck, category) pair.
type Category struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Cards         []Card   `json:"cards"`
	Subcategories []string `json:"subcategories"`
}

// FormatTagName turns a tag token into a display name: camel case is split,
// "&" gets spaces around it, "_" and "-" become spaces and whitespace collapses.
// Applying it twice gives the same result as applying it once.
func FormatTagName(name string) string {
	if name == "" {
		return name
	}
	name = camelRE.ReplaceAllString(name, "$1 $2")
	name = strings.ReplaceAll(name, "&", " & ")
	name = sepRE.ReplaceAllString(name, " ")
	name = spaceRE.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// DeckName returns the display name for a deck key. Unknown keys are shown as is.
func DeckName(key string) string {
	if name, ok := deckNames[key]; ok {
		return name
	}
	return key
}

// ParseTag extracts the tag path from the card's first ANKOMA tag. ok is false
// when the card has no such tag or it names fewer than two tokens.
func ParseTag(c Card) (TagPath, bool) {
	for _, tag := range c.Tags {
		if !strings.HasPrefix(tag, TagPrefix) {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(tag, TagPrefix), "::")
		if len(parts) < 2 {
			return TagPath{}, false
		}
		p := TagPath{Deck: parts[0], Category: parts[1]}
		if len(parts) > 2 {
			p.Subcategory = parts[2]
		}
		return p, true
	}
	return TagPath{}, false
}

// CategoryID builds the id of a category from the deck key and category token.
func CategoryID(deckKey, category string) string {
	return deckKey + "::" + FormatTagName(category)
}

// Organize groups cards by their ANKOMA tag. Cards without a usable tag are left
// out. Decks and categories are sorted by name, subcategories alphabetically.
func Organize(cards []Card) []*DeckGroup {
	byID := make(map[string]*DeckGroup)
	var decks []*DeckGroup

	for _, c := range cards {
		p, ok := ParseTag(c)
		if !ok {
			continue
		}
		d, exists := byID[p.Deck]
		if !exists {
			d = &DeckGroup{ID: p.Deck, Name: DeckName(p.Deck), Type: p.Deck}
			byID[p.Deck] = d
			decks = append(decks, d)
		}

		id := CategoryID(p.Deck, p.Category)
		var cat *Category
		for _, existing := range d.Categories {
			if existing.ID == id {
				cat = existing
				break
			}
		}
		if cat == nil {
			cat = &Category{ID: id, Name: FormatTagName(p.Category)}
			d.Categories = append(d.Categories, cat)
		}
		cat.Cards = append(cat.Cards, c)
		d.TotalCards++

		if sub := FormatTagName(p.Subcategory); sub != "" && !contains(cat.Subcategories, sub) {
			cat.Subcategories = append(cat.Subcategories, sub)
		}
	}

	for _, d := range decks {
		sort.SliceStable(d.Categories, func(i, j int) bool {
			return lessName(d.Categories[i].Name, d.Categories[j].Name)
		})
		for _, cat := range d.Categories {
			sort.Strings(cat.Subcategories)
		}
	}
	sort.SliceStable(decks, func(i, j int) bool {
		return lessName(decks[i].Name, decks[j].Name)
	})
	return decks
}

// FindDeck returns the deck group with the given id, or nil.
func FindDeck(decks []*DeckGroup, id string) *DeckGroup {
	for _, d := range decks {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// FindCategory looks up a category within a deck.
func FindCategory(decks []*DeckGroup, deckID, categoryID string) (*Category, error) {
	d := FindDeck(decks, deckID)
	if d == nil {
		return nil, ErrCategoryNotFound
	}
	for _, c := range d.Categories {
		if c.ID == categoryID {
			return c, nil
		}
	}
	return nil, ErrCategoryNotFound
}

// FilterBySubcategory keeps the cards whose tag formats to the given subcategory.
// An empty subcategory keeps every card.
func FilterBySubcategory(cards []Card, subcategory string) []Card {
	if subcategory == "" {
		return cards
	}
	var out []Card
	for _, c := range cards {
		p, ok := ParseTag(c)
		if ok && FormatTagName(p.Subcategory) == subcategory {
			out = append(out, c)
		}
	}
	return out
}

// SubcategoryCount reports how many cards of the category fall in subcategory.
func (c *Category) SubcategoryCount(subcategory string) int {
	return len(FilterBySubcategory(c.Cards, subcategory))
}

// lessName orders names case-insensitively, falling back to byte order on ties.
func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
