// Package deck models the card collection: the loaded section tree, the
// ankoma.json parser that builds it, and the tag-derived deck grouping.
package deck

import (
	"sort"
	"strings"

	gofsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Model names assigned during parsing.
const (
	ModelBasic     = "Basic"
	ModelCloze     = "Cloze"
	ModelOcclusion = "Image Occlusion Enhanced+++"
)

// OcclusionMarker identifies image-occlusion cards by model name, OcclusionTag by tag.
const (
	OcclusionMarker = "Image Occlusion Enhanced"
	OcclusionTag    = "image-occlusion"
)

// Card is one flashcard as supplied by the data loader. Cards are never mutated
// after loading.
type Card struct {
	ID        string            `json:"id"`
	CardID    int               `json:"card_id"`
	NoteID    int64             `json:"note_id"`
	DeckName  string            `json:"deck_name"`
	ModelName string            `json:"model_name"`
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Tags      []string          `json:"tags,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	// Review metadata as supplied. Type reuses the FSRS state enum
	// (New, Learning, Review); nothing here schedules reviews.
	Reviews  int          `json:"reviews"`
	Interval int          `json:"interval"`
	Type     gofsrs.State `json:"type"`
}

// IsOcclusion reports whether the card is an image-occlusion card. This looks only
// at the model name and tags, never at the presence of images.
func (c Card) IsOcclusion() bool {
	if strings.Contains(c.ModelName, OcclusionMarker) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), OcclusionTag) {
			return true
		}
	}
	return false
}

// ImageSources returns every rich-text field of the card that may embed images:
// question, answer and the auxiliary fields in name order.
func (c Card) ImageSources() []string {
	sources := []string{c.Question, c.Answer}
	for _, name := range sortedKeys(c.Fields) {
		if v := c.Fields[name]; v != "" {
			sources = append(sources, v)
		}
	}
	return sources
}

// HasAnswerContent reports whether the card's answer carries any section besides
// a citation.
func (c Card) HasAnswerContent() bool {
	for _, class := range []string{classExtra, classPersonalNotes, classTextbook} {
		if strings.Contains(c.Answer, class) {
			return true
		}
	}
	return false
}

// HasTag reports whether the card carries the given tag.
func (c Card) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
