package deck

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	gofsrs "github.com/open-spaced-repetition/go-fsrs"
)

// Note model UUIDs found in ankoma.json.
const (
	APModelUUID = "cb0c02c4-e328-11ef-a4df-cf9f22b82781"
	CPModelUUID = "cb0a45d8-e328-11ef-a4df-cf9f22b82781"
)

var occlusionModelUUIDs = map[string]bool{
	"8748b282-73b3-11f0-bc32-8b3dff665248": true, // IOE+++ (11 fields)
	"877ffc4c-73b3-11f0-bc32-8b3dff665248": true, // IOE+ compact
	"8745afec-73b3-11f0-bc32-8b3dff665248": true, // legacy
}

const (
	classExtra         = "extra-section"
	classPersonalNotes = "personal-notes-section"
	classTextbook      = "textbook-section"
	classCitation      = "citation-section"
)

var (
	svgRefRE        = regexp.MustCompile(`\.svg["']?`)
	svgMaskRE       = regexp.MustCompile(`(?i)-Q\.svg|-A\.svg`)
	citationSplitRE = regexp.MustCompile(`(?:<br\s*/?>){2,}|(?:\n\s*){2,}`)
	nonDigitRE      = regexp.MustCompile(`[^0-9]`)
)

// RawDeck is one deck node of ankoma.json.
type RawDeck struct {
	Name     string     `json:"name"`
	Notes    []RawNote  `json:"notes"`
	Children []*RawDeck `json:"children"`
}

// RawNote is one note of ankoma.json. Field meaning depends on the note model.
type RawNote struct {
	GUID          string   `json:"guid"`
	NoteModelUUID string   `json:"note_model_uuid"`
	Fields        []string `json:"fields"`
	Tags          []string `json:"tags"`
}

// DecodeJSON parses raw ankoma.json bytes and builds the section tree.
func DecodeJSON(b []byte, now time.Time) (*Data, error) {
	var root RawDeck
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("failed to decode deck json: %w", err)
	}
	return Parse(&root, now), nil
}

// Parse builds the section tree from the root deck. The root itself is not a
// section; its children become the top-level sections. Decks with neither
// cards nor sections below them are dropped.
func Parse(root *RawDeck, now time.Time) *Data {
	data := &Data{LoadedAt: now}
	if root == nil {
		return data
	}
	for _, child := range root.Children {
		if s := parseDeck(child, nil, &data.TotalCards); s != nil {
			data.Sections = append(data.Sections, s)
		}
	}
	return data
}

func parseDeck(d *RawDeck, parent []string, total *int) *Section {
	if d == nil {
		return nil
	}
	path := make([]string, 0, len(parent)+1)
	path = append(path, parent...)
	path = append(path, d.Name)

	cards := make([]Card, 0, len(d.Notes))
	for i, note := range d.Notes {
		cards = append(cards, ConvertNote(note, d.Name, i))
	}
	*total += len(cards)

	var subsections []*Section
	for _, child := range d.Children {
		if s := parseDeck(child, path, total); s != nil {
			subsections = append(subsections, s)
		}
	}

	if len(cards) == 0 && len(subsections) == 0 {
		return nil
	}
	return &Section{
		ID:          SectionID(path),
		Name:        d.Name,
		Path:        path,
		Cards:       cards,
		Subsections: subsections,
	}
}

// ConvertNote turns a note into a card. index is the note's position within its deck.
func ConvertNote(note RawNote, deckName string, index int) Card {
	card := Card{
		ID:       note.GUID,
		CardID:   index + 1,
		NoteID:   noteID(note.GUID, index),
		DeckName: deckName,
		Interval: 1,
		Type:     gofsrs.New,
	}
	if card.ID == "" {
		card.ID = fmt.Sprintf("%s-%d", deckName, index)
	}

	if isOcclusionNote(note) {
		fillOcclusion(&card, note)
	} else {
		fillText(&card, note)
	}
	return card
}

func noteID(guid string, index int) int64 {
	digits := nonDigitRE.ReplaceAllString(guid, "")
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil && n != 0 {
		return n
	}
	return int64(index)
}

func isOcclusionNote(note RawNote) bool {
	if occlusionModelUUIDs[note.NoteModelUUID] {
		return true
	}
	for _, f := range note.Fields {
		if strings.Contains(f, "<svg") || svgRefRE.MatchString(f) || svgMaskRE.MatchString(f) {
			return true
		}
	}
	return false
}

func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func fillOcclusion(card *Card, note RawNote) {
	f := note.Fields
	header, image, footer := field(f, 1), field(f, 2), field(f, 3)
	questionMask, answerMask := field(f, 8), field(f, 9)

	card.ModelName = ModelOcclusion
	card.Fields = map[string]string{
		"ID (hidden)":   field(f, 0),
		"Header":        header,
		"Image":         image,
		"Footer":        footer,
		"Remarks":       field(f, 4),
		"Sources":       field(f, 5),
		"Extra 1":       field(f, 6),
		"Extra 2":       field(f, 7),
		"Question Mask": questionMask,
		"Answer Mask":   answerMask,
		"Original Mask": field(f, 10),
	}
	card.Tags = append(append([]string{}, note.Tags...), "#"+OcclusionTag)

	if answerMask == "" {
		answerMask = questionMask
	}
	card.Question = occlusionFrame(header, questionMask, image, footer)

	var extras strings.Builder
	for _, e := range []struct{ label, value string }{
		{"Remarks", field(f, 4)},
		{"Sources", field(f, 5)},
		{"Extra 1", field(f, 6)},
		{"Extra 2", field(f, 7)},
	} {
		if strings.TrimSpace(e.value) != "" {
			fmt.Fprintf(&extras, `<div class="io-extra-entry"><div class="io-field-descr">%s</div>%s</div>`, e.label, e.value)
		}
	}
	card.Answer = occlusionFrame(header, answerMask, image, footer)
	if extras.Len() > 0 {
		card.Answer += `<div id="io-extra-wrapper"><div id="io-extra">` + extras.String() + `</div></div>`
	}
}

func occlusionFrame(header, mask, image, footer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div id="io-header">%s</div>`, header)
	fmt.Fprintf(&b, `<div id="io-wrapper"><div id="io-overlay">%s</div><div id="io-original">%s</div></div>`, mask, image)
	if footer != "" {
		fmt.Fprintf(&b, `<div id="io-footer">%s</div>`, footer)
	}
	return b.String()
}

// isCPLayout decides the field layout. CP notes put the text in field 0; AP notes
// (and Hemepath, even under CP) carry a header first.
func isCPLayout(note RawNote, deckName string) bool {
	isAPModel := note.NoteModelUUID == APModelUUID
	isCPModel := note.NoteModelUUID == CPModelUUID

	var hemepathTag, cpTag bool
	for _, t := range note.Tags {
		switch {
		case strings.HasPrefix(t, "#ANKOMA::CP::Hemepath"):
			hemepathTag = true
		case strings.HasPrefix(t, "#ANKOMA::CP::"):
			cpTag = true
		}
	}

	cpDeck := strings.HasPrefix(deckName, "CP")
	treatAsAP := isAPModel || hemepathTag ||
		(!isCPModel && (!cpDeck || strings.Contains(deckName, "Hemepath")))
	return !treatAsAP && (isCPModel || cpTag || cpDeck)
}

func fillText(card *Card, note RawNote) {
	f := note.Fields
	var header, text, extra, personal, textbook, citation string
	if isCPLayout(note, card.DeckName) {
		text, extra, personal = field(f, 0), field(f, 1), field(f, 2)
		citation = field(f, 3)
		if citation == "" {
			citation = field(f, 5)
		}
	} else {
		header, text, extra = field(f, 0), field(f, 1), field(f, 2)
		personal, textbook, citation = field(f, 3), field(f, 4), field(f, 5)
	}

	var answer strings.Builder
	if strings.TrimSpace(extra) != "" {
		fmt.Fprintf(&answer, `<div class="%s">%s</div>`, classExtra, extra)
	}
	if strings.TrimSpace(personal) != "" {
		fmt.Fprintf(&answer, `<div class="%s"><h4>Personal Notes</h4>%s</div>`, classPersonalNotes, personal)
	}
	if strings.TrimSpace(textbook) != "" {
		fmt.Fprintf(&answer, `<div class="%s"><h4>Textbook</h4>%s</div>`, classTextbook, textbook)
	}
	if strings.TrimSpace(citation) != "" {
		fmt.Fprintf(&answer, `<div class="%s"><h4>Citation</h4>%s</div>`, classCitation, formatCitations(citation))
	}

	card.ModelName = ModelBasic
	if strings.Contains(text, "{{c") && strings.Contains(text, "::") {
		card.ModelName = ModelCloze
	}
	card.Question = text
	card.Answer = answer.String()
	card.Tags = append([]string{}, note.Tags...)
	card.Fields = map[string]string{
		"Header":         header,
		"Text":           text,
		"Extra":          extra,
		"Personal Notes": personal,
		"Textbook":       textbook,
		"Citation":       citation,
	}
}

// formatCitations separates citations split by blank lines or double breaks.
func formatCitations(citation string) string {
	var parts []string
	for _, p := range citationSplitRE.Split(citation, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) <= 1 {
		return citation
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		fmt.Fprintf(&b, `<div style="margin-top: 4px;">%s</div>`, p)
	}
	return b.String()
}
