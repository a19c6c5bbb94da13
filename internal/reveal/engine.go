// Package reveal tracks what is visible on the card being studied: revealed
// cloze groups for cloze cards, a shown/hidden answer for everything else.
package reveal

import (
	"strings"

	"github.com/danieldreier/ankoma-flashcards/internal/cloze"
	"github.com/danieldreier/ankoma-flashcards/internal/deck"
	"github.com/danieldreier/ankoma-flashcards/internal/images"
)

// Kind classifies a card for rendering.
type Kind int

const (
	KindBasic Kind = iota
	KindCloze
	KindOcclusion
)

func (k Kind) String() string {
	switch k {
	case KindCloze:
		return "cloze"
	case KindOcclusion:
		return "occlusion"
	default:
		return "basic"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Classify picks the card kind; the first match wins. Occlusion is decided from
// the model name and tags only. question and answer are the card texts after
// image extraction.
func Classify(card deck.Card, question, answer string) Kind {
	if card.IsOcclusion() {
		return KindOcclusion
	}
	if cloze.HasCloze(question) || cloze.HasCloze(answer) {
		return KindCloze
	}
	return KindBasic
}

// State is the per-card render mode. It is either ClozeState or ToggleState.
type State interface {
	isState()
}

// ClozeState holds the revealed cloze indices, shared by question and answer.
type ClozeState struct {
	Revealed cloze.IndexSet
}

// ToggleState is the answer switch of basic and occlusion cards.
type ToggleState struct {
	Shown bool
}

func (ClozeState) isState()  {}
func (ToggleState) isState() {}

type field struct {
	clean   string
	images  []images.ExtractedImage
	matches []cloze.Match
}

func newField(r images.Resolver, text string) field {
	imgs, clean := r.Extract(text)
	return field{clean: clean, images: imgs, matches: cloze.Extract(clean)}
}

// Engine holds the reveal state of one displayed card at a time. It is not safe
// for concurrent use.
type Engine struct {
	resolver images.Resolver
	loaded   bool
	card     deck.Card
	kind     Kind
	question field
	answer   field
	indices  []int
	state    State
}

// New returns an engine resolving card images with r.
func New(r images.Resolver) *Engine {
	return &Engine{resolver: r, state: ToggleState{}}
}

// Load makes card the displayed card. When its identity differs from the
// previous card the state starts over: nothing revealed, answer hidden. Loading
// the same card again refreshes its content and keeps the state. Load reports
// whether the state was reset.
func (e *Engine) Load(card deck.Card) bool {
	reset := !e.loaded || card.ID != e.card.ID
	e.loaded = true
	e.card = card
	e.question = newField(e.resolver, card.Question)
	e.answer = newField(e.resolver, card.Answer)

	kind := Classify(card, e.question.clean, e.answer.clean)
	if kind != e.kind {
		reset = true
	}
	e.kind = kind
	if kind == KindCloze {
		e.indices = cloze.DistinctIndices(e.question.matches, e.answer.matches)
	} else {
		e.indices = nil
	}

	if reset {
		e.state = e.initialState()
	}
	return reset
}

func (e *Engine) initialState() State {
	if e.kind == KindCloze {
		return ClozeState{Revealed: cloze.NewIndexSet()}
	}
	return ToggleState{}
}

// Card returns the displayed card.
func (e *Engine) Card() deck.Card { return e.card }

// Kind returns the displayed card's classification.
func (e *Engine) Kind() Kind { return e.kind }

// State returns a copy of the current render mode.
func (e *Engine) State() State {
	switch s := e.state.(type) {
	case ClozeState:
		revealed := cloze.NewIndexSet(s.Revealed.Sorted()...)
		return ClozeState{Revealed: revealed}
	default:
		return s
	}
}

// Indices returns the distinct cloze indices of question and answer, ascending.
func (e *Engine) Indices() []int {
	return append([]int(nil), e.indices...)
}

// Revealed returns the revealed indices, ascending.
func (e *Engine) Revealed() []int {
	if s, ok := e.state.(ClozeState); ok {
		return s.Revealed.Sorted()
	}
	return nil
}

func (e *Engine) hasIndex(index int) bool {
	for _, i := range e.indices {
		if i == index {
			return true
		}
	}
	return false
}

// Toggle flips the revealed state of one cloze group. It returns false when
// the card is not a cloze card or has no group with that index.
func (e *Engine) Toggle(index int) bool {
	s, ok := e.state.(ClozeState)
	if !ok || !e.hasIndex(index) {
		return false
	}
	if s.Revealed.Has(index) {
		delete(s.Revealed, index)
	} else {
		s.Revealed[index] = struct{}{}
	}
	return true
}

// RevealAll reveals every cloze group of the card.
func (e *Engine) RevealAll() {
	if _, ok := e.state.(ClozeState); ok {
		e.state = ClozeState{Revealed: cloze.NewIndexSet(e.indices...)}
	}
}

// ToggleAnswer flips the answer switch of a basic or occlusion card and
// returns the new value. Cloze cards are unaffected and report false.
func (e *Engine) ToggleAnswer() bool {
	s, ok := e.state.(ToggleState)
	if !ok {
		return false
	}
	s.Shown = !s.Shown
	e.state = s
	return s.Shown
}

// Reset hides everything on the current card again.
func (e *Engine) Reset() {
	e.state = e.initialState()
}

// AllRevealed reports whether every cloze index of the card is revealed. It is
// false for cards without clozes.
func (e *Engine) AllRevealed() bool {
	s, ok := e.state.(ClozeState)
	if !ok || len(e.indices) == 0 {
		return false
	}
	return s.Revealed.ContainsAll(e.indices)
}

// NextUnrevealed returns the lowest cloze index not yet revealed.
func (e *Engine) NextUnrevealed() (int, bool) {
	s, ok := e.state.(ClozeState)
	if !ok {
		return 0, false
	}
	for _, i := range e.indices {
		if !s.Revealed.Has(i) {
			return i, true
		}
	}
	return 0, false
}

// AnswerShown reports the toggle flag of basic and occlusion cards.
func (e *Engine) AnswerShown() bool {
	s, ok := e.state.(ToggleState)
	return ok && s.Shown
}

// AnswerVisible reports whether the answer field is displayed: for cloze cards
// once everything is revealed, otherwise when the answer was toggled on. A
// blank answer is never visible.
func (e *Engine) AnswerVisible() bool {
	if strings.TrimSpace(e.card.Answer) == "" {
		return false
	}
	if e.kind == KindCloze {
		return e.AllRevealed()
	}
	return e.AnswerShown()
}

// View is the rendered state of the displayed card.
type View struct {
	Kind          Kind   `json:"kind"`
	QuestionHTML  string `json:"question_html"`
	AnswerHTML    string `json:"answer_html,omitempty"`
	AnswerVisible bool   `json:"answer_visible"`
	Indices       []int  `json:"cloze_indices,omitempty"`
	Revealed      []int  `json:"revealed,omitempty"`
	AllRevealed   bool   `json:"all_revealed"`
	AnswerShown   bool   `json:"answer_shown"`
}

// Render produces the markup of question and answer with cloze spans marked
// and images put back. The answer markup is set only while it is visible.
func (e *Engine) Render() View {
	v := View{
		Kind:          e.kind,
		QuestionHTML:  e.renderField(e.question),
		AnswerVisible: e.AnswerVisible(),
		Indices:       e.Indices(),
		Revealed:      e.Revealed(),
		AllRevealed:   e.AllRevealed(),
		AnswerShown:   e.AnswerShown(),
	}
	if v.AnswerVisible {
		v.AnswerHTML = e.renderField(e.answer)
	}
	return v
}

func (e *Engine) renderField(f field) string {
	markup := f.clean
	if s, ok := e.state.(ClozeState); ok && len(f.matches) > 0 {
		markup = cloze.RenderInteractive(f.clean, s.Revealed).HTML
	}
	return images.Render(markup, f.images)
}

// ImageURLs returns the resolved URLs of the images on the displayed card.
func (e *Engine) ImageURLs() []string {
	var urls []string
	for _, f := range []field{e.question, e.answer} {
		for _, img := range f.images {
			urls = append(urls, img.Src)
		}
	}
	return urls
}
