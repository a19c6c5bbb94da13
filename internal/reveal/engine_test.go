package reveal

import (
	"testing"

	"github.com/danieldreier/ankoma-flashcards/internal/deck"
	"github.com/danieldreier/ankoma-flashcards/internal/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testResolver = images.Resolver{BaseURL: "https://cdn.test", Subfolder: "anki"}

func clozeCard() deck.Card {
	return deck.Card{
		ID:        "c1",
		ModelName: deck.ModelCloze,
		Question:  `{{c2::Beta}} and {{c1::Alpha::first}} <img src="cell one.png">`,
		Answer:    `<div class="extra-section">{{c3::Gamma}} also {{c1::Alpha}}</div>`,
	}
}

func basicCard(id, answer string) deck.Card {
	return deck.Card{ID: id, ModelName: deck.ModelBasic, Question: "What is it?", Answer: answer}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		card deck.Card
		want Kind
	}{
		{"cloze in question", deck.Card{Question: "{{c1::x}}"}, KindCloze},
		{"cloze in answer only", deck.Card{Question: "q", Answer: "{{c1::x}}"}, KindCloze},
		{"basic", deck.Card{Question: "q", Answer: "a"}, KindBasic},
		{"occlusion by model", deck.Card{ModelName: "Image Occlusion Enhanced+", Question: "{{c1::x}}"}, KindOcclusion},
		{"occlusion by tag", deck.Card{Tags: []string{"#Image-Occlusion"}}, KindOcclusion},
		{"image alone is not occlusion", deck.Card{Question: `<img src="a.png">`}, KindBasic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.card, tt.card.Question, tt.card.Answer))
		})
	}
}

func TestClozeRevealFlow(t *testing.T) {
	e := New(testResolver)
	require.True(t, e.Load(clozeCard()))

	assert.Equal(t, KindCloze, e.Kind())
	assert.Equal(t, []int{1, 2, 3}, e.Indices())
	assert.Empty(t, e.Revealed())
	assert.False(t, e.AllRevealed())
	assert.False(t, e.AnswerVisible())

	v := e.Render()
	assert.Contains(t, v.QuestionHTML, `<span class="cloze-hidden" data-cloze-index="1">[first]</span>`)
	assert.Contains(t, v.QuestionHTML, `<img src="https://cdn.test/anki/cell_one.png"`)
	assert.Empty(t, v.AnswerHTML)

	require.True(t, e.Toggle(1))
	v = e.Render()
	assert.Contains(t, v.QuestionHTML, `<span class="cloze-revealed" data-cloze-index="1">Alpha</span>`)
	assert.Equal(t, []int{1}, v.Revealed)

	e.Toggle(2)
	e.Toggle(3)
	assert.True(t, e.AllRevealed())
	v = e.Render()
	assert.True(t, v.AnswerVisible)
	assert.Contains(t, v.AnswerHTML, `<span class="cloze-revealed" data-cloze-index="1">Alpha</span>`,
		"revealing an index in the question reveals it in the answer too")

	require.True(t, e.Toggle(2))
	assert.False(t, e.AllRevealed(), "toggling a revealed group hides it again")
}

func TestToggleRejectsUnknownIndex(t *testing.T) {
	e := New(testResolver)
	e.Load(clozeCard())
	assert.False(t, e.Toggle(9))
	assert.Empty(t, e.Revealed())

	e.Load(basicCard("b", "answer"))
	assert.False(t, e.Toggle(1))
}

func TestRevealAllAndReset(t *testing.T) {
	e := New(testResolver)
	e.Load(clozeCard())

	e.RevealAll()
	assert.True(t, e.AllRevealed())
	_, ok := e.NextUnrevealed()
	assert.False(t, ok)

	e.Reset()
	assert.Empty(t, e.Revealed())
	next, ok := e.NextUnrevealed()
	require.True(t, ok)
	assert.Equal(t, 1, next)
}

func TestLoadResetsOnNewCard(t *testing.T) {
	e := New(testResolver)
	e.Load(clozeCard())
	e.RevealAll()

	assert.False(t, e.Load(clozeCard()), "same card keeps its state")
	assert.True(t, e.AllRevealed())

	other := clozeCard()
	other.ID = "c2"
	assert.True(t, e.Load(other))
	assert.Empty(t, e.Revealed())

	e.Load(basicCard("b1", `<div class="extra-section">x</div>`))
	e.ToggleAnswer()
	require.True(t, e.AnswerShown())
	e.Load(basicCard("b2", `<div class="extra-section">y</div>`))
	assert.False(t, e.AnswerShown())
}

func TestToggleAnswer(t *testing.T) {
	e := New(testResolver)
	e.Load(basicCard("b", `<div class="extra-section">Answer <img src="x.png"></div>`))

	assert.Equal(t, KindBasic, e.Kind())
	assert.False(t, e.AnswerVisible())
	assert.True(t, e.ToggleAnswer())
	v := e.Render()
	assert.True(t, v.AnswerVisible)
	assert.Contains(t, v.AnswerHTML, `src="https://cdn.test/anki/x.png"`)
	assert.False(t, e.ToggleAnswer())
	assert.False(t, e.AnswerVisible())

	e.ToggleAnswer()
	e.Reset()
	assert.False(t, e.AnswerShown())
}

func TestBlankAnswerNeverVisible(t *testing.T) {
	e := New(testResolver)
	e.Load(basicCard("b", "   "))
	e.ToggleAnswer()
	assert.False(t, e.AnswerVisible())
	assert.Empty(t, e.Render().AnswerHTML)
}

func TestImageURLs(t *testing.T) {
	e := New(testResolver)
	e.Load(clozeCard())
	assert.Equal(t, []string{"https://cdn.test/anki/cell_one.png"}, e.ImageURLs())
}

func TestStateIsCopied(t *testing.T) {
	e := New(testResolver)
	e.Load(clozeCard())
	s, ok := e.State().(ClozeState)
	require.True(t, ok)
	s.Revealed[1] = struct{}{}
	assert.Empty(t, e.Revealed())

	e.Load(basicCard("b", "a"))
	assert.Equal(t, ToggleState{}, e.State())
}
