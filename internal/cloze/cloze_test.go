package cloze

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderTest struct {
	Name     string
	Text     string
	Active   int
	Expected string
}

func TestQuestion(t *testing.T) {
	tests := []renderTest{
		{
			Name:     "single cloze hidden",
			Text:     "The {{c1::Foo}} is bar.",
			Active:   1,
			Expected: "The [...] is bar.",
		},
		{
			Name:     "hint replaces placeholder",
			Text:     "The {{c1::Foo::bar hint}} is bar.",
			Active:   1,
			Expected: "The [bar hint] is bar.",
		},
		{
			Name:     "active 1 hides first, shows second",
			Text:     "{{c1::A}} and {{c2::B}}",
			Active:   1,
			Expected: "[...] and B",
		},
		{
			Name:     "active 2 hides second, shows first",
			Text:     "{{c1::A}} and {{c2::B}}",
			Active:   2,
			Expected: "A and [...]",
		},
		{
			Name:     "same index hidden everywhere",
			Text:     "{{c3::x}} {{c1::y}} {{c3::z::hint}}",
			Active:   3,
			Expected: "[...] y [hint]",
		},
		{
			Name:     "active index absent shows everything",
			Text:     "{{c1::A}} and {{c2::B}}",
			Active:   7,
			Expected: "A and B",
		},
		{
			Name:     "replacement longer than match",
			Text:     "{{c1::a::a much longer hint than the content}}{{c2::b}}",
			Active:   1,
			Expected: "[a much longer hint than the content]b",
		},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			assert.Equal(t, test.Expected, Question(test.Text, test.Active))
		})
	}
}

func TestAnswer(t *testing.T) {
	assert.Equal(t, "Foo is bar.", Answer("{{c1::Foo}} is bar."))
	assert.Equal(t, "Foo and Bar", Answer("{{c1::Foo::hint}} and {{c12::Bar}}"))
	assert.Equal(t, "no clozes", Answer("no clozes"))
}

func TestExtract(t *testing.T) {
	text := "a {{c2::beta::second}} b {{c10::gamma}}"
	matches := Extract(text)
	require.Len(t, matches, 2)

	assert.Equal(t, 2, matches[0].Index)
	assert.Equal(t, "beta", matches[0].Content)
	assert.Equal(t, "second", matches[0].Hint)
	assert.Equal(t, "{{c2::beta::second}}", matches[0].Full)
	assert.Equal(t, matches[0].Full, text[matches[0].Start:matches[0].End])

	assert.Equal(t, 10, matches[1].Index)
	assert.False(t, matches[1].HasHint())
	assert.Equal(t, matches[1].Full, text[matches[1].Start:matches[1].End])
}

func TestMalformedClozeIsLiteral(t *testing.T) {
	inputs := []string{
		"{{c1::unterminated",
		"{{cX::non numeric}}",
		"{{c::missing index}}",
		"{{c1::has:colon}}",
		"{{c99999999999999999999999::overflow}}",
	}
	for _, in := range inputs {
		assert.False(t, HasCloze(in), in)
		assert.Equal(t, in, Strip(in), in)
		assert.Equal(t, in, Question(in, 1), in)
	}
}

func TestIndices(t *testing.T) {
	assert.Equal(t, []int{1, 2, 10}, Indices("{{c10::a}} {{c2::b}} {{c1::c}} {{c2::d}}"))
	assert.Empty(t, Indices("plain"))
	assert.Equal(t, []int{0, 3}, DistinctIndices(Extract("{{c3::x}}"), Extract("{{c0::y}} {{c3::z}}")))
}

func TestReplaceIgnoresOrderOfMatches(t *testing.T) {
	text := "{{c1::one}} {{c2::two}} {{c3::three}}"
	matches := Extract(text)
	reversed := []Match{matches[2], matches[0], matches[1]}
	out := Replace(text, reversed, func(m Match) string { return strings.ToUpper(m.Content) })
	assert.Equal(t, "ONE TWO THREE", out)
}

func TestRenderInteractive(t *testing.T) {
	text := "{{c1::A}} then {{c2::B::hint}}"

	hidden := RenderInteractive(text, NewIndexSet())
	assert.Equal(t,
		`<span class="cloze-hidden" data-cloze-index="1">[...]</span> then <span class="cloze-hidden" data-cloze-index="2">[hint]</span>`,
		hidden.HTML)
	assert.False(t, hidden.AllRevealed)
	assert.Len(t, hidden.Matches, 2)

	partial := RenderInteractive(text, NewIndexSet(2))
	assert.Contains(t, partial.HTML, `<span class="cloze-revealed" data-cloze-index="2">B</span>`)
	assert.Contains(t, partial.HTML, `<span class="cloze-hidden" data-cloze-index="1">[...]</span>`)
	assert.False(t, partial.AllRevealed)

	all := RenderInteractive(text, NewIndexSet(1, 2))
	assert.True(t, all.AllRevealed)
	assert.NotContains(t, all.HTML, ClassHidden)
}

func TestRenderInteractiveEscapesHint(t *testing.T) {
	out := RenderInteractive("{{c1::x::a<b}}", NewIndexSet())
	assert.Contains(t, out.HTML, "[a&lt;b]")
}
