package study

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieldreier/ankoma-flashcards/internal/deck"
	"github.com/danieldreier/ankoma-flashcards/internal/images"
	"github.com/danieldreier/ankoma-flashcards/internal/preload"
	"github.com/danieldreier/ankoma-flashcards/internal/reveal"
)

var testResolver = images.Resolver{BaseURL: "https://cdn.test", Subfolder: "anki"}

func testCards(n int) []deck.Card {
	cards := make([]deck.Card, n)
	for i := range cards {
		cards[i] = deck.Card{
			ID:        fmt.Sprintf("card-%d", i),
			DeckName:  "Skin",
			ModelName: deck.ModelCloze,
			Question:  fmt.Sprintf(`{{c1::first %d}} {{c2::second}} <img src="img %d.png">`, i, i),
			Answer:    `<div class="extra-section">More</div>`,
			Tags:      []string{"#ANKOMA::AP::SoftTissue::Benign_Tumors"},
		}
	}
	return cards
}

func newSession(t *testing.T, cards []deck.Card, opts Options) *Session {
	t.Helper()
	if opts.Resolver.BaseURL == "" {
		opts.Resolver = testResolver
	}
	s, err := New(cards, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNewRequiresCards(t *testing.T) {
	_, err := New(nil, Options{})
	assert.ErrorIs(t, err, ErrNoCards)
}

func TestNavigationIsBounded(t *testing.T) {
	s := newSession(t, testCards(3), Options{})

	assert.NotEmpty(t, s.ID())
	assert.False(t, s.CanPrevious())
	assert.False(t, s.Previous())
	assert.True(t, s.CanNext())

	assert.True(t, s.Next())
	assert.True(t, s.Next())
	assert.Equal(t, 2, s.Index())
	assert.False(t, s.CanNext())
	assert.False(t, s.Next(), "no wrap at the end")
	assert.Equal(t, "card-2", s.Current().ID)

	assert.True(t, s.Previous())
	assert.Equal(t, 1, s.Index())
}

func TestNavigationResetsReveal(t *testing.T) {
	s := newSession(t, testCards(2), Options{})

	s.RevealAll()
	require.True(t, s.View().AllRevealed)

	s.Next()
	v := s.View()
	assert.Empty(t, v.Revealed)
	assert.False(t, v.AllRevealed)

	s.Previous()
	assert.Empty(t, s.View().Revealed, "coming back starts over too")
}

func TestNavigationResetsCardsSharingAnID(t *testing.T) {
	cards := testCards(2)
	cards[1].ID = cards[0].ID
	s := newSession(t, cards, Options{})

	s.RevealAll()
	require.True(t, s.View().AllRevealed)

	require.True(t, s.Next())
	assert.Empty(t, s.View().Revealed)

	s.Reveal(1)
	require.True(t, s.Previous())
	assert.Empty(t, s.View().Revealed)
}

func TestKeyDrivesRevealAndNavigation(t *testing.T) {
	s := newSession(t, testCards(2), Options{})

	space := reveal.KeyEvent{Code: reveal.KeySpace}
	assert.Equal(t, reveal.ActionRevealed, s.Key(space))
	assert.Equal(t, reveal.ActionRevealed, s.Key(space))
	assert.True(t, s.View().AnswerVisible)
	assert.Equal(t, reveal.ActionNext, s.Key(space))
	assert.Equal(t, 1, s.Index())

	assert.Equal(t, reveal.ActionPrevious, s.Key(reveal.KeyEvent{Code: reveal.KeyArrowLeft}))
	assert.Equal(t, 0, s.Index())

	assert.Equal(t, reveal.ActionNone, s.Key(reveal.KeyEvent{Code: reveal.KeyArrowRight, InTextInput: true}))
	assert.Equal(t, 0, s.Index())
}

func TestRevealAndResetCard(t *testing.T) {
	s := newSession(t, testCards(1), Options{})

	assert.True(t, s.Reveal(2))
	assert.Equal(t, []int{2}, s.View().Revealed)
	assert.False(t, s.Reveal(5))

	s.ResetCard()
	assert.Empty(t, s.View().Revealed)
}

func TestToggleAnswerOnBasicCard(t *testing.T) {
	cards := []deck.Card{{ID: "b", ModelName: deck.ModelBasic, Question: "Q", Answer: `<div class="extra-section">A</div>`}}
	s := newSession(t, cards, Options{})

	assert.False(t, s.View().AnswerVisible)
	assert.True(t, s.ToggleAnswer())
	v := s.View()
	assert.True(t, v.AnswerVisible)
	assert.Equal(t, reveal.KindBasic, v.Kind)
	assert.Contains(t, v.AnswerHTML, "A")
}

func TestShuffleIsDeterministic(t *testing.T) {
	order := func(seed int64) []string {
		s := newSession(t, testCards(8), Options{})
		s.Next()
		s.Shuffle(seed)
		require.Equal(t, 0, s.Index())
		var ids []string
		for i := 0; i < s.Len(); i++ {
			ids = append(ids, s.Current().ID)
			s.Next()
		}
		return ids
	}

	a, b := order(42), order(42)
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, a, []string{"card-0", "card-1", "card-2", "card-3", "card-4", "card-5", "card-6", "card-7"})
}

func TestResetRestoresOrder(t *testing.T) {
	s := newSession(t, testCards(5), Options{})
	s.Shuffle(7)
	require.True(t, s.Shuffled())
	s.Next()
	s.RevealAll()

	s.Reset()
	assert.False(t, s.Shuffled())
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, "card-0", s.Current().ID)
	assert.Empty(t, s.View().Revealed)
}

func TestView(t *testing.T) {
	s := newSession(t, testCards(3), Options{Title: "Soft Tissue"})
	s.Next()

	v := s.View()
	assert.Equal(t, s.ID(), v.SessionID)
	assert.Equal(t, "card-1", v.CardID)
	assert.Equal(t, 2, v.Position)
	assert.Equal(t, 3, v.Total)
	assert.True(t, v.CanNext)
	assert.True(t, v.CanPrevious)
	assert.Equal(t, reveal.KindCloze, v.Kind)
	assert.Equal(t, []int{1, 2}, v.Indices)
	assert.Equal(t, "Soft Tissue", v.Category, "breadcrumb from the card tag")
	assert.Equal(t, "Benign Tumors", v.Subcategory)
	assert.Contains(t, v.QuestionHTML, `src="https://cdn.test/anki/img_1.png"`)
	assert.Empty(t, v.AnswerHTML)
	assert.Equal(t, "Soft Tissue", s.Title())
}

func TestViewExplicitBreadcrumb(t *testing.T) {
	s := newSession(t, testCards(1), Options{Category: "Breast", Subcategory: "Benign"})
	v := s.View()
	assert.Equal(t, "Breast", v.Category)
	assert.Equal(t, "Benign", v.Subcategory)
}

type countingLoader struct {
	mu   sync.Mutex
	urls []string
}

func (l *countingLoader) Load(_ context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	return nil
}

func TestSessionFeedsPreloadCache(t *testing.T) {
	loader := &countingLoader{}
	cache := preload.New(loader, preload.Options{Lookahead: 1, Delay: time.Millisecond, Resolver: testResolver})
	s := newSession(t, testCards(4), Options{Cache: cache})

	assert.Eventually(t, func() bool {
		return cache.Loaded("https://cdn.test/anki/img_0.png") && cache.Loaded("https://cdn.test/anki/img_1.png")
	}, time.Second, 5*time.Millisecond)
	assert.False(t, cache.Requested("https://cdn.test/anki/img_2.png"))

	s.Next()
	assert.Eventually(t, func() bool {
		return cache.Loaded("https://cdn.test/anki/img_2.png")
	}, time.Second, 5*time.Millisecond)
	assert.False(t, cache.Requested("https://cdn.test/anki/img_3.png"))
}

func TestConcurrentUse(t *testing.T) {
	s := newSession(t, testCards(10), Options{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch (i + j) % 4 {
				case 0:
					s.Next()
				case 1:
					s.Previous()
				case 2:
					s.Key(reveal.KeyEvent{Code: reveal.KeySpace})
				default:
					_ = s.View()
				}
			}
		}(i)
	}
	wg.Wait()
	idx := s.Index()
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 10)
}
