// Package study runs a study session over an ordered list of cards: navigation,
// reveal state of the current card and image prefetching.
package study

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danieldreier/ankoma-flashcards/internal/deck"
	"github.com/danieldreier/ankoma-flashcards/internal/images"
	"github.com/danieldreier/ankoma-flashcards/internal/preload"
	"github.com/danieldreier/ankoma-flashcards/internal/reveal"
)

// ErrNoCards is returned when a session is started without cards
var ErrNoCards = errors.New("no cards to study")

// Options configure a Session.
type Options struct {
	Title    string
	Resolver images.Resolver
	// Cache receives every position change. Nil disables prefetching.
	Cache *preload.Cache
	// Category and Subcategory label the breadcrumb. When empty, the
	// current card's ANKOMA tag is used.
	Category    string
	Subcategory string
	Logger      *zap.Logger
}

// Session is one pass over a list of cards. It is safe for concurrent use.
type Session struct {
	id     string
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	original []deck.Card
	cards    []deck.Card
	index    int
	shuffled bool
	engine   *reveal.Engine
}

// New starts a session at the first card.
func New(cards []deck.Card, opts Options) (*Session, error) {
	if len(cards) == 0 {
		return nil, ErrNoCards
	}
	if opts.Resolver.BaseURL == "" {
		opts.Resolver = images.DefaultResolver()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		id:       uuid.New().String(),
		opts:     opts,
		logger:   logger,
		original: append([]deck.Card(nil), cards...),
		engine:   reveal.New(opts.Resolver),
	}
	s.cards = append([]deck.Card(nil), s.original...)
	s.moveTo(0)
	s.logger.Debug("Study session started",
		zap.String("session_id", s.id),
		zap.String("title", opts.Title),
		zap.Int("cards", len(cards)))
	return s, nil
}

// moveTo makes i the current position and starts its card hidden, even when
// the previous card carried the same id. The caller holds the lock.
func (s *Session) moveTo(i int) {
	s.index = i
	if !s.engine.Load(s.cards[i]) {
		s.engine.Reset()
	}
	if s.opts.Cache != nil {
		s.opts.Cache.Observe(s.cards, i)
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Title returns the label the session was started with.
func (s *Session) Title() string { return s.opts.Title }

// Len returns the number of cards.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards)
}

// Index returns the zero-based position.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Current returns the current card.
func (s *Session) Current() deck.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cards[s.index]
}

// CanNext reports whether there is a card after the current one.
func (s *Session) CanNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index < len(s.cards)-1
}

// CanPrevious reports whether there is a card before the current one.
func (s *Session) CanPrevious() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index > 0
}

// Next moves to the following card. It reports false at the end of the list.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(1)
}

// Previous moves to the preceding card. It reports false at the start.
func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(-1)
}

func (s *Session) step(delta int) bool {
	i := s.index + delta
	if i < 0 || i >= len(s.cards) {
		return false
	}
	s.moveTo(i)
	return true
}

// Key applies a key press to the current card and carries out navigation
// requests. The returned action is the one the engine produced.
func (s *Session) Key(ev reveal.KeyEvent) reveal.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	action := s.engine.HandleKey(ev)
	switch action {
	case reveal.ActionNext:
		s.step(1)
	case reveal.ActionPrevious:
		s.step(-1)
	}
	return action
}

// Reveal toggles one cloze group of the current card.
func (s *Session) Reveal(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Toggle(index)
}

// RevealAll reveals every cloze group of the current card.
func (s *Session) RevealAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.RevealAll()
}

// ToggleAnswer flips the answer of a basic or occlusion card.
func (s *Session) ToggleAnswer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ToggleAnswer()
}

// ResetCard hides everything on the current card again.
func (s *Session) ResetCard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
}

// Shuffle reorders the cards deterministically from seed and returns to the
// first card.
func (s *Session) Shuffle(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards = append(s.cards[:0:0], s.original...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(s.cards), func(i, j int) {
		s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
	})
	s.shuffled = true
	s.moveTo(0)
}

// Reset restores the original order and returns to the first card.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards = append(s.cards[:0:0], s.original...)
	s.shuffled = false
	s.moveTo(0)
}

// Shuffled reports whether the order is shuffled.
func (s *Session) Shuffled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuffled
}

// CardView is what the rendering layer needs for the current card.
type CardView struct {
	SessionID   string   `json:"session_id"`
	CardID      string   `json:"card_id"`
	DeckName    string   `json:"deck_name"`
	ModelName   string   `json:"model_name"`
	Tags        []string `json:"tags,omitempty"`
	Position    int      `json:"position"`
	Total       int      `json:"total"`
	CanNext     bool     `json:"can_next"`
	CanPrevious bool     `json:"can_previous"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	reveal.View
}

// View renders the current card.
func (s *Session) View() CardView {
	s.mu.Lock()
	defer s.mu.Unlock()

	card := s.cards[s.index]
	v := CardView{
		SessionID:   s.id,
		CardID:      card.ID,
		DeckName:    card.DeckName,
		ModelName:   card.ModelName,
		Tags:        card.Tags,
		Position:    s.index + 1,
		Total:       len(s.cards),
		CanNext:     s.index < len(s.cards)-1,
		CanPrevious: s.index > 0,
		Category:    s.opts.Category,
		Subcategory: s.opts.Subcategory,
		View:        s.engine.Render(),
	}
	if v.Category == "" {
		if p, ok := deck.ParseTag(card); ok {
			v.Category = deck.FormatTagName(p.Category)
			v.Subcategory = deck.FormatTagName(p.Subcategory)
		}
	}
	return v
}

// Close releases the session's prefetch cache.
func (s *Session) Close() {
	if s.opts.Cache != nil {
		s.opts.Cache.Close()
	}
	s.logger.Debug("Study session closed", zap.String("session_id", s.id))
}
