package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/danieldreier/ankoma-flashcards/internal/cloze"
	"github.com/danieldreier/ankoma-flashcards/internal/config"
	"github.com/danieldreier/ankoma-flashcards/internal/deck"
	"github.com/danieldreier/ankoma-flashcards/internal/images"
	"github.com/danieldreier/ankoma-flashcards/internal/preload"
	"github.com/danieldreier/ankoma-flashcards/internal/study"
)

// ErrSessionNotFound is returned for an unknown or ended session id
var ErrSessionNotFound = errors.New("session not found")

// previewLength is the number of characters of the first question shown in
// section listings.
const previewLength = 80

// StudyService owns the loaded deck and the open study sessions
type StudyService struct {
	Data   *deck.Data
	Decks  []*deck.DeckGroup
	Logger *zap.Logger

	resolver images.Resolver
	preload  config.Preload
	loader   preload.Loader

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session *study.Session
	cache   *preload.Cache
}

// NewStudyService creates a service over data. Image prefetching uses an HTTP
// loader when enabled in cfg.
func NewStudyService(data *deck.Data, cfg config.Config, logger *zap.Logger) *StudyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StudyService{
		Data:     data,
		Decks:    deck.Organize(deck.AllCards(data.Sections)),
		Logger:   logger,
		resolver: cfg.Resolver(),
		preload:  cfg.Preload,
		sessions: make(map[string]*sessionEntry),
	}
	if cfg.Preload.Enabled {
		s.loader = preload.NewHTTPLoader(cfg.Preload.Timeout)
	}
	return s
}

// StartOptions select the cards of a new session. A deck and category take
// precedence over a section id.
type StartOptions struct {
	SectionID   string
	DeckID      string
	CategoryID  string
	Subcategory string
	// Shuffle, when set, is the seed the card order is shuffled with.
	Shuffle *int64
}

// selection is the resolved card list of a new session.
type selection struct {
	cards       []deck.Card
	title       string
	category    string
	subcategory string
	notice      string
}

// StartSession opens a study session. The returned notice is non-empty when the
// requested section did not exist and a fallback was chosen.
func (s *StudyService) StartSession(opts StartOptions) (*study.Session, string, error) {
	s.Logger.Debug("Service StartSession called",
		zap.String("section_id", opts.SectionID),
		zap.String("deck_id", opts.DeckID),
		zap.String("category_id", opts.CategoryID),
		zap.String("subcategory", opts.Subcategory))

	var (
		sel selection
		err error
	)
	if opts.DeckID != "" || opts.CategoryID != "" {
		sel, err = s.selectCategory(opts)
	} else {
		sel, err = s.selectSection(opts.SectionID)
	}
	if err != nil {
		return nil, "", err
	}

	var cache *preload.Cache
	if s.loader != nil {
		cache = preload.New(s.loader, preload.Options{
			Lookahead: s.preload.Lookahead,
			BatchSize: s.preload.BatchSize,
			Delay:     s.preload.Delay,
			Resolver:  s.resolver,
			Logger:    s.Logger,
		})
	}
	sess, err := study.New(sel.cards, study.Options{
		Title:       sel.title,
		Resolver:    s.resolver,
		Cache:       cache,
		Category:    sel.category,
		Subcategory: sel.subcategory,
		Logger:      s.Logger,
	})
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, "", fmt.Errorf("error starting session for %s: %w", sel.title, err)
	}
	if opts.Shuffle != nil {
		sess.Shuffle(*opts.Shuffle)
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = &sessionEntry{session: sess, cache: cache}
	s.mu.Unlock()

	s.Logger.Info("Study session opened",
		zap.String("session_id", sess.ID()),
		zap.String("title", sel.title),
		zap.Int("cards", sess.Len()),
		zap.Bool("shuffled", sess.Shuffled()))
	return sess, sel.notice, nil
}

func (s *StudyService) selectSection(id string) (selection, error) {
	sec, err := deck.Select(s.Data.Sections, id)
	if sec == nil {
		return selection{}, fmt.Errorf("error selecting section %q: %w", id, study.ErrNoCards)
	}
	sel := selection{cards: sec.AllCards(), title: strings.Join(sec.Path, " / ")}
	if errors.Is(err, deck.ErrSectionNotFound) && id != "" {
		sel.notice = fmt.Sprintf("Section %q was not found, showing %s instead", id, sel.title)
		s.Logger.Warn("Unknown section requested, using fallback",
			zap.String("section_id", id),
			zap.String("fallback", sec.ID))
	}
	if len(sel.cards) == 0 {
		return selection{}, fmt.Errorf("error selecting section %q: %w", id, study.ErrNoCards)
	}
	return sel, nil
}

func (s *StudyService) selectCategory(opts StartOptions) (selection, error) {
	cat, err := deck.FindCategory(s.Decks, opts.DeckID, opts.CategoryID)
	if err != nil {
		return selection{}, fmt.Errorf("error finding category %q in deck %q: %w", opts.CategoryID, opts.DeckID, err)
	}
	cards := deck.FilterBySubcategory(cat.Cards, opts.Subcategory)
	if len(cards) == 0 {
		return selection{}, fmt.Errorf("error selecting subcategory %q: %w", opts.Subcategory, study.ErrNoCards)
	}
	title := deck.DeckName(opts.DeckID) + " / " + cat.Name
	if opts.Subcategory != "" {
		title += " / " + opts.Subcategory
	}
	return selection{
		cards:       cards,
		title:       title,
		category:    cat.Name,
		subcategory: opts.Subcategory,
	}, nil
}

// Session returns the open session with the given id.
func (s *StudyService) Session(id string) (*study.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.session, nil
}

// EndSession closes a session and returns the final prefetch counters.
func (s *StudyService) EndSession(id string) (preload.Stats, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return preload.Stats{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var stats preload.Stats
	if e.cache != nil {
		stats = e.cache.Stats()
	}
	e.session.Close()
	s.Logger.Info("Study session ended",
		zap.String("session_id", id),
		zap.Int("images_loaded", stats.Loaded),
		zap.Int("images_failed", stats.Failed))
	return stats, nil
}

// PreloadStats returns the prefetch counters of an open session. They are zero
// when prefetching is disabled.
func (s *StudyService) PreloadStats(id string) (preload.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return preload.Stats{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.cache == nil {
		return preload.Stats{}, nil
	}
	return e.cache.Stats(), nil
}

// SessionCount returns the number of open sessions.
func (s *StudyService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close ends every open session.
func (s *StudyService) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		_, _ = s.EndSession(id)
	}
}

// ListSections summarizes the top-level sections, keeping only those matching
// query when it is not empty.
func (s *StudyService) ListSections(query string) []SectionSummary {
	sections := s.Data.Sections
	if q := strings.TrimSpace(query); q != "" {
		sections = deck.FilterSections(sections, q)
	}
	summaries := make([]SectionSummary, 0, len(sections))
	for _, sec := range sections {
		summaries = append(summaries, summarizeSection(sec))
	}
	return summaries
}

func summarizeSection(sec *deck.Section) SectionSummary {
	sum := SectionSummary{
		ID:    sec.ID,
		Name:  sec.Name,
		Path:  sec.Path,
		Stats: sec.Stats(),
	}
	if len(sec.Cards) > 0 {
		q := sec.Cards[0].Question
		sum.Preview = images.Preview(cloze.Replace(q, cloze.Extract(q), cloze.Blank), previewLength)
	}
	for _, sub := range sec.Subsections {
		sum.Subsections = append(sum.Subsections, summarizeSection(sub))
	}
	return sum
}

// ListDecks summarizes the tag-derived decks.
func (s *StudyService) ListDecks() []DeckSummary {
	decks := make([]DeckSummary, 0, len(s.Decks))
	for _, d := range s.Decks {
		ds := DeckSummary{ID: d.ID, Name: d.Name, TotalCards: d.TotalCards}
		for _, c := range d.Categories {
			cs := CategorySummary{ID: c.ID, Name: c.Name, CardCount: len(c.Cards)}
			for _, sub := range c.Subcategories {
				cs.Subcategories = append(cs.Subcategories, SubcategorySummary{
					Name:      sub,
					CardCount: c.SubcategoryCount(sub),
				})
			}
			ds.Categories = append(ds.Categories, cs)
		}
		decks = append(decks, ds)
	}
	return decks
}

// Overview returns the content of the deck-overview resource.
func (s *StudyService) Overview() DeckOverview {
	sections := s.ListSections("")
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Stats.TotalCards > sections[j].Stats.TotalCards
	})
	return DeckOverview{
		TotalCards:     s.Data.TotalCards,
		LoadedAt:       s.Data.LoadedAt,
		Sections:       sections,
		Decks:          s.ListDecks(),
		ActiveSessions: s.SessionCount(),
	}
}
